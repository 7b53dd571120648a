package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imagine/internal/domain"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestWriteAndExists(t *testing.T) {
	s := newStore(t)
	if s.Exists("job.png") {
		t.Fatalf("unexpected file before write")
	}
	key, err := s.Write(context.Background(), "./job.png", []byte("data"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "job.png" {
		t.Fatalf("key = %q", key)
	}
	if !s.Exists("job.png") {
		t.Fatalf("file missing after write")
	}
	got, err := os.ReadFile(filepath.Join(s.BasePath(), "job.png"))
	if err != nil || string(got) != "data" {
		t.Fatalf("content = %q, %v", got, err)
	}
	entries, _ := os.ReadDir(s.BasePath())
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestWriteRejectsEscapingKeys(t *testing.T) {
	s := newStore(t)
	for _, key := range []string{"", "..", "../x.png", "a/../../x.png"} {
		if _, err := s.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("Write(%q) succeeded", key)
		}
	}
}

func TestWriteHonorsCancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Write(ctx, "a.png", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Exists("a.png") {
		t.Fatalf("file written despite cancelled context")
	}
}

func TestOpen(t *testing.T) {
	s := newStore(t)
	if _, err := s.Write(context.Background(), "ok.png", []byte("png")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(s.BasePath(), "dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	outside := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatalf("write outside: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(s.BasePath(), "link.txt")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	f, info, err := s.Open("ok.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = f.Close()
	if info.Size() != 3 {
		t.Fatalf("size = %d", info.Size())
	}

	tests := []struct {
		name string
		want error
	}{
		{name: " ", want: domain.ErrInvalidPath},
		{name: "missing.png", want: domain.ErrNotFound},
		{name: "../" + filepath.Base(filepath.Dir(outside)) + "/secret.txt", want: domain.ErrInvalidPath},
		{name: "link.txt", want: domain.ErrInvalidPath},
		{name: "dir", want: domain.ErrInvalidPath},
	}
	for _, tc := range tests {
		_, _, err := s.Open(tc.name)
		if !errors.Is(err, tc.want) {
			t.Fatalf("Open(%q) err = %v, want %v", tc.name, err, tc.want)
		}
		if err != nil && strings.Contains(err.Error(), s.BasePath()) {
			t.Fatalf("Open(%q) leaked path: %v", tc.name, err)
		}
	}
}

func TestOpenRejectsEscapeToMissingFile(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"../nope.png", "a/../../nope.png", "."} {
		if _, _, err := s.Open(name); !errors.Is(err, domain.ErrInvalidPath) {
			t.Fatalf("Open(%q) err = %v, want ErrInvalidPath", name, err)
		}
	}
}
