package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger, closer, err := NewLogger("production", "WARN", "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer closer.Close()
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("level = %s", logger.GetLevel())
	}

	logger, closer, err = NewLogger("production", "bogus", "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer closer.Close()
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("fallback level = %s", logger.GetLevel())
	}
}

func TestNewLoggerWritesDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, closer, err := NewLogger("production", "info", dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info().Str("job_id", "j1").Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"job_id":"j1"`) || !strings.Contains(string(data), "hello") {
		t.Fatalf("unexpected log content: %s", data)
	}
}

func TestDailyFileWriterRollsOver(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	w, err := newDailyFileWriter(dir, logRetention, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newDailyFileWriter: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("before midnight\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := w.Write([]byte("after midnight\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	first, err := os.ReadFile(filepath.Join(dir, "2026-03-01.log"))
	if err != nil || string(first) != "before midnight\n" {
		t.Fatalf("first day = %q, %v", first, err)
	}
	second, err := os.ReadFile(filepath.Join(dir, "2026-03-02.log"))
	if err != nil || string(second) != "after midnight\n" {
		t.Fatalf("second day = %q, %v", second, err)
	}
}

func TestDailyFileWriterPrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		name := start.AddDate(0, 0, i).Format("2006-01-02") + ".log"
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w, err := newDailyFileWriter(dir, 3, func() time.Time { return start.AddDate(0, 0, 5) })
	if err != nil {
		t.Fatalf("newDailyFileWriter: %v", err)
	}
	defer w.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"2026-01-04.log", "2026-01-05.log", "2026-01-06.log", "notes.txt"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("files = %v, want %v", names, want)
	}
}
