package comfy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"imagine/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := NewClient(Options{Address: ts.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestQueuePrompt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/prompt" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload["client_id"] != "c1" {
			t.Fatalf("unexpected payload: %#v", payload)
		}
		_, _ = w.Write([]byte(`{"prompt_id":"p-123","number":1,"node_errors":{}}`))
	})

	id, err := c.QueuePrompt(context.Background(), map[string]any{"client_id": "c1"})
	if err != nil {
		t.Fatalf("QueuePrompt: %v", err)
	}
	if id != "p-123" {
		t.Fatalf("id = %q", id)
	}
}

func TestQueuePromptMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"bad workflow"}`))
	})
	_, err := c.QueuePrompt(context.Background(), map[string]any{})
	if !errors.Is(err, domain.ErrUpstreamProtocol) {
		t.Fatalf("expected ErrUpstreamProtocol, got %v", err)
	}
}

func TestQueuePromptHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"prompt_outputs_failed_validation"}}`))
	})
	if _, err := c.QueuePrompt(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/history/done":
			_, _ = w.Write([]byte(`{"done":{"outputs":{
				"9":{"images":[{"filename":"a.png","subfolder":"","type":"output"}]},
				"12":{"text":["ignored"]}
			}}}`))
		case "/api/history/pending":
			_, _ = w.Write([]byte(`{}`))
		case "/api/history/broken":
			_, _ = w.Write([]byte(`{"broken":{"status":{}}}`))
		case "/api/history/noname":
			_, _ = w.Write([]byte(`{"noname":{"outputs":{"9":{"images":[{"subfolder":"","type":"output"}]}}}}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	h, ok, err := c.History(ctx, "done")
	if err != nil || !ok {
		t.Fatalf("History(done) = %v, %v", ok, err)
	}
	if len(h.Outputs) != 1 || h.Outputs["9"].Images[0] != (ImageRef{Filename: "a.png", Subfolder: "", Type: "output"}) {
		t.Fatalf("unexpected outputs: %#v", h.Outputs)
	}

	if _, ok, err := c.History(ctx, "pending"); err != nil || ok {
		t.Fatalf("History(pending) = %v, %v", ok, err)
	}
	if _, _, err := c.History(ctx, "broken"); !errors.Is(err, domain.ErrUpstreamProtocol) {
		t.Fatalf("History(broken) err = %v", err)
	}
	if _, _, err := c.History(ctx, "noname"); !errors.Is(err, domain.ErrUpstreamProtocol) {
		t.Fatalf("History(noname) err = %v", err)
	}
}

func TestView(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/view" || q.Get("filename") != "a b.png" || q.Get("subfolder") != "sub" || q.Get("type") != "output" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	})
	data, err := c.View(context.Background(), ImageRef{Filename: "a b.png", Subfolder: "sub", Type: "output"})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("len = %d", len(data))
	}
	if _, err := c.View(context.Background(), ImageRef{Filename: "x"}); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestEventsURL(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{address: "127.0.0.1:8188", want: "ws://127.0.0.1:8188/ws?clientId=abc"},
		{address: "https://gpu.example.com/", want: "wss://gpu.example.com/ws?clientId=abc"},
	}
	for _, tc := range tests {
		c, err := NewClient(Options{Address: tc.address})
		if err != nil {
			t.Fatalf("NewClient(%q): %v", tc.address, err)
		}
		if got := c.EventsURL("abc"); got != tc.want {
			t.Fatalf("EventsURL = %q, want %q", got, tc.want)
		}
	}
}

func TestNewClientRequiresAddress(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
