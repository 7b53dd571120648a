// Package comfy talks to the remote compute service: prompt queueing,
// execution history, output download and the event-stream address.
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imagine/internal/domain"
)

type Options struct {
	// Address is host:port, or a full http(s) base URL.
	Address    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.Address), "/")
	if base == "" {
		return nil, errors.New("comfy: server address is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("comfy: invalid server address: %w", err)
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: client, baseURL: base}, nil
}

// QueuePrompt enqueues a materialized job document and returns its prompt ID.
func (c *Client) QueuePrompt(ctx context.Context, doc any) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("comfy: encode prompt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/prompt", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("comfy: queue prompt: %w", err)
	}
	defer resp.Body.Close()

	var out queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return "", fmt.Errorf("comfy: queue prompt: http %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%w: decode queue response: %v", domain.ErrUpstreamProtocol, err)
	}
	if out.PromptID == nil || strings.TrimSpace(*out.PromptID) == "" {
		if resp.StatusCode >= http.StatusBadRequest {
			return "", fmt.Errorf("comfy: queue prompt: http %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%w: no prompt_id found", domain.ErrUpstreamProtocol)
	}
	return *out.PromptID, nil
}

// History fetches the execution record for promptID. ok is false while the
// remote has not recorded the prompt yet.
func (c *Client) History(ctx context.Context, promptID string) (*History, bool, error) {
	endpoint := c.baseURL + "/api/history/" + url.PathEscape(promptID)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, false, fmt.Errorf("comfy: history: %w", err)
	}
	return parseHistory(body, promptID)
}

// View downloads the raw bytes of one output image.
func (c *Client) View(ctx context.Context, ref ImageRef) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", ref.Filename)
	q.Set("subfolder", ref.Subfolder)
	q.Set("type", ref.Type)
	data, err := c.get(ctx, c.baseURL+"/view?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("comfy: view %s: %w", ref.Filename, err)
	}
	return data, nil
}

// EventsURL returns the websocket address of the event channel for clientID.
func (c *Client) EventsURL(clientID string) string {
	u, _ := url.Parse(c.baseURL)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"clientId": []string{clientID}}.Encode()
	return u.String()
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
