package handlers

import (
	"net/http"

	"imagine/internal/ingest"
)

type healthResponse struct {
	Status       string        `json:"status"`
	Stream       ingest.Health `json:"stream"`
	RegistrySize int           `json:"registry_size"`
}

// Health reports 503 while the event stream is not connected.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	h := a.Stream.Health()
	resp := healthResponse{Status: "ok", Stream: h, RegistrySize: a.Registry.Len()}
	code := http.StatusOK
	if !h.Healthy() {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	a.json(w, code, resp)
}
