package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"imagine/internal/domain"
)

// File streams a stored artifact.
func (a *App) File(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when the request carried escaped separators,
	// and then hands back the still-escaped segment.
	name := chi.URLParam(r, "fileName")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			a.fail(w, http.StatusBadRequest, "invalid file name")
			return
		}
		name = unescaped
	}

	f, info, err := a.Files.Open(name)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPath):
			a.Logger.Warn().Err(err).Str("file", name).Msg("rejected file path")
			a.fail(w, http.StatusBadRequest, "invalid file path")
		case errors.Is(err, domain.ErrNotFound):
			a.fail(w, http.StatusNotFound, "file not found")
		default:
			a.Logger.Error().Err(err).Str("file", name).Msg("open file")
			a.fail(w, http.StatusInternalServerError, "file unavailable")
		}
		return
	}
	defer f.Close()

	w.Header().Set("x-file-name", info.Name())
	w.Header().Set("x-file-size", strconv.FormatInt(info.Size(), 10))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
