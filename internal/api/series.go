package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hydrocloud/hydro-core/internal/store"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// seriesResponse is the body of GET /api/v1/series/{metric}.
type seriesResponse struct {
	Metric string        `json:"metric"`
	Since  string        `json:"since,omitempty"`
	Count  int           `json:"count"`
	Points []store.Point `json:"points"`
}

// handleSeries returns every stored value of one metric from since onwards.
//
// since is an RFC 3339 timestamp or a Go duration ("6h", "90m") meaning
// that long before now. Omitted, it returns the whole history.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "metric")
	if name == "" || len(name) > maxQueryParamLen {
		writeBadRequest(w, "invalid metric")
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"), s.now())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	series, err := s.store.Query(r.Context(), name, since)
	switch {
	case errors.Is(err, store.ErrInvalidMetric):
		writeBadRequest(w, err.Error())
		return
	case errors.Is(err, store.ErrStoreUnavailable):
		s.logger.Warn("series query failed", "metric", name, "error", err)
		writeServiceUnavailable(w, "store unavailable")
		return
	case err != nil:
		s.logger.Error("series query failed", "metric", name, "error", err)
		writeInternalError(w, "failed to query series")
		return
	}

	resp := seriesResponse{
		Metric: series.Metric.String(),
		Count:  series.Len(),
		Points: series.Points,
	}
	if resp.Points == nil {
		resp.Points = []store.Point{}
	}
	if !since.IsZero() {
		resp.Since = since.UTC().Format(time.RFC3339Nano)
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseSinceParam accepts "", an RFC 3339 timestamp, or a positive duration
// relative to now.
func parseSinceParam(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if len(raw) > maxQueryParamLen {
		return time.Time{}, fmt.Errorf("invalid since: too long")
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return time.Time{}, fmt.Errorf("invalid since: want RFC 3339 timestamp or positive duration")
	}
	return now.Add(-d), nil
}
