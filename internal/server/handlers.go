package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/backyonatan-alt/restable/internal/activity"
	"github.com/backyonatan-alt/restable/internal/export"
	"github.com/backyonatan-alt/restable/internal/fetcher"
	"github.com/backyonatan-alt/restable/internal/model"
	"github.com/backyonatan-alt/restable/internal/normalize"
	"github.com/backyonatan-alt/restable/internal/pipeline"
)

const defaultExportsLimit = 20

// statusClientClosedRequest is nginx's non-standard code for a request whose
// client went away before the response was ready.
const statusClientClosedRequest = 499

func (s *Server) handleURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	base := q.Get("base")
	if base == "" {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "missing base", Kind: "bad_request"})
		return
	}

	keys, values := q["key"], q["value"]
	params := make([]fetcher.Param, 0, len(keys))
	for i, k := range keys {
		p := fetcher.Param{Key: k}
		if i < len(values) {
			p.Value = values[i]
		}
		params = append(params, p)
	}
	writeJSON(w, http.StatusOK, model.TargetURL{URL: fetcher.BuildURL(base, params)})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	target, ok := requireURL(w, r)
	if !ok {
		return
	}
	rows, err := intParam(r, "rows", model.PreviewRows)
	if err != nil || rows < 0 {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid rows", Kind: "bad_request"})
		return
	}

	t, err := s.pipeline.Table(r.Context(), target)
	if err != nil {
		writeError(w, err)
		return
	}
	if boolParam(r, "scalar_only") {
		t = t.ScalarOnly()
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, model.NewPreview(target, t, rows))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	target, ok := requireURL(w, r)
	if !ok {
		return
	}

	data, key, err := s.pipeline.Export(r.Context(), target, boolParam(r, "scalar_only"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(target)+`"`)
	if key != "" {
		w.Header().Set("X-Export-Key", key)
	}
	w.Write(data)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	target, ok := requireURL(w, r)
	if !ok {
		return
	}
	t, err := s.pipeline.Snapshot(r.Context(), target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewPreview(target, t, model.PreviewRows))
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultExportsLimit)
	if err != nil || limit < 1 {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid limit", Kind: "bad_request"})
		return
	}
	exports, err := s.pipeline.Exports(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if exports == nil {
		exports = []model.Export{}
	}
	writeJSON(w, http.StatusOK, exports)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	stats := activity.Stats{Hosts: []activity.HostStats{}}
	if s.activity != nil {
		stats = s.activity.Stats()
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	updatedAt := s.cache.UpdatedAt()

	resp := map[string]any{
		"status":        "ok",
		"cached_tables": s.cache.Len(),
	}
	if !updatedAt.IsZero() {
		resp["last_update"] = updatedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "missing url", Kind: "bad_request"})
		return "", false
	}
	return target, true
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func boolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// writeError maps pipeline errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		fetchErr  *fetcher.FetchFailure
		decodeErr *fetcher.DecodeFailure
		urlErr    *url.Error
	)
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.As(err, &fetchErr):
		status, kind = http.StatusBadGateway, "fetch_failure"
	case errors.As(err, &decodeErr):
		status, kind = http.StatusBadGateway, "decode_failure"
	case errors.Is(err, normalize.ErrUnsupportedShape):
		status, kind = http.StatusUnprocessableEntity, "unsupported_shape"
	case errors.Is(err, normalize.ErrRowLimit):
		status, kind = http.StatusUnprocessableEntity, "too_many_rows"
	case errors.Is(err, pipeline.ErrNoSnapshot):
		status, kind = http.StatusNotFound, "no_snapshot"
	case errors.Is(err, pipeline.ErrNoStore):
		status, kind = http.StatusServiceUnavailable, "no_store"
	case errors.Is(err, context.Canceled):
		status, kind = statusClientClosedRequest, "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		status, kind = http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &urlErr):
		status, kind = http.StatusBadGateway, "unreachable"
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, model.ErrorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
