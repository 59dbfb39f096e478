package server

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/backyonatan-alt/restable/internal/model"
)

// rateLimit guards handlers that call out to remote APIs with the shared
// token bucket.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.limiter.Reserve()
		if !res.OK() {
			writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{Error: "rate limited", Kind: "rate_limited"})
			return
		}
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			slog.Warn("fetch rate limited", "path", r.URL.Path, "retry_after", delay)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{Error: "rate limited", Kind: "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
