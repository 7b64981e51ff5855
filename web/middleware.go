package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RequireIdentity resolves the bearer token to an identity before handler
// dispatch. The resolved identity rides the request context as an
// explicit value; handlers never see the Authorization header themselves.
func (h *Handler) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if h.metrics != nil {
				h.metrics.AuthFailures.WithLabelValues("missing_token").Inc()
			}
			writeError(w, http.StatusUnauthorized, "missing_token", "Authorization bearer token is required")
			return
		}

		id, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			if h.metrics != nil {
				h.metrics.AuthFailures.WithLabelValues("rejected").Inc()
			}
			h.logger.Debug().Err(err).Msg("identity resolution failed")
			writeError(w, http.StatusUnauthorized, "invalid_token", "Token could not be verified")
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id, token)))
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Observe records request count and latency per route.
func (h *Handler) Observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		h.metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
