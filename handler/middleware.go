package handler

import (
	"crypto/subtle"
	"net/http"
	"time"
)

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.status = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for middleware that needs it.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// instrument logs every request and records it in the request metrics.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		d := time.Since(start)

		h.metrics.RecordRequest(r.Method, rec.status, d)
		ev := h.log.Debug()
		if rec.status >= http.StatusInternalServerError {
			ev = h.log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", d).
			Msg("request")
	})
}

// authenticate enforces basic auth when the handler was built WithAuth.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	if h.user == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(h.user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(h.pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="server"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "Name or password is incorrect.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
