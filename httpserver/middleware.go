package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const slowRequestThreshold = 500 * time.Millisecond

// requestID tags every request with a UUID, echoed in X-Request-ID.
func requestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r)
		})
	}
}

// permissiveCORS adds the wildcard CORS headers to every response. The
// services behind this library sit on trusted intranets fronted by kiosk
// frontends, so cross-origin access is deliberately unrestricted.
func permissiveCORS() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.Header().Set("Access-Control-Allow-Origin", "*")
			next.ServeHTTP(w, r)
		})
	}
}

// concurrencyLimit caps simultaneous in-flight requests, standing in for
// the fixed-size worker pool a threaded server would spawn. Excess
// requests queue on the semaphore rather than being rejected.
func concurrencyLimit(workers int) func(http.Handler) http.Handler {
	sem := make(chan struct{}, workers)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case sem <- struct{}{}:
			case <-r.Context().Done():
				return
			}
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger records one structured line per request, escalating the
// level for error statuses and slow requests.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []slog.Attr{
				slog.String("request_id", ww.Header().Get("X-Request-ID")),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", duration),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("bytes", ww.BytesWritten()),
			}
			if query := r.URL.RawQuery; query != "" {
				attrs = append(attrs, slog.String("query", query))
			}

			level := slog.LevelInfo
			msg := "request completed"
			switch {
			case status >= 500:
				level = slog.LevelError
				msg = "request failed"
			case status >= 400:
				level = slog.LevelWarn
				msg = "request error"
			case duration > slowRequestThreshold:
				level = slog.LevelWarn
				msg = "slow request"
			}

			logger.LogAttrs(r.Context(), level, msg, attrs...)
		})
	}
}
