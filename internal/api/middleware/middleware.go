package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
			r.Header.Set(RequestIDHeader, reqID)
		}
		w.Header().Set(RequestIDHeader, reqID)
		next.ServeHTTP(w, r)
	})
}

// Wrap оборачивает весь маршрутизатор. В отличие от router.Use, запросы без
// маршрута (404/405) тоже получают X-Request-ID и попадают в лог.
func Wrap(logger *slog.Logger, next http.Handler) http.Handler {
	return RequestID(Logging(logger)(next))
}

// Logging пишет одну строку лога на запрос
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// ResponseWriter для отслеживания статуса
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.Info("HTTP запрос",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", r.Header.Get(RequestIDHeader),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON выставляет Content-Type для API маршрутов
func JSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
