package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RespondJSON sends a JSON response with the given status code and payload.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondError logs message and sends it as {"error": message}.
func RespondError(w http.ResponseWriter, logger *Logger, message string, status int) {
	if logger != nil {
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "status", status, "error", message)
		} else {
			logger.Debug("request rejected", "status", status, "error", message)
		}
	}
	RespondJSON(w, status, map[string]string{"error": message})
}

// LatencyMiddleware logs method, path, status and duration of each request.
func LatencyMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
