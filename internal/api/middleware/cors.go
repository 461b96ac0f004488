package middleware

import (
	"net/http"

	"marketplace/pkg/logger"
)

const allowHeaders = "Accept, Content-Type, Content-Length, Authorization, X-Requested-With, X-User-ID"

// CORSWithLogging opens the events gateway to any origin and answers
// preflight requests itself.
func CORSWithLogging(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			log.Debug("CORS request", "method", r.Method, "path", r.URL.Path, "origin", origin)

			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
