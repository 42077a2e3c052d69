package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Logging returns [Middleware] that records each request with its total
// handling time. For websocket upgrades the elapsed time covers the whole
// connection, since the handler returns when the read loop ends.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"elapsed", time.Since(start),
			)
		})
	}
}
