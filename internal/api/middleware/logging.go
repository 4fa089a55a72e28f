// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	"github.com/vurafps/Webpanel/internal/log"
)

// Logging emits one structured access log line per request, correlated with
// the request ID.
func Logging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			mw := &metricsWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(mw, r)

			logger := log.WithComponentFromContext(r.Context(), "http")
			logger.Info().
				Str("method", r.Method).
				Str(log.FieldPath, r.URL.Path).
				Int("status", mw.statusCode).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request")
		})
	}
}
