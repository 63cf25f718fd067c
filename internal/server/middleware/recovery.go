package middleware

import (
	"log/slog"
	"net/http"
)

// NewRecovery converts handler panics into 500s instead of dropped connections.
func NewRecovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic recovered",
						slog.Any("panic", rec),
						slog.String("uri", r.RequestURI))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
