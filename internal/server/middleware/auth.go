package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/realtime"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/session"
)

// AppClaims is the custom JWT claims structure carried by session tokens.
type AppClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Invalidator lets the auth middleware trigger realtime teardown when it
// discovers a session the registry reports as dead.
type Invalidator interface {
	Invalidate(sessionID string, reason realtime.InvalidationReason, message string)
}

// NewAuthMiddleware validates the session token (cookie or bearer header),
// confirms the session against the registry, and records the identity in the
// request metadata. A token whose session the registry rejects gets a 401 and
// additionally triggers invalidation of any lingering realtime connection
// bound to that session.
func NewAuthMiddleware(logger *slog.Logger, jwtSecret, cookieName string, registry session.Registry, invalidator Invalidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := tokenFromRequest(r, cookieName)
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid session token", slog.String("ip", reqMeta.IP), slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*AppClaims)
			if !ok || claims.Subject == "" || claims.SessionID == "" {
				logger.Warn("session token missing sub or sid claim", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if _, err := registry.Validate(r.Context(), claims.Subject, claims.SessionID); err != nil {
				if errors.Is(err, session.ErrInvalidSession) {
					// The token outlived its session: make sure any realtime
					// connection still bound to it is torn down too.
					invalidator.Invalidate(claims.SessionID, realtime.ReasonRevoked,
						"la sesión ya no es válida")
				} else {
					logger.Error("session registry lookup failed", slog.Any("error", err))
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.UserID = claims.Subject
			reqMeta.SessionID = claims.SessionID
			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}
