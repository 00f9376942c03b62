package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/agentmesh/platform/internal/httputil"
	"github.com/agentmesh/platform/internal/logging"
)

// ActorClaims carries the authenticated actor identity on the bearer token
// presented to /command and /event.
type ActorClaims struct {
	Actor string `json:"actor"`
	jwt.RegisteredClaims
}

// ActorAuth validates the bearer token on the request and attaches the actor
// identity to the context (spec.md §2.A "/command and /event bearer-token
// actor verification"). A blank signingKey disables verification, which is
// only appropriate for local development.
func ActorAuth(signingKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if signingKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims := &ActorClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(signingKey), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
			if err != nil || !parsed.Valid || claims.Actor == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
				return
			}

			ctx := logging.WithActor(r.Context(), claims.Actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
