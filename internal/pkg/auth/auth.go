package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"store_admin/internal/models"
)

// contextKey is a custom type used for storing values in a context without risking collisions.
type contextKey string

// ContextSessionID is the key under which the verified session id is stored.
const ContextSessionID contextKey = "contextSessionID"

// SessionID returns the session id stored by CheckJWTMiddleware.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextSessionID).(string)
	return id, ok && id != ""
}

// CheckJWTMiddleware validates the Authorization header of console requests and
// stores the session id in the request context. Every rejection is a 401 that
// points the front end at loginRoute.
func CheckJWTMiddleware(issuer *Issuer, loginRoute string) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			if authHeader == "" {
				WriteUnauthorized(w, "missing auth header", loginRoute)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				WriteUnauthorized(w, "invalid auth header", loginRoute)
				return
			}

			claims, err := issuer.ParseToken(parts[1])
			if err != nil {
				WriteUnauthorized(w, "invalid token", loginRoute)
				return
			}

			ctx := context.WithValue(r.Context(), ContextSessionID, claims.SessionID)
			h.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// WriteUnauthorized writes the 401 body shared by the middleware and the handlers.
func WriteUnauthorized(res http.ResponseWriter, errorInfo, loginRoute string) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(res).Encode(models.ErrorResponse{Errors: errorInfo, Redirect: loginRoute})
}
