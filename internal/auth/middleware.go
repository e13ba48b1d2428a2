package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/api"
)

type contextKey string

const ownerKey contextKey = "owner_id"

// TokenValidator is satisfied by *JWTManager.
type TokenValidator interface {
	ValidateAccessToken(token string) (*AccessClaims, error)
}

// Middleware authenticates the bearer token and stores the owner id in the context.
func Middleware(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := v.ValidateAccessToken(token)
			if err != nil {
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			ownerID, _ := uuid.Parse(claims.UserID)
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), ownerID)))
		})
	}
}

// WithOwner returns a context carrying ownerID.
func WithOwner(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

// OwnerID returns the authenticated user, if any.
func OwnerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// Identity charges rate limits to the authenticated user, falling back to fallback.
func Identity(fallback func(*http.Request) string) func(*http.Request) string {
	return func(r *http.Request) string {
		if id, ok := OwnerID(r.Context()); ok {
			return "user:" + id.String()
		}
		return "ip:" + fallback(r)
	}
}
