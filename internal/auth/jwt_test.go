package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "access-secret-32-chars-long!!!!!"

func TestJWTManager_IssueAndValidate(t *testing.T) {
	mgr := NewJWTManager(testSecret, "futureecho")
	userID := uuid.New()

	t.Run("round trip", func(t *testing.T) {
		tok, err := mgr.Issue(userID, 15*time.Minute)
		require.NoError(t, err)

		claims, err := mgr.ValidateAccessToken(tok)
		require.NoError(t, err)
		assert.Equal(t, userID.String(), claims.UserID)
	})

	t.Run("garbage fails", func(t *testing.T) {
		_, err := mgr.ValidateAccessToken("invalid-token")
		assert.Error(t, err)
	})

	t.Run("expired fails", func(t *testing.T) {
		tok, err := mgr.Issue(userID, -time.Second)
		require.NoError(t, err)
		_, err = mgr.ValidateAccessToken(tok)
		assert.Error(t, err)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		other := NewJWTManager("another-secret-32-chars-long!!!!", "futureecho")
		tok, err := other.Issue(userID, time.Minute)
		require.NoError(t, err)
		_, err = mgr.ValidateAccessToken(tok)
		assert.Error(t, err)
	})

	t.Run("wrong issuer fails", func(t *testing.T) {
		other := NewJWTManager(testSecret, "someone-else")
		tok, err := other.Issue(userID, time.Minute)
		require.NoError(t, err)
		_, err = mgr.ValidateAccessToken(tok)
		assert.Error(t, err)
	})

	t.Run("non uuid uid fails", func(t *testing.T) {
		claims := AccessClaims{
			UserID: "user-123",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "futureecho",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = mgr.ValidateAccessToken(tok)
		assert.Error(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	mgr := NewJWTManager(testSecret, "futureecho")
	userID := uuid.New()
	tok, err := mgr.Issue(userID, time.Minute)
	require.NoError(t, err)

	var got uuid.UUID
	h := Middleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = OwnerID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + tok, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusNoContent},
		{"case insensitive scheme", "bearer " + tok, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, userID, got)
}

func TestIdentity(t *testing.T) {
	fallback := func(*http.Request) string { return "1.2.3.4" }
	id := Identity(fallback)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "ip:1.2.3.4", id(req))

	owner := uuid.New()
	req = req.WithContext(WithOwner(req.Context(), owner))
	assert.Equal(t, "user:"+owner.String(), id(req))
}
