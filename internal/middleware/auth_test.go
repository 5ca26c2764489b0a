package middleware_test

import (
	"b2bcart/internal/middleware"
	"b2bcart/pkg/lib/logger/slogdiscard"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAuthJWT(t *testing.T) {
	valid := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name           string
		header         string
		expectedCode   int
		expectedUserId string
	}{
		{
			name:         "Missing header",
			header:       "",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "Not a bearer token",
			header:       "Basic dXNlcjpwYXNz",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "Empty token",
			header:       "Bearer ",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "Garbage token",
			header:       "Bearer not.a.jwt",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "Wrong secret",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{
				"sub": "user-1",
			}),
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "Expired",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
				"sub": "user-1",
				"exp": time.Now().Add(-time.Minute).Unix(),
			}),
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "Other HMAC algorithm",
			header: "Bearer " + sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{
				"sub": "user-1",
			}),
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "Missing subject",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
				"name": "someone",
			}),
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:           "Valid token",
			header:         "Bearer " + valid,
			expectedCode:   http.StatusOK,
			expectedUserId: "user-1",
		},
		{
			name:           "Scheme is case insensitive",
			header:         "bearer " + valid,
			expectedCode:   http.StatusOK,
			expectedUserId: "user-1",
		},
		{
			name: "Numeric subject",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
				"sub": 42,
			}),
			expectedCode:   http.StatusOK,
			expectedUserId: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUserId string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserId, _ = middleware.UserIdFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			ww := httptest.NewRecorder()

			middleware.AuthJWT(slogdiscard.NewDiscardLogger(), secret)(next).ServeHTTP(ww, req)

			assert.Equal(t, tt.expectedCode, ww.Code)
			assert.Equal(t, tt.expectedUserId, gotUserId)
			if tt.expectedCode == http.StatusUnauthorized {
				assert.NotEmpty(t, ww.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestUserIdFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := middleware.UserIdFromContext(req.Context())
	assert.False(t, ok)

	_, ok = middleware.UserIdFromContext(middleware.WithUserId(req.Context(), ""))
	assert.False(t, ok)
}
