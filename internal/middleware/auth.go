package middleware

import (
	"b2bcart/pkg/lib/logger/sl"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type userIdKey struct{}

// WithUserId stores the authenticated user id in ctx.
func WithUserId(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, userIdKey{}, userId)
}

func UserIdFromContext(ctx context.Context) (string, bool) {
	userId, ok := ctx.Value(userIdKey{}).(string)
	return userId, ok && userId != ""
}

// AuthJWT accepts "Authorization: Bearer <token>" signed with HS256 and
// takes the user id from the sub claim. Tokens are issued elsewhere.
func AuthJWT(log *slog.Logger, secret string) func(http.Handler) http.Handler {
	const op = "middleware.AuthJWT"
	log = log.With("op", op)
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userId, err := authenticate(r.Header.Get("Authorization"), key)
			if err != nil {
				log.Warn("Unauthorized request", sl.Err(err), slog.String("path", r.URL.Path))
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserId(r.Context(), userId)))
		})
	}
}

func authenticate(header string, key []byte) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header is not a bearer token")
	}

	raw := strings.TrimSpace(parts[1])
	if raw == "" {
		return "", errors.New("empty bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}

	return subject(claims["sub"])
}

func subject(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", errors.New("empty sub claim")
		}
		return t, nil
	case float64:
		return strconv.FormatInt(int64(t), 10), nil
	default:
		return "", errors.New("missing sub claim")
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="cart"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
