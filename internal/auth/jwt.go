// Package auth verifies bearer tokens and carries the caller's identity in
// the request context. The wallet and reward surfaces only need two facts
// about a caller: who they are and whether they are an admin.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Identity is the authenticated caller.
type Identity struct {
	UserId  string
	IsAdmin bool
}

// Verifier validates bearer tokens. The signing secret is injected, never a
// package-level ambient.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's Identity in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "missing auth token", http.StatusUnauthorized)
			return
		}

		tokenStr := strings.TrimPrefix(h, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return v.secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, "invalid claims", http.StatusUnauthorized)
			return
		}

		userId, ok := claims["user_id"].(string)
		if !ok || userId == "" {
			http.Error(w, "user_id missing", http.StatusUnauthorized)
			return
		}

		role, _ := claims["role"].(string)
		identity := Identity{UserId: userId, IsAdmin: role == "admin"}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a subtree to admin callers. Must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := FromContext(r.Context())
		if err != nil || !identity.IsAdmin {
			http.Error(w, "admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext returns the authenticated caller set by Middleware.
func FromContext(ctx context.Context) (Identity, error) {
	identity, ok := ctx.Value(identityKey).(Identity)
	if !ok {
		return Identity{}, errors.New("user not authenticated")
	}
	return identity, nil
}
