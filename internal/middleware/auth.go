package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/gigcredit/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// RoleOperator may move pool funds and resolve settlements
const RoleOperator = "operator"

type contextKey string

const (
	subjectKey contextKey = "subject"
	roleKey    contextKey = "role"
)

// Claims are the JWT claims accepted by the API
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates an HS256 bearer token and stores its subject and
// role in the request context.
func AuthMiddleware(cfg *config.Config) mux.MiddlewareFunc {
	secret := []byte(cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}

			var claims Claims
			_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil || claims.Subject == "" {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated callers without the given role
func RequireRole(role string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Role(r.Context()) != role {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Subject returns the authenticated subject, or "" if there is none
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// Role returns the authenticated role, or "" if there is none
func Role(ctx context.Context) string {
	s, _ := ctx.Value(roleKey).(string)
	return s
}

// IssueToken signs a token for subject valid for ttl
func IssueToken(secret, subject, role string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}
