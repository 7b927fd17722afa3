package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hydrozen/leakwatch/internal/errors"
)

type contextKey string

const userKey contextKey = "user"

type UserContext struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the user carries role
func (u *UserContext) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authenticator puts a *UserContext on every request it lets through
type Authenticator interface {
	Authenticate(next http.Handler) http.Handler
}

func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user or nil
func UserFromContext(ctx context.Context) *UserContext {
	user, _ := ctx.Value(userKey).(*UserContext)
	return user
}

// RequireRoles middleware ensures user has required roles
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				handleError(w, errors.NewAuthError("no user context found", nil))
				return
			}

			if !hasRequiredRoles(user.Roles, roles) {
				handleError(w, errors.NewAuthorizationError("insufficient permissions", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func hasRequiredRoles(userRoles, requiredRoles []string) bool {
	if len(requiredRoles) == 0 {
		return true
	}

	roleMap := make(map[string]bool)
	for _, role := range userRoles {
		roleMap[role] = true
	}

	for _, required := range requiredRoles {
		if required == "*" {
			return true
		}
		if !roleMap[required] {
			return false
		}
	}
	return true
}
