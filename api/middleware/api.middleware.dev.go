package middleware

import (
	"net/http"
	"strings"

	"github.com/hydrozen/leakwatch/internal/errors"
)

const (
	DevUserHeader  = "X-User-ID"
	DevRolesHeader = "X-User-Roles"
)

// DevMiddleware trusts the X-User-ID header. It is only wired when the
// service runs on in-memory storage without Keycloak.
type DevMiddleware struct{}

func (DevMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(DevUserHeader))
		if id == "" {
			handleError(w, errors.NewAuthError("missing "+DevUserHeader+" header", nil))
			return
		}
		user := &UserContext{ID: id, Username: id}
		for _, role := range strings.Split(r.Header.Get(DevRolesHeader), ",") {
			if role = strings.TrimSpace(role); role != "" {
				user.Roles = append(user.Roles, role)
			}
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
