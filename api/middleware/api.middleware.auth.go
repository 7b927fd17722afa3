package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/Nerzal/gocloak/v13"
	"github.com/hydrozen/leakwatch/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

type KeycloakMiddleware struct {
	client *gocloak.GoCloak
	config KeycloakConfig
}

func NewKeycloakMiddleware(config KeycloakConfig) *KeycloakMiddleware {
	return &KeycloakMiddleware{
		client: gocloak.NewClient(config.URL),
		config: config,
	}
}

// Authenticate validates the token and adds user info to context
func (k *KeycloakMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			handleError(w, errors.NewAuthError("no token provided", nil))
			return
		}

		// Verify token
		result, err := k.client.RetrospectToken(r.Context(), token, k.config.ClientID, k.config.ClientSecret, k.config.Realm)
		if err != nil || result == nil || result.Active == nil || !*result.Active {
			handleError(w, errors.NewAuthError("invalid token", err))
			return
		}

		claims, err := k.client.GetUserInfo(r.Context(), token, k.config.Realm)
		if err != nil {
			handleError(w, errors.NewAuthError("failed to get user info", err))
			return
		}

		roles, err := k.client.GetRealmRoles(r.Context(), token, k.config.Realm, gocloak.GetRoleParams{})
		if err != nil {
			// role lookup needs view-realm; fall back to a plain user
			nuts.L.Warnf("[Auth] Failed to get realm roles: %v", err)
			roles = nil
		}

		user := createUserContext(claims, roles)
		if user.ID == "" {
			handleError(w, errors.NewAuthError("token has no subject", nil))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func createUserContext(userInfo *gocloak.UserInfo, roles []*gocloak.Role) *UserContext {
	return &UserContext{
		ID:       deref(userInfo.Sub),
		Username: deref(userInfo.PreferredUsername),
		Email:    deref(userInfo.Email),
		Roles:    extractRoles(roles),
	}
}

func extractRoles(roles []*gocloak.Role) []string {
	var roleStrings []string
	for _, role := range roles {
		if role != nil && role.Name != nil {
			roleStrings = append(roleStrings, *role.Name)
		}
	}
	return roleStrings
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func handleError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}
