package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte(user.ID))
	})
}

func TestDevMiddleware(t *testing.T) {
	h := DevMiddleware{}.Authenticate(echoUser())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing header status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevUserHeader, "usr_1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "usr_1" {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}

func TestRequireRoles(t *testing.T) {
	h := DevMiddleware{}.Authenticate(RequireRoles("admin")(echoUser()))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(DevUserHeader, "usr_1")
	req.Header.Set(DevRolesHeader, "user")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	req.Header.Set(DevRolesHeader, "user, admin")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Basic abc":  "",
		"abc":        "",
		"":           "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		if got := extractToken(req); got != want {
			t.Errorf("extractToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestHasRequiredRoles(t *testing.T) {
	if !hasRequiredRoles(nil, nil) {
		t.Error("no required roles should pass")
	}
	if !hasRequiredRoles([]string{"user"}, []string{"*"}) {
		t.Error("wildcard should pass")
	}
	if hasRequiredRoles([]string{"user"}, []string{"admin"}) {
		t.Error("missing role should fail")
	}
}
