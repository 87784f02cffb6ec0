package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bankmesh.org/internal/auth"
)

func newAuthAPI(t *testing.T) (*API, *auth.Issuer) {
	t.Helper()
	tokens, err := auth.NewIssuer("authn-test-secret-0123")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return &API{tokens: tokens}, tokens
}

func TestWithAuthResolvesPrincipal(t *testing.T) {
	api, tokens := newAuthAPI(t)
	token, _, err := tokens.Issue(auth.Principal{Login: "mng", Role: auth.RoleManager})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var got auth.Principal
	handler := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = principal(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.Login != "mng" || got.Role != auth.RoleManager {
		t.Fatalf("unexpected principal: %+v", got)
	}
}

func TestWithAuthRejectsExpiredToken(t *testing.T) {
	api, _ := newAuthAPI(t)
	old, err := auth.NewIssuer("authn-test-secret-0123", auth.WithNow(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, _, err := old.Issue(auth.Principal{Login: "cli", Role: auth.RoleClient})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	handler := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestWithAuthSkipsPublicPaths(t *testing.T) {
	api, _ := newAuthAPI(t)
	handler := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); ok {
			t.Fatal("public path must not carry a principal")
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/v1/banks", "/v1/auth/login"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"  bearer   xyz  ", "xyz", true},
		{"", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer ", "", false},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("extractBearerToken(%q) = %q, %v", tc.header, got, err)
		}
	}
}
