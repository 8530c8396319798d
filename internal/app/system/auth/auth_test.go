package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tutorhub/tutorhub/internal/app/system/auth"
	"go.uber.org/zap"
)

func newManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "tutorhub-session", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return sm
}

func TestNewSessionManager_EmptyKey(t *testing.T) {
	_, err := auth.NewSessionManager("", "s", "", false, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for empty session key")
	}
}

func TestRequireSignedIn_NoUser(t *testing.T) {
	called := false
	h := auth.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/enrollments/me", nil))

	if called {
		t.Error("handler should not run without a session user")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name       string
		user       *auth.SessionUser
		allowed    []string
		wantStatus int
	}{
		{"parent allowed", &auth.SessionUser{ID: "1", Role: "parent"}, []string{"parent", "admin"}, http.StatusOK},
		{"admin allowed", &auth.SessionUser{ID: "2", Role: "Admin"}, []string{"parent", "admin"}, http.StatusOK},
		{"student forbidden", &auth.SessionUser{ID: "3", Role: "student"}, []string{"parent", "admin"}, http.StatusForbidden},
		{"no user", nil, []string{"parent"}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := auth.RequireRole(tc.allowed...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/", nil)
			if tc.user != nil {
				req = auth.WithTestUser(req, tc.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestEstablishAndLoadSessionUser(t *testing.T) {
	sm := newManager(t)

	// Establish a session and capture the cookie.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", nil)
	err := sm.Establish(rec, req, auth.SessionUser{ID: "abc", Name: "P", Email: "p@example.com", Role: "parent"})
	if err != nil {
		t.Fatalf("Establish failed: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	// Replay the cookie through the middleware.
	var got *auth.SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))

	req2 := httptest.NewRequest("GET", "/enrollments/me", nil)
	for _, c := range cookies {
		req2.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req2)

	if got == nil {
		t.Fatal("expected session user in context")
	}
	if got.ID != "abc" || got.Role != "parent" {
		t.Errorf("user: got %+v", got)
	}
}
