package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewManager(ctx)
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestManager(t)

	token := m.CreateSession("user-1")
	if token == "" {
		t.Fatal("CreateSession returned empty token")
	}

	if got := m.ResolveToken(token); got != "user-1" {
		t.Errorf("ResolveToken = %q; want %q", got, "user-1")
	}

	m.RevokeToken(token)
	if got := m.ResolveToken(token); got != "" {
		t.Errorf("ResolveToken after revoke = %q; want empty", got)
	}

	if got := m.ResolveToken(""); got != "" {
		t.Errorf("ResolveToken(\"\") = %q; want empty", got)
	}
	if got := m.ResolveToken("bogus"); got != "" {
		t.Errorf("ResolveToken(bogus) = %q; want empty", got)
	}
}

func TestLockout(t *testing.T) {
	m := newTestManager(t)

	ip := "198.51.100.7"
	if m.IsLockedOut(ip) {
		t.Fatal("fresh IP should not be locked out")
	}

	for i := 0; i < MaxLoginAttempts; i++ {
		m.RecordFailedLogin(ip)
	}
	if !m.IsLockedOut(ip) {
		t.Errorf("IP not locked out after %d failures", MaxLoginAttempts)
	}

	m.ClearFailedLogins(ip)
	if m.IsLockedOut(ip) {
		t.Error("lockout should clear on successful login")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer tok-header")
			},
			want: "tok-header",
		},
		{
			name: "session cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-cookie"})
			},
			want: "tok-cookie",
		},
		{
			name:  "query parameter",
			setup: func(r *http.Request) { r.URL.RawQuery = "token=tok-query" },
			want:  "tok-query",
		},
		{
			name: "header wins over cookie",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer tok-header")
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-cookie"})
			},
			want: "tok-header",
		},
		{
			name:  "anonymous",
			setup: func(r *http.Request) {},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/games", nil)
			tt.setup(r)
			if got := TokenFromRequest(r); got != tt.want {
				t.Errorf("TokenFromRequest = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestUserFromRequest(t *testing.T) {
	m := newTestManager(t)
	token := m.CreateSession("user-9")

	r := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if got := m.UserFromRequest(r); got != "user-9" {
		t.Errorf("UserFromRequest = %q; want %q", got, "user-9")
	}

	anon := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	if got := m.UserFromRequest(anon); got != "" {
		t.Errorf("UserFromRequest(anon) = %q; want empty", got)
	}
}
