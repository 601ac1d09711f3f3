// Package auth provides session management, token extraction, and
// brute-force protection for the storefront.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	SessionCookieName = "ls_session"
	SessionDuration   = 12 * time.Hour
	MaxLoginAttempts  = 5
	LockoutDuration   = 5 * time.Minute
	CleanupInterval   = 5 * time.Minute
)

type failInfo struct {
	count       int
	lockedUntil time.Time
}

type session struct {
	userID string
	expiry time.Time
}

// Manager handles session lifecycle and login throttling. Credentials
// themselves live in the store; the manager only maps tokens to user ids.
type Manager struct {
	sessions     map[string]session
	failedLogins map[string]failInfo
	mu           sync.RWMutex
}

// NewManager creates an auth manager with a cleanup goroutine bound to ctx.
func NewManager(ctx context.Context) *Manager {
	m := &Manager{
		sessions:     make(map[string]session),
		failedLogins: make(map[string]failInfo),
	}
	go m.cleanupLoop(ctx)
	log.Println("[i] Auth manager initialized")
	return m
}

// CreateSession generates a cryptographically random token bound to a user.
func (m *Manager) CreateSession(userID string) string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Printf("[!] crypto/rand failed: %v", err)
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	token := hex.EncodeToString(b)
	m.mu.Lock()
	m.sessions[token] = session{userID: userID, expiry: time.Now().Add(SessionDuration)}
	m.mu.Unlock()
	return token
}

// ResolveToken returns the user id for a live token, or "" when the token is
// unknown or expired.
func (m *Manager) ResolveToken(token string) string {
	if token == "" {
		return ""
	}
	m.mu.RLock()
	s, exists := m.sessions[token]
	m.mu.RUnlock()
	if !exists {
		return ""
	}
	if time.Now().After(s.expiry) {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return ""
	}
	return s.userID
}

// RevokeToken drops a session (logout).
func (m *Manager) RevokeToken(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// IsLockedOut returns true if the IP has exceeded MaxLoginAttempts.
func (m *Manager) IsLockedOut(ip string) bool {
	m.mu.RLock()
	info, exists := m.failedLogins[ip]
	m.mu.RUnlock()
	if !exists {
		return false
	}
	return info.count >= MaxLoginAttempts && time.Now().Before(info.lockedUntil)
}

// RecordFailedLogin increments the failure counter for an IP.
func (m *Manager) RecordFailedLogin(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.failedLogins[ip]
	info.count++
	if info.count >= MaxLoginAttempts {
		info.lockedUntil = time.Now().Add(LockoutDuration)
		log.Printf("[AUDIT] IP %s locked out for %v after %d failed attempts",
			ip, LockoutDuration, info.count)
	}
	m.failedLogins[ip] = info
}

// ClearFailedLogins resets the counter on successful login.
func (m *Manager) ClearFailedLogins(ip string) {
	m.mu.Lock()
	delete(m.failedLogins, ip)
	m.mu.Unlock()
}

// SetSessionCookie writes an HttpOnly session cookie for browser clients.
func (m *Manager) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie removes the session cookie.
func (m *Manager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromRequest extracts the session token from, in order: Authorization
// bearer header, session cookie, "token" query parameter (websocket dials
// cannot set headers from browsers).
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tok
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// UserFromRequest resolves the request's session to a user id, "" when the
// caller is anonymous.
func (m *Manager) UserFromRequest(r *http.Request) string {
	return m.ResolveToken(TokenFromRequest(r))
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[i] Auth cleanup goroutine stopped")
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for k, v := range m.sessions {
				if now.After(v.expiry) {
					delete(m.sessions, k)
				}
			}
			for k, v := range m.failedLogins {
				if v.count >= MaxLoginAttempts && now.After(v.lockedUntil) {
					delete(m.failedLogins, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
