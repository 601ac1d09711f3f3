package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/aminox1/ludostore/internal/auth"
	"github.com/aminox1/ludostore/internal/store"
)

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister serves POST /auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display name is required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	u, err := s.catalog.CreateUser(req.Email, req.DisplayName, req.Password)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	log.Printf("[AUDIT] REGISTER | user=%s", u.Email)
	token := s.auth.CreateSession(u.ID)
	s.auth.SetSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, s.profileDTO(u, token))
}

// handleLogin serves POST /auth/login. Failed attempts count toward a
// per-email lockout.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if s.auth.IsLockedOut(email) {
		log.Printf("[AUDIT] LOGIN_LOCKED | user=%s ip=%s", email, remoteIP(r))
		writeError(w, http.StatusTooManyRequests, "account temporarily locked, try again later")
		return
	}

	u, ok := s.catalog.CheckPassword(email, req.Password)
	if !ok {
		s.auth.RecordFailedLogin(email)
		log.Printf("[AUDIT] LOGIN_FAILED | user=%s ip=%s", email, remoteIP(r))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.auth.ClearFailedLogins(email)
	token := s.auth.CreateSession(u.ID)
	s.auth.SetSessionCookie(w, token)
	log.Printf("[AUDIT] LOGIN_OK | user=%s ip=%s", email, remoteIP(r))
	writeJSON(w, http.StatusOK, s.profileDTO(u, token))
}

// handleLogout serves POST /auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		s.auth.RevokeToken(token)
	}
	s.auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// handleProfile serves GET /api/profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, uc userContext) {
	writeJSON(w, http.StatusOK, s.profileDTO(uc.user, ""))
}

func (s *Server) profileDTO(u store.User, token string) map[string]any {
	dto := map[string]any{
		"id":          u.ID,
		"email":       u.Email,
		"displayName": u.DisplayName,
		"roles":       u.Roles,
		"ownedGames":  len(u.OwnedGameIDs),
	}
	if token != "" {
		dto["token"] = token
	}
	return dto
}
