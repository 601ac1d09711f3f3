package server

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/aminox1/ludostore/internal/store"
)

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] ⚠️ Error encoding response: %v", err)
	}
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// intQuery parses an integer query parameter, falling back on def for
// missing or malformed values. Bad pagination input is never an error.
func intQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// floatQuery parses a float query parameter, def when absent or malformed.
func floatQuery(r *http.Request, name string, def float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

// intsQuery collects every valid integer value of a repeatable parameter.
func intsQuery(r *http.Request, name string) []int {
	var out []int
	for _, raw := range r.URL.Query()[name] {
		if n, err := strconv.Atoi(raw); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// pathID parses the {id} path segment; 0 means invalid.
func pathID(r *http.Request) int {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// remoteIP strips the port from the request's remote address for rate
// limiting and audit logs.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requireUser wraps a handler with session validation.
func (s *Server) requireUser(next func(http.ResponseWriter, *http.Request, userContext)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.requestUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, userContext{user: user})
	}
}

// requireRole additionally checks a role on the account.
func (s *Server) requireRole(role string, next func(http.ResponseWriter, *http.Request, userContext)) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request, uc userContext) {
		if !uc.user.HasRole(role) {
			writeError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r, uc)
	})
}

// userContext carries the resolved account through a handler chain.
type userContext struct {
	user store.User
}
