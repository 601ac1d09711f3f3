package server

import (
	"net/http"

	"github.com/aminox1/ludostore/internal/store"
)

// handleListPlayers serves GET /api/players: a paginated snapshot of the
// presence registry, restricted to accounts holding the player role so
// service accounts never leak into the roster.
func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request, uc userContext) {
	eligible, err := s.catalog.UsersInRole(store.RolePlayer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not resolve players")
		return
	}

	page := intQuery(r, "page", 1)
	pageSize := intQuery(r, "pageSize", 0)
	search := r.URL.Query().Get("search")

	players, total := s.registry.QueryPaged(eligible, page, pageSize, search)
	writeJSON(w, http.StatusOK, map[string]any{
		"items": players,
		"total": total,
	})
}
