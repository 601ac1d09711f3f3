package server

import (
	"net/http"

	"github.com/aminox1/ludostore/internal/store"
)

// RegisterRoutes wires every API endpoint onto mux. The daemon adds the
// embedded web assets and /health on top.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Account lifecycle.
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/profile", s.requireUser(s.handleProfile))

	// Public catalog.
	mux.HandleFunc("GET /api/games", s.handleListGames)
	mux.HandleFunc("GET /api/games/{id}", s.handleGameDetails)
	mux.HandleFunc("GET /api/games/{id}/images", s.handleGameImages)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("GET /api/images/{id}", s.handleImage)

	// Player operations.
	mux.HandleFunc("POST /api/games/{id}/purchase", s.requireUser(s.handlePurchase))
	mux.HandleFunc("GET /api/games/{id}/download", s.requireUser(s.handleDownload))
	mux.HandleFunc("GET /api/mygames", s.requireUser(s.handleMyGames))
	mux.HandleFunc("GET /api/players", s.requireUser(s.handleListPlayers))

	// Presence channel.
	mux.HandleFunc("GET /ws/players", s.HandlePlayersSocket)

	// Administration.
	mux.HandleFunc("POST /api/admin/games", s.requireRole(store.RoleAdmin, s.handleCreateGame))
	mux.HandleFunc("PUT /api/admin/games/{id}", s.requireRole(store.RoleAdmin, s.handleUpdateGame))
	mux.HandleFunc("DELETE /api/admin/games/{id}", s.requireRole(store.RoleAdmin, s.handleDeleteGame))
	mux.HandleFunc("POST /api/admin/games/{id}/payload", s.requireRole(store.RoleAdmin, s.handleUploadPayload))
	mux.HandleFunc("POST /api/admin/games/{id}/images", s.requireRole(store.RoleAdmin, s.handleUploadImage))
	mux.HandleFunc("POST /api/admin/images/{id}/primary", s.requireRole(store.RoleAdmin, s.handleSetPrimaryImage))
	mux.HandleFunc("POST /api/admin/categories", s.requireRole(store.RoleAdmin, s.handleCreateCategory))
	mux.HandleFunc("PUT /api/admin/categories/{id}", s.requireRole(store.RoleAdmin, s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/admin/categories/{id}", s.requireRole(store.RoleAdmin, s.handleDeleteCategory))
	mux.HandleFunc("GET /api/admin/jobs/{id}", s.requireRole(store.RoleAdmin, s.handleJobStatus))
	mux.HandleFunc("POST /api/admin/users/{id}/roles", s.requireRole(store.RoleAdmin, s.handleGrantRole))
}
