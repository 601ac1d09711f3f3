package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aminox1/ludostore/internal/store"
)

// GameDTO is the catalog entry as the API exposes it.
type GameDTO struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Price          float64       `json:"price"`
	SizeBytes      int64         `json:"sizeBytes"`
	Categories     []CategoryDTO `json:"categories"`
	IsOwned        bool          `json:"isOwned"`
	PrimaryImageID int           `json:"primaryImageId,omitempty"`
	HasPayload     bool          `json:"hasPayload"`
}

// CategoryDTO mirrors store.Category on the wire.
type CategoryDTO struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// gameDTO projects a stored game for one (possibly anonymous) caller.
// categories is the id -> category lookup built once per request.
func (s *Server) gameDTO(g store.Game, categories map[int]store.Category, caller *store.User) GameDTO {
	dto := GameDTO{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Price:       g.Price,
		SizeBytes:   g.SizeBytes,
		Categories:  []CategoryDTO{},
		HasPayload:  g.PayloadPath != "",
	}
	for _, cid := range g.CategoryIDs {
		if c, ok := categories[cid]; ok {
			dto.Categories = append(dto.Categories, CategoryDTO{ID: c.ID, Name: c.Name, Description: c.Description})
		}
	}
	if caller != nil {
		dto.IsOwned = caller.Owns(g.ID)
	}
	dto.PrimaryImageID = s.catalog.PrimaryImageID(g.ID)
	return dto
}

// categoryLookup loads all categories keyed by id.
func (s *Server) categoryLookup() (map[int]store.Category, error) {
	cats, err := s.catalog.ListCategories()
	if err != nil {
		return nil, err
	}
	m := make(map[int]store.Category, len(cats))
	for _, c := range cats {
		m[c.ID] = c
	}
	return m, nil
}

// handleListGames serves GET /api/games. Public; isOwned reflects the
// caller's session when one is present.
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	f := store.NewGameFilter()
	f.Name = r.URL.Query().Get("name")
	f.CategoryIDs = intsQuery(r, "category")
	f.MinPrice = floatQuery(r, "minPrice", -1)
	f.MaxPrice = floatQuery(r, "maxPrice", -1)
	f.Page = intQuery(r, "page", 1)
	f.PageSize = intQuery(r, "pageSize", 10)

	var caller *store.User
	if u, ok := s.requestUser(r); ok {
		caller = &u
	}

	games, total, err := s.catalog.ListGames(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list games")
		return
	}
	s.writeGamePage(w, games, total, caller)
}

// handleMyGames serves GET /api/mygames: the caller's owned games.
func (s *Server) handleMyGames(w http.ResponseWriter, r *http.Request, uc userContext) {
	f := store.NewGameFilter()
	f.OwnedBy = uc.user.ID
	f.CategoryIDs = intsQuery(r, "category")
	f.Page = intQuery(r, "page", 1)
	f.PageSize = intQuery(r, "pageSize", 10)

	games, total, err := s.catalog.ListGames(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list games")
		return
	}
	s.writeGamePage(w, games, total, &uc.user)
}

func (s *Server) writeGamePage(w http.ResponseWriter, games []store.Game, total int, caller *store.User) {
	categories, err := s.categoryLookup()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load categories")
		return
	}
	items := make([]GameDTO, 0, len(games))
	for _, g := range games {
		items = append(items, s.gameDTO(g, categories, caller))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

// handleGameDetails serves GET /api/games/{id}.
func (s *Server) handleGameDetails(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	g, err := s.catalog.GetGame(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load game")
		return
	}

	categories, err := s.categoryLookup()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load categories")
		return
	}
	var caller *store.User
	if u, ok := s.requestUser(r); ok {
		caller = &u
	}
	writeJSON(w, http.StatusOK, s.gameDTO(g, categories, caller))
}

// handlePurchase serves POST /api/games/{id}/purchase.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request, uc userContext) {
	if !s.purchaseLimiter.Allow(remoteIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many purchase attempts, slow down")
		return
	}
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	err := s.catalog.Purchase(uc.user.ID, id)
	switch {
	case errors.Is(err, store.ErrAlreadyOwned):
		writeError(w, http.StatusBadRequest, "you already own this game")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "purchase failed")
	default:
		log.Printf("[AUDIT] PURCHASE | user=%s game=%d", uc.user.Email, id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Game purchased successfully"})
	}
}

// handleDownload serves GET /api/games/{id}/download: streams the packaged
// ZIP to an owner. http.ServeFile handles range requests for resumable
// downloads.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, uc userContext) {
	if !s.downloadLimiter.Allow(remoteIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many downloads, slow down")
		return
	}
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	g, err := s.catalog.GetGame(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load game")
		return
	}
	if !uc.user.Owns(g.ID) {
		writeError(w, http.StatusForbidden, "you do not own this game")
		return
	}
	if g.PayloadPath == "" {
		writeError(w, http.StatusNotFound, "game binary not available yet")
		return
	}
	if _, err := os.Stat(g.PayloadPath); err != nil {
		log.Printf("[API] ❌ Payload missing on disk for game %d: %v", g.ID, err)
		writeError(w, http.StatusNotFound, "game binary not found")
		return
	}

	log.Printf("[AUDIT] DOWNLOAD | user=%s game=%d", uc.user.Email, g.ID)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", g.Name+".zip"))
	http.ServeFile(w, r, g.PayloadPath)
}
