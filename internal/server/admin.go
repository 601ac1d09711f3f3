package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/aminox1/ludostore/internal/store"
	"github.com/aminox1/ludostore/internal/worker"
)

type gameRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	CategoryIDs []int   `json:"categoryIds"`
}

func (req *gameRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Price < 0 {
		return "price cannot be negative"
	}
	return ""
}

// handleCreateGame serves POST /api/admin/games.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request, uc userContext) {
	var req gameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	g := store.Game{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryIDs: req.CategoryIDs,
	}
	if err := s.catalog.CreateGame(&g); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create game")
		return
	}
	log.Printf("[AUDIT] GAME_CREATE | admin=%s game=%d name=%q", uc.user.Email, g.ID, req.Name)
	writeJSON(w, http.StatusCreated, map[string]int{"id": g.ID})
}

// handleUpdateGame serves PUT /api/admin/games/{id}.
func (s *Server) handleUpdateGame(w http.ResponseWriter, r *http.Request, uc userContext) {
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	var req gameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
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
	g.Name = req.Name
	g.Description = req.Description
	g.Price = req.Price
	g.CategoryIDs = req.CategoryIDs
	if err := s.catalog.UpdateGame(&g); err != nil {
		writeError(w, http.StatusInternalServerError, "could not update game")
		return
	}
	log.Printf("[AUDIT] GAME_UPDATE | admin=%s game=%d", uc.user.Email, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "game updated"})
}

// handleDeleteGame serves DELETE /api/admin/games/{id}. Removes the game,
// its images, ownership edges and any packaged payload on disk.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request, uc userContext) {
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
	if err := s.catalog.DeleteGame(id); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete game")
		return
	}
	if g.PayloadPath != "" {
		if err := os.Remove(g.PayloadPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[API] ⚠️ Could not remove payload for game %d: %v", id, err)
		}
	}
	log.Printf("[AUDIT] GAME_DELETE | admin=%s game=%d name=%q", uc.user.Email, id, g.Name)
	writeJSON(w, http.StatusOK, map[string]string{"message": "game deleted"})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleCreateCategory serves POST /api/admin/categories.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, uc userContext) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	c := store.Category{Name: req.Name, Description: req.Description}
	if err := s.catalog.CreateCategory(&c); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create category")
		return
	}
	log.Printf("[AUDIT] CATEGORY_CREATE | admin=%s category=%d name=%q", uc.user.Email, c.ID, req.Name)
	writeJSON(w, http.StatusCreated, map[string]int{"id": c.ID})
}

// handleUpdateCategory serves PUT /api/admin/categories/{id}.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, uc userContext) {
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	err := s.catalog.UpdateCategory(&store.Category{ID: id, Name: req.Name, Description: req.Description})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not update category")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "category updated"})
}

// handleDeleteCategory serves DELETE /api/admin/categories/{id}.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, uc userContext) {
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	err := s.catalog.DeleteCategory(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete category")
		return
	}
	log.Printf("[AUDIT] CATEGORY_DELETE | admin=%s category=%d", uc.user.Email, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}

// handleUploadPayload serves POST /api/admin/games/{id}/payload (multipart,
// field "payload"). The file is staged to disk and handed to the packaging
// worker; the response carries the job id for polling.
func (s *Server) handleUploadPayload(w http.ResponseWriter, r *http.Request, uc userContext) {
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	if _, err := s.catalog.GetGame(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
		} else {
			writeError(w, http.StatusInternalServerError, "could not load game")
		}
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("payload")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing payload file")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.cfg.StagingDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	stagedPath := filepath.Join(s.cfg.StagingDir, "upload_"+uuid.New().String())
	dst, err := os.Create(stagedPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	written, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		os.Remove(stagedPath)
		writeError(w, http.StatusRequestEntityTooLarge, "upload failed or too large")
		return
	}

	job := &worker.PackageJob{
		ID:           uuid.New().String(),
		GameID:       id,
		StagedPath:   stagedPath,
		OriginalName: header.Filename,
	}
	if err := s.packer.Enqueue(job); err != nil {
		writeError(w, http.StatusServiceUnavailable, "packaging queue is full, try again shortly")
		return
	}
	log.Printf("[AUDIT] PAYLOAD_UPLOAD | admin=%s game=%d job=%s bytes=%d", uc.user.Email, id, job.ID, written)
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID})
}

// handleJobStatus serves GET /api/admin/jobs/{id}.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, uc userContext) {
	jobID := r.PathValue("id")
	status, ok := s.packer.Tracker().Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleGrantRole serves POST /api/admin/users/{id}/roles.
func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request, uc userContext) {
	userID := r.PathValue("id")
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role != store.RoleAdmin && req.Role != store.RolePlayer {
		writeError(w, http.StatusBadRequest, "unknown role "+req.Role)
		return
	}
	err := s.catalog.GrantRole(userID, req.Role)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not grant role")
		return
	}
	log.Printf("[AUDIT] ROLE_GRANT | admin=%s user=%s role=%s", uc.user.Email, userID, req.Role)
	writeJSON(w, http.StatusOK, map[string]string{"message": "role granted"})
}
