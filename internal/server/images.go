package server

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/aminox1/ludostore/internal/store"
)

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// handleImage serves GET /api/images/{id}: the raw image blob. Public,
// cacheable since image content never changes once uploaded.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid image id")
		return
	}
	img, err := s.catalog.GetImage(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load image")
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.Write(img.Data)
}

// handleGameImages serves GET /api/games/{id}/images: metadata for a
// game's gallery, primary first.
func (s *Server) handleGameImages(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	imgs, err := s.catalog.ListImages(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list images")
		return
	}
	type imageDTO struct {
		ID        int  `json:"id"`
		IsPrimary bool `json:"isPrimary"`
		SortOrder int  `json:"sortOrder"`
	}
	items := make([]imageDTO, 0, len(imgs))
	for _, img := range imgs {
		items = append(items, imageDTO{ID: img.ID, IsPrimary: img.IsPrimary, SortOrder: img.SortOrder})
	}
	writeJSON(w, http.StatusOK, items)
}

// handleUploadImage serves POST /api/admin/games/{id}/images (multipart,
// field "image"). Admin only.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, uc userContext) {
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !allowedImageTypes[contentType] {
		writeError(w, http.StatusBadRequest, "unsupported image type "+contentType)
		return
	}

	setPrimary := r.FormValue("primary") == "true"
	sortOrder, _ := strconv.Atoi(r.FormValue("sortOrder"))
	imgID, err := s.catalog.AddImage(id, contentType, data, setPrimary, sortOrder)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store image")
		return
	}
	log.Printf("[AUDIT] IMAGE_UPLOAD | admin=%s game=%d image=%d bytes=%d", uc.user.Email, id, imgID, len(data))
	writeJSON(w, http.StatusCreated, map[string]int{"id": imgID})
}

// handleSetPrimaryImage serves POST /api/admin/images/{id}/primary.
func (s *Server) handleSetPrimaryImage(w http.ResponseWriter, r *http.Request, uc userContext) {
	id := pathID(r)
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invalid image id")
		return
	}
	err := s.catalog.SetPrimaryImage(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not update image")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "primary image updated"})
}
