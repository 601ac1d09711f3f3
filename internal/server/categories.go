package server

import "net/http"

// handleListCategories serves GET /api/categories. Public.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.ListCategories()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list categories")
		return
	}
	items := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		items = append(items, CategoryDTO{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	writeJSON(w, http.StatusOK, items)
}
