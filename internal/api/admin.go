package api

import (
	"net/http"
)

type AdminHandler struct {
	runner Runner
}

func NewAdminHandler(rn Runner) *AdminHandler {
	return &AdminHandler{runner: rn}
}

// ReloadCatalog rebuilds the catalog from the dataset directory.
// POST /api/v1/admin/catalog/reload
func (h *AdminHandler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.runner.ReloadCatalog(r.Context())
	if err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "reloaded",
		"items":  cat.Len(),
		"schema": cat.Schema(),
	})
}
