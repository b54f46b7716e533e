package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Equilibrium/internal/config"
	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

type CatalogHandler struct {
	runner Runner
	cfg    *config.Config
}

func NewCatalogHandler(rn Runner, cfg *config.Config) *CatalogHandler {
	return &CatalogHandler{runner: rn, cfg: cfg}
}

type CatalogInfo struct {
	Items        int                          `json:"items"`
	Schema       []string                     `json:"schema"`
	Stakeholders []welfare.StakeholderWeights `json:"stakeholders"`
	Selection    config.SelectionConfig       `json:"selection"`
}

// GET /api/v1/catalog
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	cat := h.runner.Catalog()
	if cat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no catalog loaded"})
		return
	}
	writeJSON(w, http.StatusOK, CatalogInfo{
		Items:        cat.Len(),
		Schema:       cat.Schema(),
		Stakeholders: h.cfg.Stakeholders,
		Selection:    h.cfg.Selection,
	})
}
