package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"carprice/internal/domain"
	"carprice/internal/observability"
	"carprice/internal/service"
)

// CatalogHandler serves the option lists for the prediction form.
type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) DropdownOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.catalog.DropdownOptions(r.Context())
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *CatalogHandler) BrandModelMapping(w http.ResponseWriter, r *http.Request) {
	mapping, err := h.catalog.BrandModelMapping(r.Context())
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}

func (h *CatalogHandler) failed(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(r.Context()).Error("catalog unavailable",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	if errors.Is(err, domain.ErrCatalogUnavailable) {
		writeError(w, http.StatusInternalServerError, "Dataset is not available")
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
