package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-studio/internal/common"
	"github.com/noah-isme/backend-studio/internal/pricing"
)

// Handler exposes service and package endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Post("/services", h.CreateService)
	r.Post("/packages/quote", h.QuotePackage)
	r.Post("/packages", h.CreatePackage)
	r.Get("/packages/{id}", h.GetPackage)
}

// ListServices handles GET /api/v1/services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	items, err := h.service.ListServices(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// CreateService handles POST /api/v1/services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req OfferingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.service.CreateService(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// QuotePackage handles POST /api/v1/packages/quote.
func (h *Handler) QuotePackage(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req QuoteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	quote, err := h.service.QuotePackage(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

// CreatePackage handles POST /api/v1/packages.
func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req PackageRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.service.CreatePackage(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// GetPackage handles GET /api/v1/packages/{id}.
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	pkg, err := h.service.GetPackage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": pkg})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return false
	}
	return true
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := common.DecodeJSON(r, dst); err != nil {
		return err
	}
	return common.ValidateStruct(dst)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		err = common.NotFound("package not found", err)
	case errors.Is(err, ErrUnknownService):
		err = common.NewAppError("UNKNOWN_SERVICE", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, pricing.ErrInvalidInput):
		err = common.NewAppError("INVALID_INPUT", err.Error(), http.StatusBadRequest, err)
	}
	common.WriteError(w, err)
}
