package coupon

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-studio/internal/common"
	"github.com/noah-isme/backend-studio/internal/pricing"
)

// Handler exposes coupon preview and administrative endpoints.
type Handler struct {
	Svc *Service
}

type couponPayload struct {
	Code                 string     `json:"code" validate:"required,max=64"`
	DiscountType         string     `json:"discountType" validate:"required,oneof=percentage fixed"`
	DiscountValue        int64      `json:"discountValue" validate:"gte=0"`
	ApplicableServiceIDs []string   `json:"applicableServiceIds" validate:"omitempty,dive,uuid"`
	ApplicablePackageIDs []string   `json:"applicablePackageIds" validate:"omitempty,dive,uuid"`
	MinPurchaseAmount    *int64     `json:"minPurchaseAmount" validate:"omitempty,gte=0"`
	MaxDiscountAmount    *int64     `json:"maxDiscountAmount" validate:"omitempty,gte=0"`
	MaxUses              *int       `json:"maxUses" validate:"omitempty,gte=0"`
	ExpiresAt            *time.Time `json:"expiresAt"`
	Active               *bool      `json:"active"`
}

type couponResponse struct {
	ID                   string     `json:"id"`
	Code                 string     `json:"code"`
	DiscountType         string     `json:"discountType"`
	DiscountValue        int64      `json:"discountValue"`
	ApplicableServiceIDs []string   `json:"applicableServiceIds"`
	ApplicablePackageIDs []string   `json:"applicablePackageIds"`
	MinPurchaseAmount    *int64     `json:"minPurchaseAmount"`
	MaxDiscountAmount    *int64     `json:"maxDiscountAmount"`
	MaxUses              *int       `json:"maxUses"`
	CurrentUses          int        `json:"currentUses"`
	ExpiresAt            *time.Time `json:"expiresAt"`
	Active               bool       `json:"active"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

type previewRequest struct {
	Code       string   `json:"code" validate:"required"`
	Subtotal   int64    `json:"subtotal" validate:"gte=0"`
	ServiceIDs []string `json:"serviceIds"`
	PackageIDs []string `json:"packageIds"`
}

// AdminRoutes mounts coupon administration on r.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{code}", h.Get)
	r.Put("/{code}", h.Update)
}

// Preview handles POST /api/v1/coupons/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req previewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Svc.Preview(r.Context(), req.Code, req.Subtotal, Targets{ServiceIDs: req.ServiceIDs, PackageIDs: req.PackageIDs})
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Create handles POST /api/v1/admin/coupons.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	c, err := decodeCoupon(r)
	if err != nil {
		writeError(w, err)
		return
	}
	created, err := h.Svc.Create(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toResponse(created)})
}

// Update handles PUT /api/v1/admin/coupons/{code}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	c, err := decodeCoupon(r)
	if err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.Svc.Update(r.Context(), code, c)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(updated)})
}

// Get handles GET /api/v1/admin/coupons/{code}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(c)})
}

// List handles GET /api/v1/admin/coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	items, total, err := h.Svc.List(r.Context(), perPage, common.Offset(page, perPage))
	if err != nil {
		writeError(w, err)
		return
	}
	data := make([]couponResponse, 0, len(items))
	for _, c := range items {
		data = append(data, toResponse(c))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       data,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return false
	}
	return true
}

func decodeCoupon(r *http.Request) (Coupon, error) {
	var payload couponPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		return Coupon{}, err
	}
	if err := common.ValidateStruct(payload); err != nil {
		return Coupon{}, err
	}
	c := Coupon{
		Code:                 payload.Code,
		DiscountType:         DiscountType(payload.DiscountType),
		DiscountValue:        payload.DiscountValue,
		ApplicableServiceIDs: payload.ApplicableServiceIDs,
		ApplicablePackageIDs: payload.ApplicablePackageIDs,
		MinPurchaseAmount:    payload.MinPurchaseAmount,
		MaxDiscountAmount:    payload.MaxDiscountAmount,
		MaxUses:              payload.MaxUses,
		ExpiresAt:            payload.ExpiresAt,
		Active:               true,
	}
	if payload.Active != nil {
		c.Active = *payload.Active
	}
	return c, nil
}

func toResponse(c Coupon) couponResponse {
	services := c.ApplicableServiceIDs
	if services == nil {
		services = []string{}
	}
	packages := c.ApplicablePackageIDs
	if packages == nil {
		packages = []string{}
	}
	return couponResponse{
		ID:                   c.ID,
		Code:                 c.Code,
		DiscountType:         string(c.DiscountType),
		DiscountValue:        c.DiscountValue,
		ApplicableServiceIDs: services,
		ApplicablePackageIDs: packages,
		MinPurchaseAmount:    c.MinPurchaseAmount,
		MaxDiscountAmount:    c.MaxDiscountAmount,
		MaxUses:              c.MaxUses,
		CurrentUses:          c.CurrentUses,
		ExpiresAt:            c.ExpiresAt,
		Active:               c.Active,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func writeError(w http.ResponseWriter, err error) {
	if reason, ok := ReasonOf(err); ok {
		status := http.StatusUnprocessableEntity
		if reason == ReasonNotFound {
			status = http.StatusNotFound
		}
		common.JSONError(w, status, "COUPON_INAPPLICABLE", err.Error(), map[string]any{"reason": reason})
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		err = common.NotFound("coupon not found", err)
	case errors.Is(err, ErrDuplicateCode):
		err = common.NewAppError("CONFLICT", "coupon code already exists", http.StatusConflict, err)
	case errors.Is(err, pricing.ErrInvalidInput):
		err = common.NewAppError("INVALID_INPUT", err.Error(), http.StatusBadRequest, err)
	}
	common.WriteError(w, err)
}
