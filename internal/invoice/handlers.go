package invoice

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-studio/internal/common"
	"github.com/noah-isme/backend-studio/internal/coupon"
	"github.com/noah-isme/backend-studio/internal/pricing"
)

// Handler exposes invoice endpoints.
type Handler struct {
	Svc *Service
}

type lineItemResponse struct {
	Description string        `json:"description"`
	Quantity    int64         `json:"quantity"`
	UnitPrice   pricing.Money `json:"unitPrice"`
	Amount      pricing.Money `json:"amount"`
}

type quoteResponse struct {
	LineItems          []lineItemResponse `json:"lineItems"`
	CouponCode         string             `json:"couponCode,omitempty"`
	Subtotal           pricing.Money      `json:"subtotal"`
	DiscountAmount     pricing.Money      `json:"discountAmount"`
	DiscountedSubtotal pricing.Money      `json:"discountedSubtotal"`
	TaxRate            float64            `json:"taxRate"`
	TaxAmount          pricing.Money      `json:"taxAmount"`
	Total              pricing.Money      `json:"total"`
}

type invoiceResponse struct {
	ID             string             `json:"id"`
	Number         string             `json:"number"`
	ClientID       string             `json:"clientId"`
	ClientName     string             `json:"clientName"`
	ClientEmail    string             `json:"clientEmail"`
	ClientAddress  string             `json:"clientAddress"`
	DueDate        string             `json:"dueDate"`
	LineItems      []lineItemResponse `json:"lineItems"`
	CouponCode     string             `json:"couponCode,omitempty"`
	Subtotal       pricing.Money      `json:"subtotal"`
	DiscountAmount pricing.Money      `json:"discountAmount"`
	TaxRate        float64            `json:"taxRate"`
	TaxAmount      pricing.Money      `json:"taxAmount"`
	Total          pricing.Money      `json:"total"`
	Notes          string             `json:"notes"`
	Terms          string             `json:"terms"`
	Status         string             `json:"status"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Routes mounts the invoice endpoints. create wraps the creation handler,
// typically with idempotency and rate limiting.
func (h *Handler) Routes(r chi.Router, create func(http.Handler) http.Handler) {
	r.Post("/quote", h.Quote)
	if create == nil {
		r.Post("/", h.Create)
	} else {
		r.With(create).Post("/", h.Create)
	}
	r.Get("/{id}", h.Get)
}

// Quote handles POST /api/v1/invoices/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := h.Svc.Quote(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quoteResponse{
		LineItems:          toLineItems(q.LineItems),
		CouponCode:         q.CouponCode,
		Subtotal:           q.Subtotal,
		DiscountAmount:     q.DiscountAmount,
		DiscountedSubtotal: q.DiscountedSubtotal,
		TaxRate:            q.TaxRate.InexactFloat64(),
		TaxAmount:          q.TaxAmount,
		Total:              q.Total,
	}})
}

// Create handles POST /api/v1/invoices.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	inv, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toResponse(inv)})
}

// Get handles GET /api/v1/invoices/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	inv, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(inv)})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "invoice service not configured", nil)
		return false
	}
	return true
}

func decodeRequest(r *http.Request) (Request, error) {
	var req Request
	if err := common.DecodeJSON(r, &req); err != nil {
		return Request{}, err
	}
	if err := common.ValidateStruct(req); err != nil {
		return Request{}, err
	}
	return req, nil
}

func toLineItems(items []pricing.LineItem) []lineItemResponse {
	out := make([]lineItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, lineItemResponse{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice, Amount: it.Amount})
	}
	return out
}

func toResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:             inv.ID,
		Number:         inv.Number,
		ClientID:       inv.ClientID,
		ClientName:     inv.ClientName,
		ClientEmail:    inv.ClientEmail,
		ClientAddress:  inv.ClientAddress,
		DueDate:        inv.DueDate.Format("2006-01-02"),
		LineItems:      toLineItems(inv.LineItems),
		CouponCode:     inv.CouponCode,
		Subtotal:       inv.Subtotal,
		DiscountAmount: inv.DiscountAmount,
		TaxRate:        inv.TaxRate.InexactFloat64(),
		TaxAmount:      inv.TaxAmount,
		Total:          inv.Total,
		Notes:          inv.Notes,
		Terms:          inv.Terms,
		Status:         inv.Status,
		CreatedAt:      inv.CreatedAt,
	}
}

func writeError(w http.ResponseWriter, err error) {
	if reason, ok := coupon.ReasonOf(err); ok {
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_INAPPLICABLE", err.Error(), map[string]any{"reason": reason})
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		err = common.NotFound("invoice not found", err)
	case errors.Is(err, pricing.ErrInvalidInput):
		err = common.NewAppError("INVALID_INPUT", err.Error(), http.StatusBadRequest, err)
	}
	common.WriteError(w, err)
}
