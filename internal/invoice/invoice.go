package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-studio/internal/pricing"
)

// Invoice is a persisted bill with totals computed by the pricing engine.
type Invoice struct {
	ID             string
	Number         string
	ClientID       string
	ClientName     string
	ClientEmail    string
	ClientAddress  string
	DueDate        time.Time
	LineItems      []pricing.LineItem
	CouponCode     string
	Subtotal       pricing.Money
	DiscountAmount pricing.Money
	TaxRate        decimal.Decimal
	TaxAmount      pricing.Money
	Total          pricing.Money
	Notes          string
	Terms          string
	Status         string
	CreatedAt      time.Time
}

// StatusDraft is the status of a freshly created invoice.
const StatusDraft = "draft"

// LineItemPayload is one line of an invoice request.
type LineItemPayload struct {
	Description string `json:"description" validate:"required,max=500"`
	Quantity    int64  `json:"quantity" validate:"gte=0,lte=1000000"`
	UnitPrice   int64  `json:"unitPrice" validate:"gte=0,lte=100000000000"`
	Amount      int64  `json:"amount" validate:"gte=0,lte=100000000000"`
}

// Request is the invoice creation payload. Subtotal, TaxAmount and Total are
// advisory; the server recomputes them.
type Request struct {
	ClientID      string            `json:"clientId" validate:"required,max=64"`
	ClientName    string            `json:"clientName" validate:"required,max=200"`
	ClientEmail   string            `json:"clientEmail" validate:"required,email"`
	ClientAddress string            `json:"clientAddress" validate:"max=500"`
	DueDate       string            `json:"dueDate" validate:"required"`
	LineItems     []LineItemPayload `json:"lineItems" validate:"required,min=1,dive"`
	Subtotal      int64             `json:"subtotal" validate:"gte=0"`
	TaxRate       *float64          `json:"taxRate" validate:"omitempty,gte=0,lte=100"`
	TaxAmount     int64             `json:"taxAmount" validate:"gte=0"`
	Total         int64             `json:"total" validate:"gte=0"`
	Notes         string            `json:"notes" validate:"max=4000"`
	Terms         string            `json:"terms" validate:"max=4000"`
	CouponCode    string            `json:"couponCode" validate:"omitempty,max=64"`
	ServiceIDs    []string          `json:"serviceIds"`
	PackageIDs    []string          `json:"packageIds"`
}

// lineItems converts the payload lines into engine line items.
func (r Request) lineItems() []pricing.LineItem {
	items := make([]pricing.LineItem, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		items = append(items, pricing.LineItem{
			Description: strings.TrimSpace(li.Description),
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Amount:      li.Amount,
		})
	}
	return items
}

var dueDateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseDueDate accepts an ISO 8601 date or timestamp.
func ParseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("dueDate %q is not ISO 8601: %w", raw, pricing.ErrInvalidInput)
}

// FormatNumber renders a sequential per-tenant invoice number.
func FormatNumber(seq int64) string {
	return fmt.Sprintf("INV-%06d", seq)
}
