package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-studio/internal/coupon"
	"github.com/noah-isme/backend-studio/internal/obs"
	"github.com/noah-isme/backend-studio/internal/pricing"
	"github.com/noah-isme/backend-studio/internal/tenant"
)

// ErrNotFound is returned when an invoice does not exist for the tenant.
var ErrNotFound = errors.New("invoice not found")

// Store persists invoices. Create allocates the invoice number and writes the
// invoice with its line items atomically.
type Store interface {
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	Get(ctx context.Context, id string) (Invoice, error)
}

// CouponPreviewer resolves a coupon without consuming it.
type CouponPreviewer interface {
	Preview(ctx context.Context, code string, subtotal pricing.Money, targets coupon.Targets) (coupon.PreviewResult, error)
}

// RedemptionEnqueuer schedules the coupon use that follows a persisted invoice.
type RedemptionEnqueuer interface {
	EnqueueRedeem(ctx context.Context, tenantID, code, invoiceID string) error
}

// Quote is the server-side pricing of an invoice request.
type Quote struct {
	LineItems  []pricing.LineItem `json:"lineItems"`
	CouponCode string             `json:"couponCode,omitempty"`
	pricing.Breakdown
}

// Service prices and persists invoices.
type Service struct {
	Store          Store
	Coupons        CouponPreviewer
	Redemptions    RedemptionEnqueuer
	DefaultTaxRate decimal.Decimal
	Logger         zerolog.Logger
}

// Quote aggregates the lines, resolves the optional coupon and assembles totals.
func (s *Service) Quote(ctx context.Context, req Request) (Quote, error) {
	items := pricing.NormalizeAll(req.lineItems())
	subtotal, err := pricing.Aggregate(items)
	if err != nil {
		return Quote{}, err
	}
	var (
		discount pricing.Money
		code     string
	)
	if strings.TrimSpace(req.CouponCode) != "" {
		if s.Coupons == nil {
			return Quote{}, errors.New("invoice: coupon resolver not configured")
		}
		res, err := s.Coupons.Preview(ctx, req.CouponCode, subtotal, coupon.Targets{ServiceIDs: req.ServiceIDs, PackageIDs: req.PackageIDs})
		if err != nil {
			return Quote{}, err
		}
		discount, code = res.DiscountAmount, res.Code
	}
	return Quote{
		LineItems:  items,
		CouponCode: code,
		Breakdown:  pricing.AssembleTotal(subtotal, discount, s.taxRate(req)),
	}, nil
}

// Create recomputes the totals, persists the invoice and schedules coupon redemption.
func (s *Service) Create(ctx context.Context, req Request) (Invoice, error) {
	if s == nil || s.Store == nil {
		return Invoice{}, errors.New("invoice: store not configured")
	}
	due, err := ParseDueDate(req.DueDate)
	if err != nil {
		return Invoice{}, err
	}
	q, err := s.Quote(ctx, req)
	if err != nil {
		return Invoice{}, err
	}
	if clientTotalsDiffer(req, q) {
		s.Logger.Warn().
			Int64("client_subtotal", req.Subtotal).Int64("subtotal", q.Subtotal).
			Int64("client_tax", req.TaxAmount).Int64("tax", q.TaxAmount).
			Int64("client_total", req.Total).Int64("total", q.Total).
			Msg("client invoice totals differ from server computation")
	}

	created, err := s.Store.Create(ctx, Invoice{
		ClientID:       strings.TrimSpace(req.ClientID),
		ClientName:     strings.TrimSpace(req.ClientName),
		ClientEmail:    strings.TrimSpace(req.ClientEmail),
		ClientAddress:  strings.TrimSpace(req.ClientAddress),
		DueDate:        due,
		LineItems:      q.LineItems,
		CouponCode:     q.CouponCode,
		Subtotal:       q.Subtotal,
		DiscountAmount: q.DiscountAmount,
		TaxRate:        q.TaxRate,
		TaxAmount:      q.TaxAmount,
		Total:          q.Total,
		Notes:          req.Notes,
		Terms:          req.Terms,
		Status:         StatusDraft,
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	if obs.InvoicesCreatedTotal != nil {
		obs.InvoicesCreatedTotal.WithLabelValues(fmt.Sprint(created.CouponCode != "")).Inc()
	}

	if created.CouponCode != "" && s.Redemptions != nil {
		tenantID, _ := tenant.From(ctx)
		if err := s.Redemptions.EnqueueRedeem(ctx, tenantID, created.CouponCode, created.ID); err != nil {
			s.Logger.Error().Err(err).Str("invoice_id", created.ID).Str("coupon", created.CouponCode).Msg("enqueue coupon redemption")
		}
	}
	s.Logger.Info().Str("invoice_id", created.ID).Str("number", created.Number).Int64("total", created.Total).Msg("invoice created")
	return created, nil
}

// Get returns an invoice by id.
func (s *Service) Get(ctx context.Context, id string) (Invoice, error) {
	return s.Store.Get(ctx, strings.TrimSpace(id))
}

func (s *Service) taxRate(req Request) decimal.Decimal {
	if req.TaxRate == nil {
		return s.DefaultTaxRate
	}
	return decimal.NewFromFloat(*req.TaxRate)
}

// clientTotalsDiffer ignores totals the client left out.
func clientTotalsDiffer(req Request, q Quote) bool {
	return (req.Subtotal != 0 && req.Subtotal != q.Subtotal) ||
		(req.TaxAmount != 0 && req.TaxAmount != q.TaxAmount) ||
		(req.Total != 0 && req.Total != q.Total)
}
