package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-studio/internal/coupon"
	"github.com/noah-isme/backend-studio/internal/pricing"
	"github.com/noah-isme/backend-studio/internal/tenant"
)

type memStore struct {
	mu       sync.Mutex
	seq      int64
	invoices map[string]Invoice
}

func (m *memStore) Create(_ context.Context, inv Invoice) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invoices == nil {
		m.invoices = map[string]Invoice{}
	}
	m.seq++
	inv.ID = fmt.Sprintf("inv-%d", m.seq)
	inv.Number = FormatNumber(m.seq)
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *memStore) Get(_ context.Context, id string) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

type stubCoupons map[string]coupon.Coupon

func (s stubCoupons) Preview(_ context.Context, code string, subtotal pricing.Money, targets coupon.Targets) (coupon.PreviewResult, error) {
	c, ok := s[coupon.NormalizeCode(code)]
	if !ok {
		return coupon.PreviewResult{}, &coupon.InapplicableError{Reason: coupon.ReasonNotFound}
	}
	discount, err := coupon.Resolve(c, subtotal, targets, c.CreatedAt)
	if err != nil {
		return coupon.PreviewResult{}, err
	}
	return coupon.PreviewResult{Code: c.Code, DiscountType: c.DiscountType, DiscountAmount: discount}, nil
}

type redemption struct{ tenantID, code, invoiceID string }

type recordingEnqueuer struct {
	calls []redemption
}

func (r *recordingEnqueuer) EnqueueRedeem(_ context.Context, tenantID, code, invoiceID string) error {
	r.calls = append(r.calls, redemption{tenantID, code, invoiceID})
	return nil
}

func newTestService(logs *bytes.Buffer) (*Service, *recordingEnqueuer) {
	minPurchase := pricing.Money(5000)
	enq := &recordingEnqueuer{}
	return &Service{
		Store: &memStore{},
		Coupons: stubCoupons{
			"SPRING": {Code: "SPRING", DiscountType: coupon.DiscountFixed, DiscountValue: 1500, MinPurchaseAmount: &minPurchase, Active: true},
			"PAUSED": {Code: "PAUSED", DiscountType: coupon.DiscountFixed, DiscountValue: 1500, Active: false},
		},
		Redemptions:    enq,
		DefaultTaxRate: decimal.RequireFromString("8.5"),
		Logger:         zerolog.New(logs),
	}, enq
}

func rate(v float64) *float64 { return &v }

func baseRequest() Request {
	return Request{
		ClientID:    "c-1",
		ClientName:  "Ada Lovelace",
		ClientEmail: "ada@example.com",
		DueDate:     "2026-11-30",
		LineItems:   []LineItemPayload{{Description: "Portrait session", Quantity: 2, UnitPrice: 5000}},
		TaxRate:     rate(8.5),
	}
}

func TestQuoteWithCoupon(t *testing.T) {
	svc, _ := newTestService(&bytes.Buffer{})
	req := baseRequest()
	req.CouponCode = "spring"
	q, err := svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(10_000), q.Subtotal)
	require.Equal(t, pricing.Money(1500), q.DiscountAmount)
	require.Equal(t, pricing.Money(723), q.TaxAmount)
	require.Equal(t, pricing.Money(9223), q.Total)
	require.Equal(t, "SPRING", q.CouponCode)
	require.Equal(t, pricing.Money(10_000), q.LineItems[0].Amount)
}

func TestQuoteDefaultsTaxRate(t *testing.T) {
	svc, _ := newTestService(&bytes.Buffer{})
	req := baseRequest()
	req.TaxRate = nil
	q, err := svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(850), q.TaxAmount)
	require.Equal(t, pricing.Money(10_850), q.Total)
}

func TestCreateRecomputesTotalsAndSchedulesRedemption(t *testing.T) {
	var logs bytes.Buffer
	svc, enq := newTestService(&logs)
	ctx := tenant.With(context.Background(), "7d1c2f4e-5b6a-4c3d-9e8f-0a1b2c3d4e5f")

	req := baseRequest()
	req.CouponCode = "SPRING"
	req.Subtotal, req.TaxAmount, req.Total = 10_000, 850, 10_850 // stale client math
	inv, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "INV-000001", inv.Number)
	require.Equal(t, pricing.Money(9223), inv.Total)
	require.Equal(t, StatusDraft, inv.Status)
	require.Contains(t, logs.String(), "client invoice totals differ")
	require.Equal(t, []redemption{{"7d1c2f4e-5b6a-4c3d-9e8f-0a1b2c3d4e5f", "SPRING", inv.ID}}, enq.calls)

	second, err := svc.Create(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, "INV-000002", second.Number)
	require.Len(t, enq.calls, 1)
}

func TestCreateRejectsBadDueDate(t *testing.T) {
	svc, _ := newTestService(&bytes.Buffer{})
	req := baseRequest()
	req.DueDate = "30/11/2026"
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, &buf))
	return rec
}

func TestHandlers(t *testing.T) {
	svc, _ := newTestService(&bytes.Buffer{})
	r := chi.NewRouter()
	r.Route("/invoices", func(r chi.Router) { (&Handler{Svc: svc}).Routes(r, nil) })

	rec := post(t, r, "/invoices/quote", baseRequest())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"taxRate":8.5`)
	require.Contains(t, rec.Body.String(), `"total":10850`)

	rec = post(t, r, "/invoices", baseRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data invoiceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "2026-11-30", created.Data.DueDate)

	get := httptest.NewRecorder()
	r.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/invoices/"+created.Data.ID, nil))
	require.Equal(t, http.StatusOK, get.Code)

	get = httptest.NewRecorder()
	r.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/invoices/missing", nil))
	require.Equal(t, http.StatusNotFound, get.Code)

	flat := baseRequest()
	flat.LineItems = []LineItemPayload{{Description: "Retouching", UnitPrice: 5000, Amount: 5000}}
	rec = post(t, r, "/invoices", flat)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var defaulted struct {
		Data invoiceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defaulted))
	require.Equal(t, pricing.Money(5000), defaulted.Data.Subtotal)
	require.Equal(t, int64(1), defaulted.Data.LineItems[0].Quantity)

	huge := baseRequest()
	huge.LineItems = []LineItemPayload{{Description: "Wrap", Quantity: 1 << 40, UnitPrice: 1 << 40}}
	rec = post(t, r, "/invoices/quote", huge)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "quantity")
	require.Contains(t, rec.Body.String(), "unitPrice")

	bad := baseRequest()
	bad.TaxRate = rate(101)
	bad.ClientEmail = "not-an-email"
	rec = post(t, r, "/invoices", bad)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "taxRate") && strings.Contains(rec.Body.String(), "clientEmail"))

	paused := baseRequest()
	paused.CouponCode = "PAUSED"
	rec = post(t, r, "/invoices", paused)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"reason":"inactive"`)

	empty := baseRequest()
	empty.LineItems = nil
	rec = post(t, r, "/invoices/quote", empty)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
