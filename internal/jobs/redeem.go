package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-studio/internal/coupon"
	"github.com/noah-isme/backend-studio/internal/obs"
	"github.com/noah-isme/backend-studio/internal/tenant"
)

// TypeCouponRedeem records one coupon use after an invoice was persisted.
const TypeCouponRedeem = "coupon:redeem"

// RedeemPayload is the task body of TypeCouponRedeem.
type RedeemPayload struct {
	TenantID  string `json:"tenantId"`
	Code      string `json:"code"`
	InvoiceID string `json:"invoiceId"`
}

// NewRedeemTask builds a coupon redemption task. The task id is derived from the
// invoice so a retried enqueue never redeems twice.
func NewRedeemTask(p RedeemPayload, maxRetry int) (*asynq.Task, error) {
	if strings.TrimSpace(p.Code) == "" || strings.TrimSpace(p.InvoiceID) == "" {
		return nil, errors.New("jobs: code and invoice id are required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if maxRetry <= 0 {
		maxRetry = 10
	}
	return asynq.NewTask(TypeCouponRedeem, raw,
		asynq.TaskID("redeem:"+p.InvoiceID),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(30*time.Second),
	), nil
}

// Enqueuer publishes tasks through an asynq client.
type Enqueuer struct {
	Client   *asynq.Client
	Queue    string
	MaxRetry int
}

// EnqueueRedeem schedules the redemption of code for invoiceID.
func (e Enqueuer) EnqueueRedeem(ctx context.Context, tenantID, code, invoiceID string) error {
	if e.Client == nil {
		return errors.New("jobs: asynq client not configured")
	}
	task, err := NewRedeemTask(RedeemPayload{TenantID: tenantID, Code: code, InvoiceID: invoiceID}, e.MaxRetry)
	if err != nil {
		return err
	}
	var opts []asynq.Option
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", TypeCouponRedeem, err)
	}
	return nil
}

// Redeemer consumes one coupon use.
type Redeemer interface {
	Redeem(ctx context.Context, code string) (coupon.Coupon, error)
}

// RedeemHandler processes TypeCouponRedeem tasks.
type RedeemHandler struct {
	Coupons Redeemer
	Logger  zerolog.Logger
}

// ProcessTask implements asynq.Handler. Exhausted or missing coupons are not retried.
func (h RedeemHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p RedeemPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.TenantID != "" {
		ctx = tenant.With(ctx, p.TenantID)
	}
	log := h.Logger.With().Str("task", t.Type()).Str("tenant_id", p.TenantID).Str("code", p.Code).Str("invoice_id", p.InvoiceID).Logger()

	c, err := h.Coupons.Redeem(ctx, p.Code)
	switch {
	case err == nil:
		countRedemption("redeemed")
		log.Info().Int("current_uses", c.CurrentUses).Msg("coupon redemption processed")
		return nil
	case errors.Is(err, coupon.ErrInapplicable), errors.Is(err, coupon.ErrNotFound):
		countRedemption("rejected")
		log.Warn().Err(err).Msg("coupon redemption rejected")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		countRedemption("error")
		log.Error().Err(err).Msg("coupon redemption failed")
		return err
	}
}

// Register binds every task handler to mux.
func Register(mux *asynq.ServeMux, redeem RedeemHandler) {
	mux.Handle(TypeCouponRedeem, redeem)
}

func countRedemption(result string) {
	if obs.CouponRedemptionsTotal != nil {
		obs.CouponRedemptionsTotal.WithLabelValues(result).Inc()
	}
}
