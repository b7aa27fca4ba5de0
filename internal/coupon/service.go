package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-studio/internal/obs"
	"github.com/noah-isme/backend-studio/internal/pricing"
	"github.com/noah-isme/backend-studio/internal/tenant"
)

// ErrNotFound is returned by stores when no coupon matches the code.
var ErrNotFound = errors.New("coupon not found")

// ErrDuplicateCode is returned by stores when the code already exists for the tenant.
var ErrDuplicateCode = errors.New("coupon code already exists")

// Store captures the persistence operations required by the coupon service.
type Store interface {
	GetByCode(ctx context.Context, code string) (Coupon, error)
	List(ctx context.Context, limit, offset int) ([]Coupon, int64, error)
	Create(ctx context.Context, c Coupon) (Coupon, error)
	Update(ctx context.Context, code string, c Coupon) (Coupon, error)
	IncrementUses(ctx context.Context, code string) (Coupon, error)
}

// Locker serializes work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// PreviewResult describes the outcome of evaluating a coupon without mutating state.
type PreviewResult struct {
	Code           string            `json:"code"`
	DiscountType   DiscountType      `json:"discountType"`
	DiscountAmount pricing.Money     `json:"discountAmount"`
	Breakdown      pricing.Breakdown `json:"breakdown"`
}

// Service encapsulates coupon evaluation, administration and redemption.
type Service struct {
	Store   Store
	Lock    Locker
	LockTTL time.Duration
	Now     func() time.Time
	// TaxRate is applied to the discounted subtotal in preview breakdowns.
	TaxRate decimal.Decimal
	Logger  zerolog.Logger
}

// Preview loads the coupon by code and resolves it against the purchase.
func (s *Service) Preview(ctx context.Context, code string, subtotal pricing.Money, targets Targets) (PreviewResult, error) {
	if s == nil || s.Store == nil {
		return PreviewResult{}, errors.New("coupon service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return PreviewResult{}, fmt.Errorf("code is required: %w", pricing.ErrInvalidInput)
	}
	c, err := s.Store.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observe(ReasonNotFound)
			return PreviewResult{}, inapplicable(ReasonNotFound)
		}
		return PreviewResult{}, err
	}
	discount, err := Resolve(c, subtotal, targets, s.now())
	if err != nil {
		if reason, ok := ReasonOf(err); ok {
			observe(reason)
		}
		return PreviewResult{}, err
	}
	observe("applied")
	return PreviewResult{
		Code:           c.Code,
		DiscountType:   c.DiscountType,
		DiscountAmount: discount,
		Breakdown:      pricing.AssembleTotal(subtotal, discount, s.TaxRate),
	}, nil
}

// Redeem records one use of the coupon. It is invoked once an invoice carrying
// the coupon is finalized and never by the pricing path.
func (s *Service) Redeem(ctx context.Context, code string) (Coupon, error) {
	if s == nil || s.Store == nil {
		return Coupon{}, errors.New("coupon service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Coupon{}, fmt.Errorf("code is required: %w", pricing.ErrInvalidInput)
	}
	var redeemed Coupon
	redeem := func(ctx context.Context) error {
		c, err := s.Store.GetByCode(ctx, normalized)
		if err != nil {
			return err
		}
		if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
			return inapplicable(ReasonUsageExceeded)
		}
		redeemed, err = s.Store.IncrementUses(ctx, normalized)
		return err
	}
	if s.Lock == nil {
		if err := redeem(ctx); err != nil {
			return Coupon{}, err
		}
	} else if err := s.Lock.WithLock(ctx, s.lockKey(ctx, normalized), s.LockTTL, redeem); err != nil {
		return Coupon{}, err
	}
	s.Logger.Info().Str("code", redeemed.Code).Int("current_uses", redeemed.CurrentUses).Msg("coupon redeemed")
	return redeemed, nil
}

// Get returns a coupon by code.
func (s *Service) Get(ctx context.Context, code string) (Coupon, error) {
	return s.Store.GetByCode(ctx, NormalizeCode(code))
}

// List returns a page of coupons and the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Coupon, int64, error) {
	return s.Store.List(ctx, limit, offset)
}

// Create validates and stores a new coupon.
func (s *Service) Create(ctx context.Context, c Coupon) (Coupon, error) {
	c.Code = NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		return Coupon{}, err
	}
	return s.Store.Create(ctx, c)
}

// Update replaces the mutable fields of the coupon identified by code.
func (s *Service) Update(ctx context.Context, code string, c Coupon) (Coupon, error) {
	c.Code = NormalizeCode(c.Code)
	if c.Code == "" {
		c.Code = NormalizeCode(code)
	}
	if err := c.Validate(); err != nil {
		return Coupon{}, err
	}
	return s.Store.Update(ctx, NormalizeCode(code), c)
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) lockKey(ctx context.Context, code string) string {
	id, _ := tenant.From(ctx)
	return tenant.PrefixKey(id, "lock:coupon:"+code)
}

func observe(result Reason) {
	if obs.CouponResolutionsTotal != nil {
		obs.CouponResolutionsTotal.WithLabelValues(string(result)).Inc()
	}
}
