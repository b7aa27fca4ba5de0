package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-studio/internal/pricing"
)

// DiscountType selects how DiscountValue is interpreted.
type DiscountType string

const (
	// DiscountPercentage takes DiscountValue percent (0-100) off the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes DiscountValue cents off the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Reason identifies why a coupon cannot be applied.
type Reason string

const (
	ReasonInactive      Reason = "inactive"
	ReasonExpired       Reason = "expired"
	ReasonUsageExceeded Reason = "usage_exceeded"
	ReasonBelowMinimum  Reason = "below_minimum"
	ReasonNotApplicable Reason = "not_applicable_to_items"
	// ReasonNotFound is reported by the service when no coupon matches the code.
	ReasonNotFound Reason = "not_found"
)

// ErrInapplicable matches every InapplicableError through errors.Is.
var ErrInapplicable = errors.New("coupon inapplicable")

// InapplicableError is the typed failure returned by Resolve.
type InapplicableError struct {
	Reason Reason
}

func (e *InapplicableError) Error() string {
	return "coupon inapplicable: " + string(e.Reason)
}

// Is lets errors.Is(err, ErrInapplicable) succeed for any reason.
func (e *InapplicableError) Is(target error) bool {
	return target == ErrInapplicable
}

func inapplicable(r Reason) error {
	return &InapplicableError{Reason: r}
}

// ReasonOf extracts the inapplicability reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var ie *InapplicableError
	if errors.As(err, &ie) {
		return ie.Reason, true
	}
	return "", false
}

// Coupon captures the runtime constraints of a discount code.
type Coupon struct {
	ID                   string
	Code                 string
	DiscountType         DiscountType
	DiscountValue        int64
	ApplicableServiceIDs []string
	ApplicablePackageIDs []string
	MinPurchaseAmount    *pricing.Money
	MaxDiscountAmount    *pricing.Money
	MaxUses              *int
	CurrentUses          int
	ExpiresAt            *time.Time
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Targets lists the entities a purchase contains.
type Targets struct {
	ServiceIDs []string
	PackageIDs []string
}

// NormalizeCode trims and uppercases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the coupon record itself for contract violations.
func (c Coupon) Validate() error {
	if NormalizeCode(c.Code) == "" {
		return fmt.Errorf("coupon code is required: %w", pricing.ErrInvalidInput)
	}
	switch c.DiscountType {
	case DiscountPercentage:
		if c.DiscountValue < 0 || c.DiscountValue > 100 {
			return fmt.Errorf("percentage discount must be within 0-100: %w", pricing.ErrInvalidInput)
		}
	case DiscountFixed:
		if c.DiscountValue < 0 {
			return fmt.Errorf("fixed discount must not be negative: %w", pricing.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown discount type %q: %w", c.DiscountType, pricing.ErrInvalidInput)
	}
	if c.MinPurchaseAmount != nil && *c.MinPurchaseAmount < 0 {
		return fmt.Errorf("minimum purchase must not be negative: %w", pricing.ErrInvalidInput)
	}
	if c.MaxDiscountAmount != nil && *c.MaxDiscountAmount < 0 {
		return fmt.Errorf("maximum discount must not be negative: %w", pricing.ErrInvalidInput)
	}
	if c.MaxUses != nil && *c.MaxUses < 0 {
		return fmt.Errorf("max uses must not be negative: %w", pricing.ErrInvalidInput)
	}
	if c.CurrentUses < 0 {
		return fmt.Errorf("current uses must not be negative: %w", pricing.ErrInvalidInput)
	}
	return nil
}

// Check runs the applicability gate in order and returns the first failure.
func (c Coupon) Check(subtotal pricing.Money, targets Targets, now time.Time) error {
	if !c.Active {
		return inapplicable(ReasonInactive)
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return inapplicable(ReasonExpired)
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return inapplicable(ReasonUsageExceeded)
	}
	if c.MinPurchaseAmount != nil && subtotal < *c.MinPurchaseAmount {
		return inapplicable(ReasonBelowMinimum)
	}
	if len(c.ApplicableServiceIDs) > 0 && len(c.ApplicablePackageIDs) > 0 {
		if !intersects(c.ApplicableServiceIDs, targets.ServiceIDs) && !intersects(c.ApplicablePackageIDs, targets.PackageIDs) {
			return inapplicable(ReasonNotApplicable)
		}
	}
	return nil
}

// Resolve validates the coupon against the purchase and computes the discount.
// The discount never exceeds MaxDiscountAmount nor the subtotal.
func Resolve(c Coupon, subtotal pricing.Money, targets Targets, now time.Time) (pricing.Money, error) {
	if subtotal < 0 {
		return 0, fmt.Errorf("subtotal must not be negative: %w", pricing.ErrInvalidInput)
	}
	if err := c.Check(subtotal, targets, now); err != nil {
		return 0, err
	}
	return Compute(c, subtotal), nil
}

// Compute determines the discount amount without running the applicability gate.
func Compute(c Coupon, subtotal pricing.Money) pricing.Money {
	var raw pricing.Money
	switch c.DiscountType {
	case DiscountPercentage:
		raw = pricing.Percent(subtotal, decimal.NewFromInt(c.DiscountValue))
	case DiscountFixed:
		raw = c.DiscountValue
	}
	if c.MaxDiscountAmount != nil && raw > *c.MaxDiscountAmount {
		raw = *c.MaxDiscountAmount
	}
	if raw > subtotal {
		raw = subtotal
	}
	if raw < 0 {
		return 0
	}
	return raw
}

func intersects(scope, ids []string) bool {
	if len(scope) == 0 || len(ids) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(scope))
	for _, id := range scope {
		set[canonicalID(id)] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := set[canonicalID(id)]; ok {
			return true
		}
	}
	return false
}

// canonicalID matches the lowercase form Postgres returns for uuid values.
func canonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
