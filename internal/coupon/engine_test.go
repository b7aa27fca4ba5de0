package coupon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-studio/internal/pricing"
)

var refNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func money(v int64) *pricing.Money { return &v }

func intPtr(v int) *int { return &v }

func TestResolveFixedAboveMinimum(t *testing.T) {
	c := Coupon{Code: "SPRING", DiscountType: DiscountFixed, DiscountValue: 1500, MinPurchaseAmount: money(5000), Active: true}
	discount, err := Resolve(c, 10_000, Targets{}, refNow)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(1500), discount)
}

func TestResolvePercentageCapped(t *testing.T) {
	c := Coupon{Code: "VIP", DiscountType: DiscountPercentage, DiscountValue: 20, MaxDiscountAmount: money(1000), Active: true}
	discount, err := Resolve(c, 10_000, Targets{}, refNow)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(1000), discount)

	c.MaxDiscountAmount = nil
	discount, err = Resolve(c, 10_000, Targets{}, refNow)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(2000), discount)
}

func TestResolveExpired(t *testing.T) {
	past := refNow.Add(-time.Minute)
	c := Coupon{Code: "OLD", DiscountType: DiscountFixed, DiscountValue: 500, ExpiresAt: &past, Active: true}
	discount, err := Resolve(c, 10_000, Targets{}, refNow)
	require.Zero(t, discount)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	require.Equal(t, ReasonExpired, reason)
	require.True(t, errors.Is(err, ErrInapplicable))

	// expiry instant itself is still valid
	c.ExpiresAt = &refNow
	_, err = Resolve(c, 10_000, Targets{}, refNow)
	require.NoError(t, err)
}

func TestResolveGateOrder(t *testing.T) {
	past := refNow.Add(-time.Hour)
	all := Coupon{
		Code:                 "ALL",
		DiscountType:         DiscountFixed,
		DiscountValue:        100,
		Active:               false,
		ExpiresAt:            &past,
		MaxUses:              intPtr(1),
		CurrentUses:          1,
		MinPurchaseAmount:    money(50_000),
		ApplicableServiceIDs: []string{"svc-a"},
		ApplicablePackageIDs: []string{"pkg-a"},
	}
	targets := Targets{ServiceIDs: []string{"svc-z"}}

	steps := []struct {
		want  Reason
		relax func(*Coupon)
	}{
		{ReasonInactive, func(c *Coupon) { c.Active = true }},
		{ReasonExpired, func(c *Coupon) { c.ExpiresAt = nil }},
		{ReasonUsageExceeded, func(c *Coupon) { c.MaxUses = nil }},
		{ReasonBelowMinimum, func(c *Coupon) { c.MinPurchaseAmount = nil }},
		{ReasonNotApplicable, func(c *Coupon) { c.ApplicablePackageIDs = nil }},
	}
	c := all
	for _, step := range steps {
		_, err := Resolve(c, 10_000, targets, refNow)
		reason, ok := ReasonOf(err)
		require.True(t, ok, "expected %s, got %v", step.want, err)
		require.Equal(t, step.want, reason)
		step.relax(&c)
	}
	discount, err := Resolve(c, 10_000, targets, refNow)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(100), discount)
}

func TestResolveScope(t *testing.T) {
	c := Coupon{
		Code:                 "SCOPED",
		DiscountType:         DiscountPercentage,
		DiscountValue:        10,
		Active:               true,
		ApplicableServiceIDs: []string{"svc-a", "svc-b"},
		ApplicablePackageIDs: []string{"pkg-a"},
	}
	_, err := Resolve(c, 10_000, Targets{ServiceIDs: []string{"svc-b"}}, refNow)
	require.NoError(t, err)
	_, err = Resolve(c, 10_000, Targets{PackageIDs: []string{"pkg-a"}}, refNow)
	require.NoError(t, err)
	_, err = Resolve(c, 10_000, Targets{}, refNow)
	reason, _ := ReasonOf(err)
	require.Equal(t, ReasonNotApplicable, reason)

	// scope ids read back from Postgres are lowercase; client targets may not be
	c.ApplicableServiceIDs = []string{"5b0c4a52-8f0e-4d6f-9b1e-3f3d2f1c7a10"}
	_, err = Resolve(c, 10_000, Targets{ServiceIDs: []string{" 5B0C4A52-8F0E-4D6F-9B1E-3F3D2F1C7A10 "}}, refNow)
	require.NoError(t, err)

	// a coupon without scope applies to everything
	c.ApplicableServiceIDs, c.ApplicablePackageIDs = nil, nil
	_, err = Resolve(c, 10_000, Targets{}, refNow)
	require.NoError(t, err)
}

func TestResolveNeverExceedsSubtotalOrCap(t *testing.T) {
	for _, c := range []Coupon{
		{Code: "F", DiscountType: DiscountFixed, DiscountValue: 99_999, Active: true},
		{Code: "P", DiscountType: DiscountPercentage, DiscountValue: 100, Active: true, MaxDiscountAmount: money(750)},
		{Code: "Q", DiscountType: DiscountPercentage, DiscountValue: 37, Active: true},
	} {
		for subtotal := pricing.Money(0); subtotal <= 12_000; subtotal += 333 {
			discount, err := Resolve(c, subtotal, Targets{}, refNow)
			require.NoError(t, err)
			require.LessOrEqual(t, discount, subtotal)
			require.GreaterOrEqual(t, discount, pricing.Money(0))
			if c.MaxDiscountAmount != nil {
				require.LessOrEqual(t, discount, *c.MaxDiscountAmount)
			}
		}
	}
}

func TestResolveRejectsNegativeSubtotal(t *testing.T) {
	c := Coupon{Code: "X", DiscountType: DiscountFixed, DiscountValue: 1, Active: true}
	_, err := Resolve(c, -1, Targets{}, refNow)
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
	_, isCoupon := ReasonOf(err)
	require.False(t, isCoupon)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Coupon{Code: "ok", DiscountType: DiscountPercentage, DiscountValue: 100}.Validate())
	require.ErrorIs(t, Coupon{Code: " ", DiscountType: DiscountFixed}.Validate(), pricing.ErrInvalidInput)
	require.ErrorIs(t, Coupon{Code: "x", DiscountType: DiscountPercentage, DiscountValue: 101}.Validate(), pricing.ErrInvalidInput)
	require.ErrorIs(t, Coupon{Code: "x", DiscountType: "bogo"}.Validate(), pricing.ErrInvalidInput)
	require.ErrorIs(t, Coupon{Code: "x", DiscountType: DiscountFixed, MaxUses: intPtr(-1)}.Validate(), pricing.ErrInvalidInput)
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "SUMMER25", NormalizeCode("  summer25 "))
}
