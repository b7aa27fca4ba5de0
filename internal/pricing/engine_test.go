package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAggregateRecomputesAmount(t *testing.T) {
	subtotal, err := Aggregate([]LineItem{{Description: "Consultation", Quantity: 2, UnitPrice: 5000, Amount: 1}})
	require.NoError(t, err)
	require.Equal(t, Money(10_000), subtotal)
}

func TestAggregateFlatAmountAndEmpty(t *testing.T) {
	subtotal, err := Aggregate(nil)
	require.NoError(t, err)
	require.Zero(t, subtotal)

	items := []LineItem{
		{Description: "Travel fee", Amount: 2500},
		{Description: "Session", Quantity: 3, UnitPrice: 1000},
	}
	subtotal, err = Aggregate(items)
	require.NoError(t, err)
	require.Equal(t, Money(5500), subtotal)

	normalized := NormalizeAll(items)
	require.Equal(t, int64(1), normalized[0].Quantity)
	require.Equal(t, Money(3000), normalized[1].Amount)
}

func TestAggregateDefaultsMissingQuantity(t *testing.T) {
	items := []LineItem{{Description: "Session", UnitPrice: 5000, Amount: 5000}}
	subtotal, err := Aggregate(items)
	require.NoError(t, err)
	require.Equal(t, Money(5000), subtotal)

	normalized := NormalizeAll(items)
	require.Equal(t, int64(1), normalized[0].Quantity)
	require.Equal(t, Money(5000), normalized[0].Amount)
}

func TestAggregateRejectsOverflow(t *testing.T) {
	cases := map[string][]LineItem{
		"line product": {{Description: "x", Quantity: 1 << 40, UnitPrice: 1 << 40}},
		"wide product": {{Description: "x", Quantity: 1 << 33, UnitPrice: (1 << 31) + 1}},
		"running sum": {
			{Description: "a", Amount: math.MaxInt64 - 10},
			{Description: "b", Amount: 11},
		},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Aggregate(items)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	subtotal, err := Aggregate([]LineItem{{Description: "a", Amount: math.MaxInt64 - 10}, {Description: "b", Amount: 10}})
	require.NoError(t, err)
	require.Equal(t, Money(math.MaxInt64), subtotal)
}

func TestAggregateRejectsInvalidLines(t *testing.T) {
	cases := map[string]LineItem{
		"blank description": {Description: " ", Quantity: 1, UnitPrice: 100},
		"negative price":    {Description: "x", Quantity: 1, UnitPrice: -1},
		"negative quantity": {Description: "x", Quantity: -2, UnitPrice: 100},
		"negative flat":     {Description: "x", Amount: -5},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Aggregate([]LineItem{item})
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestApplyTaxFractionalRate(t *testing.T) {
	require.Equal(t, Money(850), ApplyTax(10_000, decimal.RequireFromString("8.5")))
	require.Equal(t, Money(0), ApplyTax(10_000, decimal.Zero))
	// 333 * 7.5% = 24.975
	require.Equal(t, Money(25), ApplyTax(333, decimal.RequireFromString("7.5")))
	// negative rates are computed, not rejected
	require.Equal(t, Money(-100), ApplyTax(1000, decimal.NewFromInt(-10)))
}

func TestAssembleTotal(t *testing.T) {
	rate := decimal.RequireFromString("8.5")
	b := AssembleTotal(10_000, 0, rate)
	require.Equal(t, Money(850), b.TaxAmount)
	require.Equal(t, Money(10_850), b.Total)

	b = AssembleTotal(10_000, 1500, rate)
	require.Equal(t, Money(8500), b.DiscountedSubtotal)
	require.Equal(t, Money(723), b.TaxAmount) // 722.5 rounds up
	require.Equal(t, Money(9223), b.Total)
}

func TestAssembleTotalNeverNegative(t *testing.T) {
	rate := decimal.NewFromInt(20)
	for subtotal := Money(0); subtotal <= 5000; subtotal += 250 {
		for discount := Money(0); discount <= 7000; discount += 700 {
			b := AssembleTotal(subtotal, discount, rate)
			require.GreaterOrEqual(t, b.DiscountedSubtotal, Money(0))
			require.GreaterOrEqual(t, b.Total, Money(0))
			require.Equal(t, b, AssembleTotal(subtotal, discount, rate))
		}
	}
}

func TestAssembleTotalTaxComposition(t *testing.T) {
	for _, raw := range []string{"0", "5", "8.25", "12.5", "100"} {
		rate := decimal.RequireFromString(raw)
		for subtotal := Money(1); subtotal < 20_000; subtotal += 997 {
			b := AssembleTotal(subtotal, 0, rate)
			require.Equal(t, subtotal+ApplyTax(subtotal, rate), b.Total, "rate %s subtotal %d", raw, subtotal)
		}
	}
}

func TestPackageDiscount(t *testing.T) {
	require.Equal(t, Money(1125), PackageDiscount(7500, 15))
	require.Equal(t, Money(0), PackageDiscount(7500, 0))
	require.Equal(t, Money(7500), PackageDiscount(7500, 100))
}

func TestRoundToEndingNearestNine(t *testing.T) {
	for dollars := int64(95); dollars <= 103; dollars++ {
		got, err := RoundToEnding(dollars*100, EndingNine, nil)
		require.NoError(t, err)
		require.Equal(t, Money(9900), got, "dollars %d", dollars)
	}
	got, err := RoundToEnding(20_200, EndingNine, nil)
	require.NoError(t, err)
	require.Equal(t, Money(19_900), got)
}

func TestRoundToEndingTies(t *testing.T) {
	cases := []struct {
		amount Money
		ending PriceEnding
		want   Money
	}{
		{10_400, EndingNine, 10_900}, // +5 stays upward
		{500, EndingZero, 0},         // -5 stays downward
		{1000, EndingFive, 1500},     // +5 stays upward
		{6375, EndingNine, 6900},     // $63.75 rounds to $64 first
		{4949, EndingFive, 4500},
		{4951, EndingZero, 5000},
		{0, EndingNine, -100},
	}
	for _, tc := range cases {
		got, err := RoundToEnding(tc.amount, tc.ending, nil)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "amount %d ending %s", tc.amount, tc.ending)
	}
}

func TestRoundToEndingCustom(t *testing.T) {
	override := Money(4242)
	got, err := RoundToEnding(9999, EndingCustom, &override)
	require.NoError(t, err)
	require.Equal(t, override, got)

	_, err = RoundToEnding(9999, EndingCustom, nil)
	require.True(t, errors.Is(err, ErrInvalidInput))

	_, err = RoundToEnding(9999, PriceEnding("7"), nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestParsePriceEnding(t *testing.T) {
	e, err := ParsePriceEnding(" Custom ")
	require.NoError(t, err)
	require.Equal(t, EndingCustom, e)
	_, err = ParsePriceEnding("3")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestQuotePackage(t *testing.T) {
	q, err := QuotePackage(PackageInput{
		Services: []ServicePrice{
			{ID: "cut", Price: 3000, Duration: 45},
			{ID: "color", Price: 4500, Duration: 90},
		},
		DiscountPercent: 15,
		Ending:          EndingNine,
	})
	require.NoError(t, err)
	require.Equal(t, Money(7500), q.OriginalPrice)
	require.Equal(t, Money(6375), q.DiscountedPrice)
	require.Equal(t, Money(6900), q.FinalPrice)
	require.Equal(t, 135, q.TotalDuration)
}

func TestQuotePackageFloorsAtZero(t *testing.T) {
	q, err := QuotePackage(PackageInput{
		Services: []ServicePrice{{ID: "tiny", Price: 100}},
		Ending:   EndingNine,
	})
	require.NoError(t, err)
	require.Zero(t, q.FinalPrice)

	_, err = QuotePackage(PackageInput{Ending: EndingNine})
	require.ErrorIs(t, err, ErrInvalidInput)
}
