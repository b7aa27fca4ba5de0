package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceEnding selects the terminal whole-dollar digit a price is rounded to.
type PriceEnding string

const (
	EndingNine   PriceEnding = "9"
	EndingFive   PriceEnding = "5"
	EndingZero   PriceEnding = "0"
	EndingCustom PriceEnding = "custom"
)

// ParsePriceEnding converts user input into a PriceEnding.
func ParsePriceEnding(value string) (PriceEnding, error) {
	switch e := PriceEnding(strings.ToLower(strings.TrimSpace(value))); e {
	case EndingNine, EndingFive, EndingZero, EndingCustom:
		return e, nil
	default:
		return "", fmt.Errorf("unknown price ending %q: %w", value, ErrInvalidInput)
	}
}

func (e PriceEnding) digit() (int64, bool) {
	switch e {
	case EndingNine:
		return 9, true
	case EndingFive:
		return 5, true
	case EndingZero:
		return 0, true
	}
	return 0, false
}

// RoundToEnding moves amount to the nearest whole-dollar price whose last digit
// matches ending. Exact ties (a distance of five dollars either way) are not
// wrapped: +5 stays upward and -5 stays downward. A custom ending returns the
// override verbatim and requires one.
func RoundToEnding(amount Money, ending PriceEnding, override *Money) (Money, error) {
	if ending == EndingCustom {
		if override == nil {
			return 0, fmt.Errorf("custom price ending requires an override price: %w", ErrInvalidInput)
		}
		return *override, nil
	}
	target, ok := ending.digit()
	if !ok {
		return 0, fmt.Errorf("unknown price ending %q: %w", ending, ErrInvalidInput)
	}

	dollars := roundHalfUp(decimal.NewFromInt(amount).Div(hundred))
	last := ((dollars % 10) + 10) % 10
	diff := target - last
	if diff > 5 {
		diff -= 10
	}
	if diff < -5 {
		diff += 10
	}
	return (dollars + diff) * 100, nil
}
