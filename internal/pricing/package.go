package pricing

import "fmt"

// ServicePrice is the pricing view of a service referenced by a package.
type ServicePrice struct {
	ID       string
	Price    Money
	Duration int
}

// PackageInput carries everything needed to price a package.
type PackageInput struct {
	Services        []ServicePrice
	DiscountPercent int64
	Ending          PriceEnding
	Override        *Money
}

// PackageQuote holds the derived package prices.
type PackageQuote struct {
	OriginalPrice   Money       `json:"originalPrice"`
	DiscountPercent int64       `json:"discountPercent"`
	DiscountAmount  Money       `json:"discountAmount"`
	DiscountedPrice Money       `json:"discountedPrice"`
	PriceEnding     PriceEnding `json:"priceEnding"`
	FinalPrice      Money       `json:"finalPrice"`
	TotalDuration   int         `json:"totalDuration"`
}

// QuotePackage sums the referenced services, applies the package discount and
// the rounding policy. The final price never drops below zero.
func QuotePackage(in PackageInput) (PackageQuote, error) {
	if len(in.Services) == 0 {
		return PackageQuote{}, fmt.Errorf("package requires at least one service: %w", ErrInvalidInput)
	}
	var (
		original Money
		duration int
	)
	for _, svc := range in.Services {
		if svc.Price < 0 {
			return PackageQuote{}, fmt.Errorf("service %s has a negative price: %w", svc.ID, ErrInvalidInput)
		}
		original += svc.Price
		duration += svc.Duration
	}
	discount := PackageDiscount(original, in.DiscountPercent)
	discounted := original - discount

	final, err := RoundToEnding(discounted, in.Ending, in.Override)
	if err != nil {
		return PackageQuote{}, err
	}
	if final < 0 {
		final = 0
	}
	return PackageQuote{
		OriginalPrice:   original,
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  discount,
		DiscountedPrice: discounted,
		PriceEnding:     in.Ending,
		FinalPrice:      final,
		TotalDuration:   duration,
	}, nil
}
