package catalog

import (
	"time"

	"github.com/noah-isme/backend-studio/internal/pricing"
)

// Offering is a bookable studio service.
type Offering struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Price       pricing.Money `json:"price"`
	Duration    int           `json:"duration"`
	Active      bool          `json:"active"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Category groups packages.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Package is a priced bundle of offerings with its derived prices stored alongside.
type Package struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	CategoryID      *string             `json:"categoryId,omitempty"`
	DiscountPercent int64               `json:"discountPercent"`
	PriceEnding     pricing.PriceEnding `json:"priceEnding"`
	OverridePrice   *pricing.Money      `json:"overridePrice,omitempty"`
	ServiceIDs      []string            `json:"serviceIds"`
	OriginalPrice   pricing.Money       `json:"originalPrice"`
	DiscountedPrice pricing.Money       `json:"discountedPrice"`
	FinalPrice      pricing.Money       `json:"finalPrice"`
	TotalDuration   int                 `json:"totalDuration"`
	Active          bool                `json:"active"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// OfferingRequest is the payload for creating an offering.
type OfferingRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Price       int64  `json:"price" validate:"gte=0"`
	Duration    int    `json:"duration" validate:"gte=0"`
	Active      *bool  `json:"active"`
}

// PackageRequest is the payload for quoting or creating a package.
type PackageRequest struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=2000"`
	DiscountPercent int64    `json:"discountPercent" validate:"gte=0,lte=100"`
	Active          *bool    `json:"active"`
	ServiceIDs      []string `json:"serviceIds" validate:"required,min=1,dive,uuid"`
	CategoryID      *string  `json:"categoryId" validate:"omitempty,uuid"`
	NewCategoryName *string  `json:"newCategoryName" validate:"omitempty,max=120"`
	OverridePrice   *int64   `json:"overridePrice" validate:"omitempty,gte=0"`
	PriceEnding     string   `json:"priceEnding" validate:"omitempty,oneof=9 5 0 custom"`
}

// QuoteRequest prices a set of offerings without persisting anything.
type QuoteRequest struct {
	ServiceIDs      []string `json:"serviceIds" validate:"required,min=1,dive,uuid"`
	DiscountPercent int64    `json:"discountPercent" validate:"gte=0,lte=100"`
	OverridePrice   *int64   `json:"overridePrice" validate:"omitempty,gte=0"`
	PriceEnding     string   `json:"priceEnding" validate:"omitempty,oneof=9 5 0 custom"`
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
