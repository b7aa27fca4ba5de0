package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-studio/internal/obs"
	"github.com/noah-isme/backend-studio/internal/pricing"
	"github.com/noah-isme/backend-studio/internal/tenant"
)

var (
	// ErrNotFound is returned when a package does not exist for the tenant.
	ErrNotFound = errors.New("catalog: not found")
	// ErrUnknownService is returned when a package references a missing offering.
	ErrUnknownService = errors.New("catalog: unknown service")
)

// OfferingStore persists offerings.
type OfferingStore interface {
	ListOfferings(ctx context.Context) ([]Offering, error)
	GetOfferings(ctx context.Context, ids []string) ([]Offering, error)
	CreateOffering(ctx context.Context, o Offering) (Offering, error)
}

// PackageStore persists packages. CreatePackage creates newCategoryName in the
// same transaction when it is non-empty.
type PackageStore interface {
	CreatePackage(ctx context.Context, p Package, newCategoryName string) (Package, error)
	GetPackage(ctx context.Context, id string) (Package, error)
}

// Service orchestrates catalog persistence, caching and package pricing.
type Service struct {
	offerings     OfferingStore
	packages      PackageStore
	cache         *Cache
	defaultEnding pricing.PriceEnding
	logger        zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Offerings     OfferingStore
	Packages      PackageStore
	Cache         *Cache
	DefaultEnding pricing.PriceEnding
	Logger        zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Offerings == nil || cfg.Packages == nil {
		return nil, errors.New("catalog: stores are required")
	}
	ending := cfg.DefaultEnding
	if ending == "" {
		ending = pricing.EndingNine
	}
	if ending == pricing.EndingCustom {
		return nil, errors.New("catalog: default price ending cannot be custom")
	}
	return &Service{
		offerings:     cfg.Offerings,
		packages:      cfg.Packages,
		cache:         cfg.Cache,
		defaultEnding: ending,
		logger:        cfg.Logger,
	}, nil
}

// ListServices returns the tenant's offerings, served from cache when possible.
func (s *Service) ListServices(ctx context.Context) ([]Offering, error) {
	key := servicesCacheKey(ctx)
	var cached []Offering
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	items, err := s.offerings.ListOfferings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	if items == nil {
		items = []Offering{}
	}
	if err := s.cache.SetJSON(ctx, key, items); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return items, nil
}

// CreateService stores a new offering and invalidates the cached list.
func (s *Service) CreateService(ctx context.Context, req OfferingRequest) (Offering, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Offering{}, fmt.Errorf("service name is required: %w", pricing.ErrInvalidInput)
	}
	if req.Price < 0 || req.Duration < 0 {
		return Offering{}, fmt.Errorf("price and duration must not be negative: %w", pricing.ErrInvalidInput)
	}
	created, err := s.offerings.CreateOffering(ctx, Offering{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Duration:    req.Duration,
		Active:      boolOr(req.Active, true),
	})
	if err != nil {
		return Offering{}, fmt.Errorf("create service: %w", err)
	}
	if err := s.cache.Delete(ctx, servicesCacheKey(ctx)); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
	return created, nil
}

// QuotePackage prices the referenced offerings without persisting anything.
func (s *Service) QuotePackage(ctx context.Context, req QuoteRequest) (pricing.PackageQuote, error) {
	ending, err := s.resolveEnding(req.PriceEnding, req.OverridePrice)
	if err != nil {
		return pricing.PackageQuote{}, err
	}
	prices, err := s.servicePrices(ctx, req.ServiceIDs)
	if err != nil {
		return pricing.PackageQuote{}, err
	}
	quote, err := pricing.QuotePackage(pricing.PackageInput{
		Services:        prices,
		DiscountPercent: req.DiscountPercent,
		Ending:          ending,
		Override:        req.OverridePrice,
	})
	if err != nil {
		return pricing.PackageQuote{}, err
	}
	if obs.PackageQuotesTotal != nil {
		obs.PackageQuotesTotal.WithLabelValues(string(ending)).Inc()
	}
	return quote, nil
}

// CreatePackage prices and stores a package, creating its category on demand.
func (s *Service) CreatePackage(ctx context.Context, req PackageRequest) (Package, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Package{}, fmt.Errorf("package name is required: %w", pricing.ErrInvalidInput)
	}
	newCategory := ""
	if req.NewCategoryName != nil {
		newCategory = strings.TrimSpace(*req.NewCategoryName)
	}
	if newCategory != "" && req.CategoryID != nil {
		return Package{}, fmt.Errorf("categoryId and newCategoryName are mutually exclusive: %w", pricing.ErrInvalidInput)
	}
	quote, err := s.QuotePackage(ctx, QuoteRequest{
		ServiceIDs:      req.ServiceIDs,
		DiscountPercent: req.DiscountPercent,
		OverridePrice:   req.OverridePrice,
		PriceEnding:     req.PriceEnding,
	})
	if err != nil {
		return Package{}, err
	}
	pkg := Package{
		Name:            name,
		Description:     strings.TrimSpace(req.Description),
		CategoryID:      req.CategoryID,
		DiscountPercent: quote.DiscountPercent,
		PriceEnding:     quote.PriceEnding,
		OverridePrice:   req.OverridePrice,
		ServiceIDs:      dedupe(req.ServiceIDs),
		OriginalPrice:   quote.OriginalPrice,
		DiscountedPrice: quote.DiscountedPrice,
		FinalPrice:      quote.FinalPrice,
		TotalDuration:   quote.TotalDuration,
		Active:          boolOr(req.Active, true),
	}
	created, err := s.packages.CreatePackage(ctx, pkg, newCategory)
	if err != nil {
		return Package{}, fmt.Errorf("create package: %w", err)
	}
	s.logger.Info().Str("package_id", created.ID).Int64("final_price", created.FinalPrice).Str("ending", string(created.PriceEnding)).Msg("package created")
	return created, nil
}

// GetPackage returns a package by id.
func (s *Service) GetPackage(ctx context.Context, id string) (Package, error) {
	return s.packages.GetPackage(ctx, strings.TrimSpace(id))
}

// resolveEnding applies the precedence override > explicit ending > default.
func (s *Service) resolveEnding(raw string, override *int64) (pricing.PriceEnding, error) {
	if override != nil {
		return pricing.EndingCustom, nil
	}
	if strings.TrimSpace(raw) == "" {
		return s.defaultEnding, nil
	}
	return pricing.ParsePriceEnding(raw)
}

func (s *Service) servicePrices(ctx context.Context, ids []string) ([]pricing.ServicePrice, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("package requires at least one service: %w", pricing.ErrInvalidInput)
	}
	found, err := s.offerings.GetOfferings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	byID := make(map[string]Offering, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}
	prices := make([]pricing.ServicePrice, 0, len(ids))
	for _, id := range ids {
		o, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownService, id)
		}
		prices = append(prices, pricing.ServicePrice{ID: o.ID, Price: o.Price, Duration: o.Duration})
	}
	return prices, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func servicesCacheKey(ctx context.Context) string {
	id, _ := tenant.From(ctx)
	return tenant.PrefixKey(id, "catalog:services")
}
