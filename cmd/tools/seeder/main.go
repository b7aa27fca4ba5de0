package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-studio/internal/catalog"
	"github.com/noah-isme/backend-studio/internal/config"
	"github.com/noah-isme/backend-studio/internal/coupon"
	"github.com/noah-isme/backend-studio/internal/migrations"
	"github.com/noah-isme/backend-studio/internal/obs"
	"github.com/noah-isme/backend-studio/internal/pricing"
	"github.com/noah-isme/backend-studio/internal/repo"
	"github.com/noah-isme/backend-studio/internal/tenant"
)

// demoTenant is used when neither -tenant nor DEFAULT_TENANT is set.
const demoTenant = "00000000-0000-0000-0000-00000000d3e0"

func main() {
	tenantFlag := flag.String("tenant", "", "tenant UUID to seed (defaults to DEFAULT_TENANT)")
	migrate := flag.Bool("migrate", false, "apply migrations before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	tenantID := firstNonEmpty(*tenantFlag, cfg.DefaultTenant, demoTenant)
	if _, err := uuid.Parse(tenantID); err != nil {
		logger.Fatal().Err(err).Str("tenant", tenantID).Msg("tenant must be a UUID")
	}

	if *migrate {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = tenant.With(ctx, tenantID)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Offerings:     repo.OfferingsRepo{DB: pool},
		Packages:      repo.PackagesRepo{DB: pool},
		Cache:         catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		DefaultEnding: cfg.DefaultPriceEnding,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	couponSvc := &coupon.Service{Store: repo.CouponsRepo{DB: pool}, Logger: logger}

	serviceIDs, err := seedServices(ctx, catalogSvc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed services")
	}
	pkg, err := seedPackage(ctx, catalogSvc, serviceIDs)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed package")
	}
	logger.Info().Str("id", pkg.ID).Int64("final_price", int64(pkg.FinalPrice)).Msg("package seeded")

	if err := seedCoupons(ctx, couponSvc, serviceIDs, pkg.ID, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed coupons")
	}
	logger.Info().Str("tenant", tenantID).Msg("seeding completed")
}

func seedServices(ctx context.Context, svc *catalog.Service, logger zerolog.Logger) ([]string, error) {
	fixtures := []catalog.OfferingRequest{
		{Name: "Portrait Session", Description: "One hour studio portrait session", Price: 15000, Duration: 60},
		{Name: "Photo Retouching", Description: "Retouching of ten selected images", Price: 5000, Duration: 45},
		{Name: "Printed Album", Description: "Twenty page hardcover album", Price: 12000, Duration: 30},
	}

	existing, err := svc.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(existing))
	for _, o := range existing {
		byName[o.Name] = o.ID
	}

	ids := make([]string, 0, len(fixtures))
	for _, f := range fixtures {
		if id, ok := byName[f.Name]; ok {
			ids = append(ids, id)
			continue
		}
		created, err := svc.CreateService(ctx, f)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("id", created.ID).Str("name", created.Name).Msg("service seeded")
		ids = append(ids, created.ID)
	}
	return ids, nil
}

func seedPackage(ctx context.Context, svc *catalog.Service, serviceIDs []string) (catalog.Package, error) {
	category := "Bundles"
	return svc.CreatePackage(ctx, catalog.PackageRequest{
		Name:            "Complete Portrait Bundle",
		Description:     "Session, retouching and album",
		DiscountPercent: 15,
		ServiceIDs:      serviceIDs,
		NewCategoryName: &category,
		PriceEnding:     string(pricing.EndingNine),
	})
}

func seedCoupons(ctx context.Context, svc *coupon.Service, serviceIDs []string, packageID string, logger zerolog.Logger) error {
	minPurchase := pricing.Money(10000)
	maxDiscount := pricing.Money(5000)
	maxUses := 100
	expires := time.Now().AddDate(1, 0, 0).UTC()

	fixtures := []coupon.Coupon{
		{Code: "WELCOME10", DiscountType: coupon.DiscountPercentage, DiscountValue: 10, MaxDiscountAmount: &maxDiscount, Active: true},
		{Code: "SAVE20", DiscountType: coupon.DiscountFixed, DiscountValue: 2000, MinPurchaseAmount: &minPurchase, MaxUses: &maxUses, ExpiresAt: &expires, Active: true},
		{Code: "BUNDLE15", DiscountType: coupon.DiscountPercentage, DiscountValue: 15, ApplicablePackageIDs: []string{packageID}, Active: true},
		{Code: "PORTRAIT5", DiscountType: coupon.DiscountFixed, DiscountValue: 500, ApplicableServiceIDs: serviceIDs[:1], Active: true},
	}
	for _, c := range fixtures {
		created, err := svc.Create(ctx, c)
		if errors.Is(err, coupon.ErrDuplicateCode) {
			logger.Info().Str("code", c.Code).Msg("coupon exists, skipping")
			continue
		}
		if err != nil {
			return err
		}
		logger.Info().Str("code", created.Code).Msg("coupon seeded")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
