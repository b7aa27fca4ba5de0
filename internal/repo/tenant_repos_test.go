package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-studio/internal/catalog"
	"github.com/noah-isme/backend-studio/internal/coupon"
	"github.com/noah-isme/backend-studio/internal/invoice"
	"github.com/noah-isme/backend-studio/internal/repo"
	"github.com/noah-isme/backend-studio/internal/tenant"
)

// Stores must reject calls before touching the database, so a nil DB is safe here.
func TestReposRequireTenant(t *testing.T) {
	ctx := context.Background()
	coupons := repo.CouponsRepo{}
	offerings := repo.OfferingsRepo{}
	packages := repo.PackagesRepo{}
	invoices := repo.InvoicesRepo{}

	calls := map[string]func(context.Context) error{
		"coupon get":       func(ctx context.Context) error { _, err := coupons.GetByCode(ctx, "X"); return err },
		"coupon list":      func(ctx context.Context) error { _, _, err := coupons.List(ctx, 10, 0); return err },
		"coupon create":    func(ctx context.Context) error { _, err := coupons.Create(ctx, coupon.Coupon{}); return err },
		"coupon update":    func(ctx context.Context) error { _, err := coupons.Update(ctx, "X", coupon.Coupon{}); return err },
		"coupon increment": func(ctx context.Context) error { _, err := coupons.IncrementUses(ctx, "X"); return err },
		"services list":    func(ctx context.Context) error { _, err := offerings.ListOfferings(ctx); return err },
		"services get":     func(ctx context.Context) error { _, err := offerings.GetOfferings(ctx, nil); return err },
		"services create": func(ctx context.Context) error {
			_, err := offerings.CreateOffering(ctx, catalog.Offering{})
			return err
		},
		"package create": func(ctx context.Context) error {
			_, err := packages.CreatePackage(ctx, catalog.Package{}, "")
			return err
		},
		"package get":    func(ctx context.Context) error { _, err := packages.GetPackage(ctx, uuid.NewString()); return err },
		"invoice create": func(ctx context.Context) error { _, err := invoices.Create(ctx, invoice.Invoice{}); return err },
		"invoice get":    func(ctx context.Context) error { _, err := invoices.Get(ctx, uuid.NewString()); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, call(ctx), repo.ErrTenantMissing)
			require.ErrorIs(t, call(tenant.With(ctx, "acme")), repo.ErrTenantInvalid)
		})
	}
}

func TestScopeIDsMustBeUUIDs(t *testing.T) {
	ctx := tenant.With(context.Background(), uuid.NewString())
	_, err := repo.CouponsRepo{}.Create(ctx, coupon.Coupon{Code: "X", ApplicableServiceIDs: []string{"not-a-uuid"}})
	require.Error(t, err)
	require.False(t, errors.Is(err, repo.ErrTenantMissing))

	_, err = repo.PackagesRepo{}.GetPackage(ctx, "not-a-uuid")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = repo.InvoicesRepo{}.Get(ctx, "not-a-uuid")
	require.ErrorIs(t, err, invoice.ErrNotFound)
}

func TestUniqueViolationMapping(t *testing.T) {
	require.True(t, repo.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, repo.IsUniqueViolation(errors.New("23505")))
}
