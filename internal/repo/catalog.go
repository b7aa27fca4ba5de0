package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-studio/internal/catalog"
	"github.com/noah-isme/backend-studio/internal/pricing"
)

const offeringColumns = `id, name, description, price_cents, duration_minutes, active, created_at`

// OfferingsRepo stores bookable services scoped to the tenant in context.
type OfferingsRepo struct {
	DB DBTX
}

// ListOfferings returns every offering ordered by name.
func (r OfferingsRepo) ListOfferings(ctx context.Context) ([]catalog.Offering, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, `SELECT `+offeringColumns+` FROM services WHERE tenant_id = $1 ORDER BY name, id`, tid)
	if err != nil {
		return nil, err
	}
	return collectOfferings(rows)
}

// GetOfferings loads the offerings with the given ids. Unknown ids are omitted.
func (r OfferingsRepo) GetOfferings(ctx context.Context, ids []string) ([]catalog.Offering, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	values, err := uuidValues(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrUnknownService, err)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+offeringColumns+` FROM services WHERE tenant_id = $1 AND id = ANY($2)`, tid, values)
	if err != nil {
		return nil, err
	}
	return collectOfferings(rows)
}

// CreateOffering inserts an offering.
func (r OfferingsRepo) CreateOffering(ctx context.Context, o catalog.Offering) (catalog.Offering, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return catalog.Offering{}, err
	}
	row := r.DB.QueryRow(ctx, `INSERT INTO services (tenant_id, name, description, price_cents, duration_minutes, active)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+offeringColumns,
		tid, o.Name, o.Description, o.Price, o.Duration, o.Active)
	return scanOffering(row)
}

func collectOfferings(rows pgx.Rows) ([]catalog.Offering, error) {
	defer rows.Close()
	var out []catalog.Offering
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOffering(row pgx.Row) (catalog.Offering, error) {
	var (
		o  catalog.Offering
		id pgtype.UUID
	)
	if err := row.Scan(&id, &o.Name, &o.Description, &o.Price, &o.Duration, &o.Active, &o.CreatedAt); err != nil {
		return catalog.Offering{}, err
	}
	o.ID = uuidString(id)
	return o, nil
}

// PackagesRepo stores packages, their service links and categories.
type PackagesRepo struct {
	DB TxDB
}

// CreatePackage writes the package and its service links in one transaction,
// creating newCategoryName first when given.
func (r PackagesRepo) CreatePackage(ctx context.Context, p catalog.Package, newCategoryName string) (catalog.Package, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return catalog.Package{}, err
	}
	serviceIDs, err := uuidValues(p.ServiceIDs)
	if err != nil {
		return catalog.Package{}, fmt.Errorf("%w: %v", catalog.ErrUnknownService, err)
	}
	var categoryID pgtype.UUID
	if p.CategoryID != nil {
		if categoryID, err = uuidValue(*p.CategoryID); err != nil {
			return catalog.Package{}, fmt.Errorf("category id: %w", pricing.ErrInvalidInput)
		}
	}

	var created catalog.Package
	err = inTx(ctx, r.DB, func(tx pgx.Tx) error {
		if newCategoryName != "" {
			if err := tx.QueryRow(ctx, `INSERT INTO service_categories (tenant_id, name) VALUES ($1, $2)
				ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`, tid, newCategoryName).Scan(&categoryID); err != nil {
				return fmt.Errorf("create category: %w", err)
			}
		}
		var id pgtype.UUID
		if err := tx.QueryRow(ctx, `INSERT INTO packages (tenant_id, category_id, name, description,
			discount_percent, price_ending, override_price_cents, original_price_cents,
			discounted_price_cents, final_price_cents, total_duration_minutes, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at`,
			tid, categoryID, p.Name, p.Description, p.DiscountPercent, string(p.PriceEnding), p.OverridePrice,
			p.OriginalPrice, p.DiscountedPrice, p.FinalPrice, p.TotalDuration, p.Active,
		).Scan(&id, &p.CreatedAt); err != nil {
			return err
		}
		for i, sid := range serviceIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO package_services (package_id, service_id, position)
				VALUES ($1, $2, $3)`, id, sid, i); err != nil {
				return err
			}
		}
		p.ID = uuidString(id)
		if categoryID.Valid {
			cid := uuidString(categoryID)
			p.CategoryID = &cid
		}
		created = p
		return nil
	})
	if isForeignKeyViolation(err) {
		return catalog.Package{}, fmt.Errorf("%w: %v", catalog.ErrUnknownService, err)
	}
	return created, err
}

// GetPackage loads a package with its ordered service ids.
func (r PackagesRepo) GetPackage(ctx context.Context, id string) (catalog.Package, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return catalog.Package{}, err
	}
	pid, err := uuidValue(id)
	if err != nil {
		return catalog.Package{}, catalog.ErrNotFound
	}
	var (
		p          catalog.Package
		pkgID      pgtype.UUID
		categoryID pgtype.UUID
		ending     string
		services   []pgtype.UUID
	)
	err = r.DB.QueryRow(ctx, `SELECT p.id, p.category_id, p.name, p.description, p.discount_percent,
		p.price_ending, p.override_price_cents, p.original_price_cents, p.discounted_price_cents,
		p.final_price_cents, p.total_duration_minutes, p.active, p.created_at,
		COALESCE(array_agg(ps.service_id ORDER BY ps.position) FILTER (WHERE ps.service_id IS NOT NULL), '{}')
		FROM packages p
		LEFT JOIN package_services ps ON ps.package_id = p.id
		WHERE p.tenant_id = $1 AND p.id = $2
		GROUP BY p.id`, tid, pid).Scan(
		&pkgID, &categoryID, &p.Name, &p.Description, &p.DiscountPercent, &ending, &p.OverridePrice,
		&p.OriginalPrice, &p.DiscountedPrice, &p.FinalPrice, &p.TotalDuration, &p.Active, &p.CreatedAt, &services)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Package{}, catalog.ErrNotFound
		}
		return catalog.Package{}, err
	}
	p.ID = uuidString(pkgID)
	if categoryID.Valid {
		cid := uuidString(categoryID)
		p.CategoryID = &cid
	}
	p.PriceEnding = pricing.PriceEnding(ending)
	p.ServiceIDs = uuidStrings(services)
	return p, nil
}
