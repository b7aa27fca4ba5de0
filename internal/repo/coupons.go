package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-studio/internal/coupon"
)

const couponColumns = `id, code, discount_type, discount_value, applicable_service_ids, applicable_package_ids,
	min_purchase_cents, max_discount_cents, max_uses, current_uses, expires_at, active, created_at, updated_at`

// CouponsRepo stores coupons scoped to the tenant in context.
type CouponsRepo struct {
	DB DBTX
}

// GetByCode loads a coupon by its normalized code.
func (r CouponsRepo) GetByCode(ctx context.Context, code string) (coupon.Coupon, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return coupon.Coupon{}, err
	}
	row := r.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 AND code = $2`, tid, code)
	return scanCoupon(row)
}

// List returns a page of coupons ordered by creation time and the total count.
func (r CouponsRepo) List(ctx context.Context, limit, offset int) ([]coupon.Coupon, int64, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM coupons WHERE tenant_id = $1`, tid).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1
		ORDER BY created_at DESC, code LIMIT $2 OFFSET $3`, tid, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()
	var out []coupon.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Create inserts a coupon. A duplicate code yields coupon.ErrDuplicateCode.
func (r CouponsRepo) Create(ctx context.Context, c coupon.Coupon) (coupon.Coupon, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return coupon.Coupon{}, err
	}
	services, packages, err := scopeValues(c)
	if err != nil {
		return coupon.Coupon{}, err
	}
	row := r.DB.QueryRow(ctx, `INSERT INTO coupons (tenant_id, code, discount_type, discount_value,
		applicable_service_ids, applicable_package_ids, min_purchase_cents, max_discount_cents,
		max_uses, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+couponColumns,
		tid, c.Code, string(c.DiscountType), c.DiscountValue, services, packages,
		c.MinPurchaseAmount, c.MaxDiscountAmount, c.MaxUses, c.ExpiresAt, c.Active)
	created, err := scanCoupon(row)
	if isUniqueViolation(err) {
		return coupon.Coupon{}, coupon.ErrDuplicateCode
	}
	return created, err
}

// Update replaces the mutable fields of the coupon identified by code. Usage
// counters are left untouched.
func (r CouponsRepo) Update(ctx context.Context, code string, c coupon.Coupon) (coupon.Coupon, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return coupon.Coupon{}, err
	}
	services, packages, err := scopeValues(c)
	if err != nil {
		return coupon.Coupon{}, err
	}
	row := r.DB.QueryRow(ctx, `UPDATE coupons SET code = $3, discount_type = $4, discount_value = $5,
		applicable_service_ids = $6, applicable_package_ids = $7, min_purchase_cents = $8,
		max_discount_cents = $9, max_uses = $10, expires_at = $11, active = $12, updated_at = now()
		WHERE tenant_id = $1 AND code = $2
		RETURNING `+couponColumns,
		tid, code, c.Code, string(c.DiscountType), c.DiscountValue, services, packages,
		c.MinPurchaseAmount, c.MaxDiscountAmount, c.MaxUses, c.ExpiresAt, c.Active)
	updated, err := scanCoupon(row)
	if isUniqueViolation(err) {
		return coupon.Coupon{}, coupon.ErrDuplicateCode
	}
	return updated, err
}

// IncrementUses adds one use, refusing to go past max_uses.
func (r CouponsRepo) IncrementUses(ctx context.Context, code string) (coupon.Coupon, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return coupon.Coupon{}, err
	}
	row := r.DB.QueryRow(ctx, `UPDATE coupons SET current_uses = current_uses + 1, updated_at = now()
		WHERE tenant_id = $1 AND code = $2 AND (max_uses IS NULL OR current_uses < max_uses)
		RETURNING `+couponColumns, tid, code)
	c, err := scanCoupon(row)
	if errors.Is(err, coupon.ErrNotFound) {
		if _, getErr := r.GetByCode(ctx, code); getErr == nil {
			return coupon.Coupon{}, &coupon.InapplicableError{Reason: coupon.ReasonUsageExceeded}
		}
	}
	return c, err
}

func scopeValues(c coupon.Coupon) ([]pgtype.UUID, []pgtype.UUID, error) {
	services, err := uuidValues(c.ApplicableServiceIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("applicable services: %w", err)
	}
	packages, err := uuidValues(c.ApplicablePackageIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("applicable packages: %w", err)
	}
	return services, packages, nil
}

func scanCoupon(row pgx.Row) (coupon.Coupon, error) {
	var (
		c                  coupon.Coupon
		id                 pgtype.UUID
		discountType       string
		services, packages []pgtype.UUID
	)
	err := row.Scan(&id, &c.Code, &discountType, &c.DiscountValue, &services, &packages,
		&c.MinPurchaseAmount, &c.MaxDiscountAmount, &c.MaxUses, &c.CurrentUses, &c.ExpiresAt,
		&c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.Coupon{}, coupon.ErrNotFound
		}
		return coupon.Coupon{}, err
	}
	c.ID = uuidString(id)
	c.DiscountType = coupon.DiscountType(discountType)
	c.ApplicableServiceIDs = uuidStrings(services)
	c.ApplicablePackageIDs = uuidStrings(packages)
	return c, nil
}
