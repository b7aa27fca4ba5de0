package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-studio/internal/invoice"
	"github.com/noah-isme/backend-studio/internal/pricing"
)

// InvoicesRepo stores invoices and their line items scoped to the tenant in context.
type InvoicesRepo struct {
	DB TxDB
}

// Create allocates the next invoice number for the tenant and writes the
// invoice with its line items in one transaction.
func (r InvoicesRepo) Create(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}
	var coupon *string
	if inv.CouponCode != "" {
		coupon = &inv.CouponCode
	}
	err = inTx(ctx, r.DB, func(tx pgx.Tx) error {
		var seq int64
		if err := tx.QueryRow(ctx, `INSERT INTO invoice_counters (tenant_id, last_number) VALUES ($1, 1)
			ON CONFLICT (tenant_id) DO UPDATE SET last_number = invoice_counters.last_number + 1
			RETURNING last_number`, tid).Scan(&seq); err != nil {
			return fmt.Errorf("allocate invoice number: %w", err)
		}
		inv.Number = invoice.FormatNumber(seq)

		var id pgtype.UUID
		if err := tx.QueryRow(ctx, `INSERT INTO invoices (tenant_id, number, client_id, client_name,
			client_email, client_address, due_date, coupon_code, subtotal_cents, discount_cents,
			tax_rate, tax_cents, total_cents, notes, terms, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id, created_at`,
			tid, inv.Number, inv.ClientID, inv.ClientName, inv.ClientEmail, inv.ClientAddress,
			inv.DueDate, coupon, inv.Subtotal, inv.DiscountAmount, inv.TaxRate, inv.TaxAmount,
			inv.Total, inv.Notes, inv.Terms, inv.Status,
		).Scan(&id, &inv.CreatedAt); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		inv.ID = uuidString(id)

		for i, li := range inv.LineItems {
			if _, err := tx.Exec(ctx, `INSERT INTO invoice_line_items (invoice_id, position, description,
				quantity, unit_price_cents, amount_cents) VALUES ($1, $2, $3, $4, $5, $6)`,
				id, i, li.Description, li.Quantity, li.UnitPrice, li.Amount); err != nil {
				return fmt.Errorf("insert line %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return invoice.Invoice{}, err
	}
	return inv, nil
}

// Get loads an invoice and its ordered line items.
func (r InvoicesRepo) Get(ctx context.Context, id string) (invoice.Invoice, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}
	iid, err := uuidValue(id)
	if err != nil {
		return invoice.Invoice{}, invoice.ErrNotFound
	}
	var (
		inv    invoice.Invoice
		coupon *string
	)
	err = r.DB.QueryRow(ctx, `SELECT number, client_id, client_name, client_email, client_address,
		due_date, coupon_code, subtotal_cents, discount_cents, tax_rate, tax_cents, total_cents,
		notes, terms, status, created_at
		FROM invoices WHERE tenant_id = $1 AND id = $2`, tid, iid).Scan(
		&inv.Number, &inv.ClientID, &inv.ClientName, &inv.ClientEmail, &inv.ClientAddress,
		&inv.DueDate, &coupon, &inv.Subtotal, &inv.DiscountAmount, &inv.TaxRate, &inv.TaxAmount,
		&inv.Total, &inv.Notes, &inv.Terms, &inv.Status, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.Invoice{}, invoice.ErrNotFound
		}
		return invoice.Invoice{}, err
	}
	inv.ID = uuidString(iid)
	if coupon != nil {
		inv.CouponCode = *coupon
	}

	rows, err := r.DB.Query(ctx, `SELECT description, quantity, unit_price_cents, amount_cents
		FROM invoice_line_items WHERE invoice_id = $1 ORDER BY position`, iid)
	if err != nil {
		return invoice.Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var li pricing.LineItem
		if err := rows.Scan(&li.Description, &li.Quantity, &li.UnitPrice, &li.Amount); err != nil {
			return invoice.Invoice{}, err
		}
		inv.LineItems = append(inv.LineItems, li)
	}
	return inv, rows.Err()
}
