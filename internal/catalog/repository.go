package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("catalog record not found")
	ErrDuplicate = errors.New("catalog name already exists")
)

type Repository interface {
	GetTaxCategory(ctx context.Context, id int64) (*TaxCategory, error)
	ListTaxCategories(ctx context.Context, includeInactive bool) ([]TaxCategory, error)
	CreateTaxCategory(ctx context.Context, c TaxCategory) (int64, error)
	UpdateTaxCategory(ctx context.Context, c TaxCategory) error
	ListPaymentTerms(ctx context.Context) ([]PaymentTerm, error)
	ListServiceTypes(ctx context.Context) ([]ServiceType, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const taxCategoryColumns = `id, name, applies_vat, vat_rate, reduced_vat_rate,
	applies_income_tax, income_tax_rate, applies_gross_receipts, gross_receipts_rate,
	active, created_at, updated_at`

func (r *repository) GetTaxCategory(ctx context.Context, id int64) (*TaxCategory, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM tax_categories WHERE id = $1`, taxCategoryColumns), id)
	c, err := scanTaxCategory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *repository) ListTaxCategories(ctx context.Context, includeInactive bool) ([]TaxCategory, error) {
	query := fmt.Sprintf(`SELECT %s FROM tax_categories`, taxCategoryColumns)
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaxCategory
	for rows.Next() {
		c, err := scanTaxCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *repository) CreateTaxCategory(ctx context.Context, c TaxCategory) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tax_categories (name, applies_vat, vat_rate, reduced_vat_rate,
			applies_income_tax, income_tax_rate, applies_gross_receipts, gross_receipts_rate, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id
	`, c.Name, c.AppliesVAT, c.VATRate, c.ReducedVATRate,
		c.AppliesIncomeTax, c.IncomeTaxRate, c.AppliesGrossReceipts, c.GrossReceiptsRate,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateTaxCategory(ctx context.Context, c TaxCategory) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tax_categories
		SET name = $2, applies_vat = $3, vat_rate = $4, reduced_vat_rate = $5,
			applies_income_tax = $6, income_tax_rate = $7,
			applies_gross_receipts = $8, gross_receipts_rate = $9,
			active = $10, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.Name, c.AppliesVAT, c.VATRate, c.ReducedVATRate,
		c.AppliesIncomeTax, c.IncomeTaxRate, c.AppliesGrossReceipts, c.GrossReceiptsRate, c.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ListPaymentTerms(ctx context.Context) ([]PaymentTerm, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, days, active FROM payment_terms WHERE active ORDER BY days, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaymentTerm
	for rows.Next() {
		var t PaymentTerm
		if err := rows.Scan(&t.ID, &t.Name, &t.Days, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) ListServiceTypes(ctx context.Context) ([]ServiceType, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, active FROM service_types WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceType
	for rows.Next() {
		var t ServiceType
		if err := rows.Scan(&t.ID, &t.Name, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTaxCategory(row pgx.Row) (*TaxCategory, error) {
	var c TaxCategory
	var reduced pgtype.Float8
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(
		&c.ID, &c.Name, &c.AppliesVAT, &c.VATRate, &reduced,
		&c.AppliesIncomeTax, &c.IncomeTaxRate, &c.AppliesGrossReceipts, &c.GrossReceiptsRate,
		&c.Active, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reduced.Valid {
		c.ReducedVATRate = &reduced.Float64
	}
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		c.UpdatedAt = updatedAt.Time
	}
	return &c, nil
}
