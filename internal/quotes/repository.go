package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-lsm/meridian/internal/editor"
	"github.com/meridian-lsm/meridian/internal/platform/db"
)

var ErrNotFound = errors.New("quotation not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, req ListQuotationsRequest) ([]QuotationSummary, int, error)
	Create(ctx context.Context, q Quotation) (int64, error)
	// Save persists the full document with a compare-and-swap on baseVersion
	// and returns the new version. It reports editor.ErrVersionConflict when
	// the stored version moved.
	Save(ctx context.Context, q Quotation, baseVersion int64) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status QuotationStatus) error
	Delete(ctx context.Context, id int64) error
	GenerateNumber(ctx context.Context) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quotationColumns = `id, doc_number, client_id, system_id, status, exchange_rate,
	payment_term_id, technical_notes, valid_until, sent_at, subtotal, total,
	version, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM quotations WHERE id = $1`, quotationColumns), id)
	q, err := scanQuotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Items = items
	return q, nil
}

func (r *repository) listItems(ctx context.Context, quotationID int64) ([]QuoteItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, description, quantity, unit, unit_price, tax_category_id, subtotal, position
		FROM quotation_items
		WHERE quotation_id = $1
		ORDER BY position, id
	`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QuoteItem
	for rows.Next() {
		var it QuoteItem
		var taxCategory pgtype.Int8
		if err := rows.Scan(&it.ID, &it.Description, &it.Quantity, &it.Unit,
			&it.UnitPrice, &taxCategory, &it.Subtotal, &it.Position); err != nil {
			return nil, err
		}
		if taxCategory.Valid {
			it.TaxCategoryID = &taxCategory.Int64
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListQuotationsRequest) ([]QuotationSummary, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("q.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("q.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM quotations q %s", whereClause)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT q.id, q.doc_number, q.client_id, c.company_name, q.status,
		       q.total, q.sent_at, q.valid_until, q.updated_at
		FROM quotations q
		JOIN clients c ON q.client_id = c.id
		%s
		ORDER BY q.updated_at DESC, q.id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var summaries []QuotationSummary
	for rows.Next() {
		var s QuotationSummary
		var sentAt, validUntil, updatedAt pgtype.Timestamptz
		if err := rows.Scan(&s.ID, &s.DocNumber, &s.ClientID, &s.ClientName,
			&s.Status, &s.Total, &sentAt, &validUntil, &updatedAt); err != nil {
			return nil, 0, err
		}
		if sentAt.Valid {
			s.SentAt = &sentAt.Time
		}
		if validUntil.Valid {
			s.ValidUntil = &validUntil.Time
		}
		if updatedAt.Valid {
			s.UpdatedAt = updatedAt.Time
		}
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO quotations (doc_number, client_id, system_id, status, exchange_rate,
				payment_term_id, technical_notes, valid_until, sent_at, subtotal, total, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
			RETURNING id
		`, q.DocNumber, q.ClientID, q.SystemID, q.Status, q.ExchangeRate,
			q.PaymentTermID, q.TechnicalNotes, q.ValidUntil, q.SentAt, q.Subtotal, q.Total,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert quotation: %w", err)
		}
		return insertItems(ctx, tx, id, q.Items)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) Save(ctx context.Context, q Quotation, baseVersion int64) (int64, error) {
	var newVersion int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE quotations
			SET system_id = $3, status = $4, exchange_rate = $5, payment_term_id = $6,
				technical_notes = $7, valid_until = $8, sent_at = $9,
				subtotal = $10, total = $11, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $2
			RETURNING version
		`, q.ID, baseVersion, q.SystemID, q.Status, q.ExchangeRate, q.PaymentTermID,
			q.TechnicalNotes, q.ValidUntil, q.SentAt, q.Subtotal, q.Total,
		).Scan(&newVersion)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Either the record is gone or the version moved under us.
				var current int64
				if probe := tx.QueryRow(ctx,
					`SELECT version FROM quotations WHERE id = $1`, q.ID,
				).Scan(&current); probe != nil {
					if errors.Is(probe, pgx.ErrNoRows) {
						return ErrNotFound
					}
					return probe
				}
				return fmt.Errorf("stored version %d, expected %d: %w",
					current, baseVersion, editor.ErrVersionConflict)
			}
			return fmt.Errorf("update quotation: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM quotation_items WHERE quotation_id = $1`, q.ID); err != nil {
			return fmt.Errorf("delete quotation items: %w", err)
		}
		return insertItems(ctx, tx, q.ID, q.Items)
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, quotationID int64, items []QuoteItem) error {
	for _, it := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO quotation_items (id, quotation_id, description, quantity, unit,
				unit_price, tax_category_id, subtotal, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, it.ID, quotationID, it.Description, it.Quantity, it.Unit,
			it.UnitPrice, it.TaxCategoryID, it.Subtotal, it.Position)
		if err != nil {
			return fmt.Errorf("insert quotation item: %w", err)
		}
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status QuotationStatus) error {
	// sent_at is set on the first transition to SENT and never overwritten.
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations
		SET status = $2,
			sent_at = CASE WHEN $2 = 'SENT' THEN COALESCE(sent_at, NOW()) ELSE sent_at END,
			version = version + 1, updated_at = NOW()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM quotation_items WHERE quotation_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *repository) GenerateNumber(ctx context.Context) (string, error) {
	// PRE-{SEQ}
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, seq)
		VALUES ($1, 1)
		ON CONFLICT (doc_type)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, "PRE").Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PRE-%04d", seq), nil
}

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	var systemID, paymentTermID pgtype.Int8
	var exchangeRate pgtype.Float8
	var technicalNotes pgtype.Text
	var validUntil, sentAt, createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(
		&q.ID, &q.DocNumber, &q.ClientID, &systemID, &q.Status, &exchangeRate,
		&paymentTermID, &technicalNotes, &validUntil, &sentAt, &q.Subtotal, &q.Total,
		&q.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if systemID.Valid {
		q.SystemID = &systemID.Int64
	}
	if exchangeRate.Valid {
		q.ExchangeRate = &exchangeRate.Float64
	}
	if paymentTermID.Valid {
		q.PaymentTermID = &paymentTermID.Int64
	}
	if technicalNotes.Valid {
		q.TechnicalNotes = &technicalNotes.String
	}
	if validUntil.Valid {
		q.ValidUntil = &validUntil.Time
	}
	if sentAt.Valid {
		q.SentAt = &sentAt.Time
	}
	if createdAt.Valid {
		q.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		q.UpdatedAt = updatedAt.Time
	}
	return &q, nil
}
