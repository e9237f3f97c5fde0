package workorders

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

var ErrNotFound = errors.New("work order not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*WorkOrder, error)
	List(ctx context.Context, req ListWorkOrdersRequest) ([]WorkOrderSummary, int, error)
	Create(ctx context.Context, o WorkOrder) (int64, error)
	// Save persists header, budget refs and parts with a compare-and-swap on
	// baseVersion; child items are append-only and written through AddItem.
	Save(ctx context.Context, o WorkOrder, baseVersion int64) (int64, error)
	AddItem(ctx context.Context, orderID int64, item WorkOrderItem) (int64, error)
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

const workOrderColumns = `id, order_number, client_id, system_id, service_type_id, status,
	billable, under_contract, under_warranty, problem_reported, work_performed,
	observations, budget_refs, finalized_at, version, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*WorkOrder, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM work_orders WHERE id = $1`, workOrderColumns), id)
	o, err := scanWorkOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	parts, err := r.listParts(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Parts = parts

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *repository) listParts(ctx context.Context, orderID int64) ([]Part, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, code, description, quantity, origin
		FROM work_order_parts WHERE work_order_id = $1 ORDER BY code, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []Part
	for rows.Next() {
		var p Part
		var origin pgtype.Text
		if err := rows.Scan(&p.ID, &p.Code, &p.Description, &p.Quantity, &origin); err != nil {
			return nil, err
		}
		if origin.Valid {
			p.Origin = &origin.String
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func (r *repository) listItems(ctx context.Context, orderID int64) ([]WorkOrderItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, item_number, description, completed
		FROM work_order_items WHERE work_order_id = $1 ORDER BY item_number
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []WorkOrderItem
	for rows.Next() {
		var it WorkOrderItem
		if err := rows.Scan(&it.ID, &it.ItemNumber, &it.Description, &it.Completed); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListWorkOrdersRequest) ([]WorkOrderSummary, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("o.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM work_orders o %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT o.id, o.order_number, o.client_id, c.company_name, o.status,
		       o.finalized_at, o.updated_at
		FROM work_orders o
		JOIN clients c ON o.client_id = c.id
		%s
		ORDER BY o.order_number DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var summaries []WorkOrderSummary
	for rows.Next() {
		var s WorkOrderSummary
		var finalizedAt, updatedAt pgtype.Timestamptz
		if err := rows.Scan(&s.ID, &s.OrderNumber, &s.ClientID, &s.ClientName,
			&s.Status, &finalizedAt, &updatedAt); err != nil {
			return nil, 0, err
		}
		if finalizedAt.Valid {
			s.FinalizedAt = &finalizedAt.Time
		}
		if updatedAt.Valid {
			s.UpdatedAt = updatedAt.Time
		}
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, o WorkOrder) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO work_orders (order_number, client_id, system_id, service_type_id,
				status, billable, under_contract, under_warranty, problem_reported,
				work_performed, observations, budget_refs, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
			RETURNING id
		`, o.OrderNumber, o.ClientID, o.SystemID, o.ServiceTypeID, o.Status,
			o.Billable, o.UnderContract, o.UnderWarranty, o.ProblemReported,
			o.WorkPerformed, o.Observations, o.BudgetRefs,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert work order: %w", err)
		}
		return insertParts(ctx, tx, id, o.Parts)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) Save(ctx context.Context, o WorkOrder, baseVersion int64) (int64, error) {
	var newVersion int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE work_orders
			SET system_id = $3, service_type_id = $4, status = $5, billable = $6,
				under_contract = $7, under_warranty = $8, problem_reported = $9,
				work_performed = $10, observations = $11, budget_refs = $12,
				finalized_at = $13, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $2
			RETURNING version
		`, o.ID, baseVersion, o.SystemID, o.ServiceTypeID, o.Status, o.Billable,
			o.UnderContract, o.UnderWarranty, o.ProblemReported, o.WorkPerformed,
			o.Observations, o.BudgetRefs, o.FinalizedAt,
		).Scan(&newVersion)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				var current int64
				if probe := tx.QueryRow(ctx,
					`SELECT version FROM work_orders WHERE id = $1`, o.ID,
				).Scan(&current); probe != nil {
					if errors.Is(probe, pgx.ErrNoRows) {
						return ErrNotFound
					}
					return probe
				}
				return fmt.Errorf("stored version %d, expected %d: %w",
					current, baseVersion, editor.ErrVersionConflict)
			}
			return fmt.Errorf("update work order: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM work_order_parts WHERE work_order_id = $1`, o.ID); err != nil {
			return fmt.Errorf("delete work order parts: %w", err)
		}
		return insertParts(ctx, tx, o.ID, o.Parts)
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func insertParts(ctx context.Context, tx pgx.Tx, orderID int64, parts []Part) error {
	for _, p := range parts {
		_, err := tx.Exec(ctx, `
			INSERT INTO work_order_parts (id, work_order_id, code, description, quantity, origin)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, orderID, p.Code, p.Description, p.Quantity, p.Origin)
		if err != nil {
			return fmt.Errorf("insert work order part: %w", err)
		}
	}
	return nil
}

func (r *repository) AddItem(ctx context.Context, orderID int64, item WorkOrderItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO work_order_items (work_order_id, item_number, description, completed)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, orderID, item.ItemNumber, item.Description, item.Completed).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) GenerateNumber(ctx context.Context) (string, error) {
	// NNNNN, zero padded
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, seq)
		VALUES ($1, 1)
		ON CONFLICT (doc_type)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, "OT").Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%05d", seq), nil
}

func scanWorkOrder(row pgx.Row) (*WorkOrder, error) {
	var o WorkOrder
	var systemID, serviceTypeID pgtype.Int8
	var problemReported, workPerformed, observations pgtype.Text
	var finalizedAt, createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.ClientID, &systemID, &serviceTypeID, &o.Status,
		&o.Billable, &o.UnderContract, &o.UnderWarranty, &problemReported,
		&workPerformed, &observations, &o.BudgetRefs, &finalizedAt,
		&o.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if systemID.Valid {
		o.SystemID = &systemID.Int64
	}
	if serviceTypeID.Valid {
		o.ServiceTypeID = &serviceTypeID.Int64
	}
	if problemReported.Valid {
		o.ProblemReported = &problemReported.String
	}
	if workPerformed.Valid {
		o.WorkPerformed = &workPerformed.String
	}
	if observations.Valid {
		o.Observations = &observations.String
	}
	if finalizedAt.Valid {
		o.FinalizedAt = &finalizedAt.Time
	}
	if createdAt.Valid {
		o.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		o.UpdatedAt = updatedAt.Time
	}
	return &o, nil
}
