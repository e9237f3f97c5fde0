package intake

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("intake record not found")

type Repository interface {
	Get(ctx context.Context, id int64) (*Record, error)
	ListByWorkOrder(ctx context.Context, workOrderID int64) ([]Record, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	// AppendHistory inserts one history entry. It is idempotent on
	// (record, work order, note): re-appending the same note is a no-op and
	// reports inserted = false.
	AppendHistory(ctx context.Context, entry HistoryEntry) (inserted bool, err error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id int64) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, client_id, instrument, serial_number, status, work_order_id,
		       received_at, updated_at
		FROM intake_records WHERE id = $1
	`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, record_id, work_order_id, note, created_at
		FROM intake_history WHERE record_id = $1 ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		rec.History = append(rec.History, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repository) ListByWorkOrder(ctx context.Context, workOrderID int64) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, instrument, serial_number, status, work_order_id,
		       received_at, updated_at
		FROM intake_records WHERE work_order_id = $1 ORDER BY received_at, id
	`, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE intake_records SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) AppendHistory(ctx context.Context, entry HistoryEntry) (bool, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO intake_history (id, record_id, work_order_id, note)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (record_id, work_order_id, note) DO NOTHING
	`, entry.ID, entry.RecordID, entry.WorkOrderID, entry.Note)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var serial pgtype.Text
	var workOrder pgtype.Int8
	var receivedAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&rec.ID, &rec.ClientID, &rec.Instrument, &serial, &rec.Status,
		&workOrder, &receivedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if serial.Valid {
		rec.SerialNumber = &serial.String
	}
	if workOrder.Valid {
		rec.WorkOrderID = &workOrder.Int64
	}
	if receivedAt.Valid {
		rec.ReceivedAt = receivedAt.Time
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	return &rec, nil
}

func scanHistory(row pgx.Row) (*HistoryEntry, error) {
	var entry HistoryEntry
	var workOrder pgtype.Int8
	var createdAt pgtype.Timestamptz
	err := row.Scan(&entry.ID, &entry.RecordID, &workOrder, &entry.Note, &createdAt)
	if err != nil {
		return nil, err
	}
	if workOrder.Valid {
		entry.WorkOrderID = &workOrder.Int64
	}
	if createdAt.Valid {
		entry.CreatedAt = createdAt.Time
	}
	return &entry, nil
}
