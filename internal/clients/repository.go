package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-lsm/meridian/internal/platform/db"
)

var (
	ErrNotFound  = errors.New("client not found")
	ErrDuplicate = errors.New("client already exists")
)

type Repository interface {
	Get(ctx context.Context, id int64) (*Client, error)
	List(ctx context.Context, req ListClientsRequest) ([]Client, int, error)
	Create(ctx context.Context, c Client) (int64, error)
	Update(ctx context.Context, c Client) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, company_name, tax_id, address, city, notes, active, created_at, updated_at
		FROM clients WHERE id = $1
	`, id)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, name, email, phone, role
		FROM client_contacts WHERE client_id = $1 ORDER BY name
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ct Contact
		var email, phone, role pgtype.Text
		if err := rows.Scan(&ct.ID, &ct.ClientID, &ct.Name, &email, &phone, &role); err != nil {
			return nil, err
		}
		if email.Valid {
			ct.Email = &email.String
		}
		if phone.Valid {
			ct.Phone = &phone.String
		}
		if role.Valid {
			ct.Role = &role.String
		}
		c.Contacts = append(c.Contacts, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repository) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.Search != nil && *req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("company_name ILIKE $%d", argPos))
		args = append(args, "%"+*req.Search+"%")
		argPos++
	}
	if req.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argPos))
		args = append(args, *req.Active)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM clients %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, company_name, tax_id, address, city, notes, active, created_at, updated_at
		FROM clients
		%s
		ORDER BY company_name
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Client) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO clients (company_name, tax_id, address, city, notes, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			RETURNING id
		`, c.CompanyName, c.TaxID, c.Address, c.City, c.Notes).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicate
			}
			return err
		}
		for _, ct := range c.Contacts {
			if _, err := tx.Exec(ctx, `
				INSERT INTO client_contacts (client_id, name, email, phone, role)
				VALUES ($1, $2, $3, $4, $5)
			`, id, ct.Name, ct.Email, ct.Phone, ct.Role); err != nil {
				return fmt.Errorf("insert contact: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, c Client) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients
		SET company_name = $2, tax_id = $3, address = $4, city = $5, notes = $6,
			active = $7, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.CompanyName, c.TaxID, c.Address, c.City, c.Notes, c.Active)
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

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var taxID, address, city, notes pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&c.ID, &c.CompanyName, &taxID, &address, &city, &notes,
		&c.Active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if taxID.Valid {
		c.TaxID = &taxID.String
	}
	if address.Valid {
		c.Address = &address.String
	}
	if city.Valid {
		c.City = &city.String
	}
	if notes.Valid {
		c.Notes = &notes.String
	}
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		c.UpdatedAt = updatedAt.Time
	}
	return &c, nil
}
