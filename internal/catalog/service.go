package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const serviceColumns = `id, name, price, hours, category, description, created_at, updated_at`

// Catalog provides services catalog operations
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog creates a new catalog backed by pool
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.Name, &s.Price, &s.Hours, &s.Category, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create adds a service under the next srv-NNN id. Ids taken by imports are
// skipped.
func (c *Catalog) Create(ctx context.Context, in Input) (*Service, error) {
	in.Normalize()
	if errs := in.Validate(); errs != nil {
		return nil, errs
	}

	query := `
		INSERT INTO services (id, name, price, hours, category, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + serviceColumns

	for attempt := 0; attempt < 3; attempt++ {
		var n int64
		if err := c.pool.QueryRow(ctx, "SELECT nextval('services_id_seq')").Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to allocate service id: %w", err)
		}

		svc, err := scanService(c.pool.QueryRow(ctx, query,
			FormatID(n), in.Name, in.Price, in.Hours, in.Category, in.Description))
		if err == nil {
			return svc, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create service: %w", err)
		}
		if err := c.syncSequence(ctx, c.pool); err != nil {
			return nil, err
		}
	}
	return nil, ErrServiceExists
}

// Get retrieves a service by id
func (c *Catalog) Get(ctx context.Context, id string) (*Service, error) {
	svc, err := scanService(c.pool.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return svc, nil
}

// Update applies a partial update and stamps updated_at.
func (c *Catalog) Update(ctx context.Context, id string, patch Patch) (*Service, error) {
	var updated *Service
	err := db.WithTx(ctx, c.pool, func(tx pgx.Tx) error {
		current, err := scanService(tx.QueryRow(ctx,
			`SELECT `+serviceColumns+` FROM services WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrServiceNotFound
			}
			return fmt.Errorf("failed to load service: %w", err)
		}

		in := patch.Apply(current)
		in.Normalize()
		if errs := in.Validate(); errs != nil {
			return errs
		}

		updated, err = scanService(tx.QueryRow(ctx, `
			UPDATE services
			SET name = $2, price = $3, hours = $4, category = $5, description = $6, updated_at = NOW()
			WHERE id = $1
			RETURNING `+serviceColumns,
			id, in.Name, in.Price, in.Hours, in.Category, in.Description))
		if err != nil {
			return fmt.Errorf("failed to update service: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a service. Proposals keep their copied item names.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

// List returns every service ordered by id.
func (c *Catalog) List(ctx context.Context) ([]Service, error) {
	return c.list(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY id`)
}

// ListByCategory returns the services of one category, matched exactly.
func (c *Catalog) ListByCategory(ctx context.Context, category string) ([]Service, error) {
	return c.list(ctx, `SELECT `+serviceColumns+` FROM services WHERE category = $1 ORDER BY id`, category)
}

func (c *Catalog) list(ctx context.Context, query string, args ...any) ([]Service, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := []Service{}
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate services: %w", err)
	}
	return services, nil
}

// Categories returns the distinct categories in alphabetical order. Services
// without one are reported as Uncategorized.
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT DISTINCT COALESCE(NULLIF(category, ''), $1)
		FROM services
		ORDER BY 1
	`, Uncategorized)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

// ImportRecords upserts CSV rows in one transaction. Rows without an id get
// the next sequence value. It returns the number of rows written.
func (c *Catalog) ImportRecords(ctx context.Context, records []Record) (int, error) {
	err := db.WithTx(ctx, c.pool, func(tx pgx.Tx) error {
		for _, rec := range records {
			id := rec.ID
			if id == "" {
				var n int64
				if err := tx.QueryRow(ctx, "SELECT nextval('services_id_seq')").Scan(&n); err != nil {
					return fmt.Errorf("failed to allocate service id: %w", err)
				}
				id = FormatID(n)
			}
			now := time.Now().UTC()
			svc := &Service{
				ID:          id,
				Name:        rec.Input.Name,
				Price:       rec.Input.Price,
				Hours:       rec.Input.Hours,
				Category:    rec.Input.Category,
				Description: rec.Input.Description,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := upsert(ctx, tx, svc, false); err != nil {
				return fmt.Errorf("line %d: %w", rec.Line, err)
			}
		}
		return c.syncSequence(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// ImportServices upserts full records, keeping their ids and timestamps.
func (c *Catalog) ImportServices(ctx context.Context, services []Service) error {
	return db.WithTx(ctx, c.pool, func(tx pgx.Tx) error {
		for i := range services {
			svc := services[i]
			if svc.ID == "" {
				return fmt.Errorf("service %q has no id", svc.Name)
			}
			in := Input{Name: svc.Name, Price: svc.Price, Hours: svc.Hours, Category: svc.Category, Description: svc.Description}
			in.Normalize()
			if errs := in.Validate(); errs != nil {
				return fmt.Errorf("service %s: %w", svc.ID, errs)
			}
			svc.Name, svc.Price, svc.Hours, svc.Category, svc.Description = in.Name, in.Price, in.Hours, in.Category, in.Description
			if err := upsert(ctx, tx, &svc, true); err != nil {
				return fmt.Errorf("service %s: %w", svc.ID, err)
			}
		}
		return c.syncSequence(ctx, tx)
	})
}

// upsert writes svc by id. With keepCreated the stored created_at is taken
// from svc, otherwise an existing row keeps its own.
func upsert(ctx context.Context, tx pgx.Tx, svc *Service, keepCreated bool) error {
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	if svc.UpdatedAt.IsZero() {
		svc.UpdatedAt = svc.CreatedAt
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO services (id, name, price, hours, category, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			hours = EXCLUDED.hours,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			created_at = CASE WHEN $9 THEN EXCLUDED.created_at ELSE services.created_at END,
			updated_at = EXCLUDED.updated_at
	`, svc.ID, svc.Name, svc.Price, svc.Hours, svc.Category, svc.Description, svc.CreatedAt, svc.UpdatedAt, keepCreated)
	if err != nil {
		return fmt.Errorf("failed to upsert service: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// syncSequence moves services_id_seq past the highest srv-NNN id so Create
// never hands out an imported id. It never moves the sequence backwards.
func (c *Catalog) syncSequence(ctx context.Context, q queryRower) error {
	var maxID int64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(MAX(substring(id FROM 5)::bigint), 0)
		FROM services
		WHERE id ~ '^srv-[0-9]+$'
	`).Scan(&maxID)
	if err != nil {
		return fmt.Errorf("failed to read highest service id: %w", err)
	}
	if maxID == 0 {
		return nil
	}

	var ignored int64
	err = q.QueryRow(ctx, `
		SELECT setval('services_id_seq', GREATEST($1, (SELECT last_value FROM services_id_seq)), true)
	`, maxID).Scan(&ignored)
	if err != nil {
		return fmt.Errorf("failed to advance service id sequence: %w", err)
	}
	return nil
}
