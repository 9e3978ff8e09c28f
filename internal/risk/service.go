package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const assessmentColumns = `id, client_name, sector, employees_count, factors, risk_score, risk_level,
	recommendations, preventive_actions, status, created_at, updated_at`

// Service provides risk assessment operations
type Service struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewService creates a new risk assessment service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*Assessment, error) {
	var (
		a       Assessment
		factors []byte
	)
	err := row.Scan(&a.ID, &a.ClientName, &a.Sector, &a.EmployeesCount, &factors, &a.RiskScore,
		&a.RiskLevel, &a.Recommendations, &a.PreventiveActions, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(factors, &a.Factors); err != nil {
		return nil, fmt.Errorf("failed to decode factors of assessment %s: %w", a.ID, err)
	}
	return &a, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func write(ctx context.Context, q execer, a *Assessment, upsert bool) error {
	factors, err := json.Marshal(a.Factors)
	if err != nil {
		return fmt.Errorf("failed to encode factors: %w", err)
	}

	query := `
		INSERT INTO risk_assessments (id, client_name, sector, employees_count, factors, risk_score,
			risk_level, recommendations, preventive_actions, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if upsert {
		query += `
		ON CONFLICT (id) DO UPDATE SET
			client_name = EXCLUDED.client_name,
			sector = EXCLUDED.sector,
			employees_count = EXCLUDED.employees_count,
			factors = EXCLUDED.factors,
			risk_score = EXCLUDED.risk_score,
			risk_level = EXCLUDED.risk_level,
			recommendations = EXCLUDED.recommendations,
			preventive_actions = EXCLUDED.preventive_actions,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		`
	}

	_, err = q.Exec(ctx, query, a.ID, a.ClientName, a.Sector, a.EmployeesCount, factors, a.RiskScore,
		string(a.RiskLevel), a.Recommendations, a.PreventiveActions, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store risk assessment %s: %w", a.ID, err)
	}
	return nil
}

// Create scores and stores a new assessment.
func (s *Service) Create(ctx context.Context, in Input) (*Assessment, error) {
	a, err := Build(in, s.now())
	if err != nil {
		return nil, err
	}
	if err := write(ctx, s.pool, a, false); err != nil {
		return nil, err
	}
	return a, nil
}

// Get retrieves an assessment by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	a, err := scanAssessment(s.pool.QueryRow(ctx, `SELECT `+assessmentColumns+` FROM risk_assessments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get risk assessment: %w", err)
	}
	return a, nil
}

// ListFilter narrows List. Client and Sector match case-insensitively.
type ListFilter struct {
	Client string
	Sector string
	Level  Level
}

// List returns assessments newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM risk_assessments WHERE 1=1`
	var args []any
	if c := strings.TrimSpace(filter.Client); c != "" {
		args = append(args, c)
		query += fmt.Sprintf(" AND lower(client_name) = lower($%d)", len(args))
	}
	if sector := strings.TrimSpace(filter.Sector); sector != "" {
		args = append(args, sector)
		query += fmt.Sprintf(" AND lower(sector) = lower($%d)", len(args))
	}
	if filter.Level != "" {
		args = append(args, string(filter.Level))
		query += fmt.Sprintf(" AND risk_level = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk assessments: %w", err)
	}
	defer rows.Close()

	assessments := []Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan risk assessment: %w", err)
		}
		assessments = append(assessments, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate risk assessments: %w", err)
	}
	return assessments, nil
}

func (s *Service) ListByClient(ctx context.Context, client string) ([]Assessment, error) {
	return s.List(ctx, ListFilter{Client: client})
}

func (s *Service) ListByLevel(ctx context.Context, level Level) ([]Assessment, error) {
	return s.List(ctx, ListFilter{Level: level})
}

func (s *Service) ListBySector(ctx context.Context, sector string) ([]Assessment, error) {
	return s.List(ctx, ListFilter{Sector: sector})
}

// Update applies a partial update. Changed factors rescore the assessment.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Assessment, error) {
	var updated *Assessment
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		a, err := scanAssessment(tx.QueryRow(ctx,
			`SELECT `+assessmentColumns+` FROM risk_assessments WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAssessmentNotFound
			}
			return fmt.Errorf("failed to load risk assessment: %w", err)
		}
		if err := patch.Apply(a, s.now()); err != nil {
			return err
		}
		if err := write(ctx, tx, a, true); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an assessment
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM risk_assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete risk assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssessmentNotFound
	}
	return nil
}

// Import upserts assessments by id. Score and level are recomputed from the
// factors; records without factors keep their stored score.
func (s *Service) Import(ctx context.Context, assessments []Assessment) error {
	now := s.now()
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i := range assessments {
			a := assessments[i]
			if err := normalizeImported(&a, now); err != nil {
				return err
			}
			if err := write(ctx, tx, &a, true); err != nil {
				return err
			}
		}
		return nil
	})
}

func normalizeImported(a *Assessment, now time.Time) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	if a.Status == "" {
		a.Status = StatusCompleted
	}
	if a.Factors == nil {
		a.Factors = Factors{}
	}
	if len(a.Factors) > 0 {
		return a.rescore()
	}
	a.RiskLevel = LevelFor(a.RiskScore)
	return nil
}
