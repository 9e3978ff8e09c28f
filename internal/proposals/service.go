package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/db"
	"github.com/aliuyar1234/nr01desk/internal/pricing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const proposalColumns = `id, client_name, client_email, title, items, total_value, general_discount,
	displacement_fee, final_total, tax_regime, status, proposal_date::text, created_at, updated_at`

// Service provides proposal operations
type Service struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewService creates a new proposal service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*Proposal, error) {
	var (
		p     Proposal
		items []byte
	)
	err := row.Scan(&p.ID, &p.ClientName, &p.ClientEmail, &p.Title, &items, &p.TotalValue,
		&p.GeneralDiscount, &p.DisplacementFee, &p.FinalTotal, &p.TaxRegime, &p.Status,
		&p.ProposalDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &p.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of proposal %s: %w", p.ID, err)
	}
	if p.Items == nil {
		p.Items = []Item{}
	}
	return &p, nil
}

// Create validates in and stores a new draft.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Proposal, error) {
	p, err := Build(in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, s.pool, p, false); err != nil {
		return nil, err
	}
	return p, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Service) insert(ctx context.Context, q execer, p *Proposal, upsert bool) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("failed to encode proposal items: %w", err)
	}

	query := `
		INSERT INTO proposals (id, client_name, client_email, title, items, total_value, general_discount,
			displacement_fee, final_total, tax_regime, status, proposal_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::date, $13, $14)
	`
	if upsert {
		query += `
		ON CONFLICT (id) DO UPDATE SET
			client_name = EXCLUDED.client_name,
			client_email = EXCLUDED.client_email,
			title = EXCLUDED.title,
			items = EXCLUDED.items,
			total_value = EXCLUDED.total_value,
			general_discount = EXCLUDED.general_discount,
			displacement_fee = EXCLUDED.displacement_fee,
			final_total = EXCLUDED.final_total,
			tax_regime = EXCLUDED.tax_regime,
			status = EXCLUDED.status,
			proposal_date = EXCLUDED.proposal_date,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		`
	}

	_, err = q.Exec(ctx, query, p.ID, p.ClientName, p.ClientEmail, p.Title, items, p.TotalValue,
		p.GeneralDiscount, p.DisplacementFee, p.FinalTotal, p.TaxRegime, string(p.Status),
		p.ProposalDate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store proposal %s: %w", p.ID, err)
	}
	return nil
}

// normalizeImported fills defaults on a record from another system and
// recomputes its totals.
func normalizeImported(p *Proposal, now time.Time) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if _, err := ParseStatus(string(p.Status)); err != nil {
		return fmt.Errorf("proposal %s: %w %q", p.ID, err, p.Status)
	}
	if p.TaxRegime == "" {
		p.TaxRegime = pricing.RegimeSimples
	}
	if p.ProposalDate == "" {
		p.ProposalDate = p.CreatedAt.Format(DateLayout)
	}
	if len(p.ProposalDate) > len(DateLayout) {
		p.ProposalDate = p.ProposalDate[:len(DateLayout)]
	}
	if _, err := time.Parse(DateLayout, p.ProposalDate); err != nil {
		return fmt.Errorf("proposal %s: invalid proposal_date %q", p.ID, p.ProposalDate)
	}
	if p.Items == nil {
		p.Items = []Item{}
	}
	for i := range p.Items {
		p.Items[i].normalize()
	}
	p.GeneralDiscount = p.GeneralDiscount.Round(2)
	p.DisplacementFee = p.DisplacementFee.Round(2)
	p.Recompute()
	return nil
}

// Get retrieves a proposal by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	p, err := scanProposal(s.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

// ListFilter narrows List. Client matches case-insensitively.
type ListFilter struct {
	Status Status
	Client string
}

// List returns proposals newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if c := strings.TrimSpace(filter.Client); c != "" {
		args = append(args, c)
		query += fmt.Sprintf(" AND lower(client_name) = lower($%d)", len(args))
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	proposals := []Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate proposals: %w", err)
	}
	return proposals, nil
}

// ListByStatus returns the proposals in one status.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Proposal, error) {
	return s.List(ctx, ListFilter{Status: status})
}

// ListByClient returns the proposals of one client, matched case-insensitively.
func (s *Service) ListByClient(ctx context.Context, client string) ([]Proposal, error) {
	return s.List(ctx, ListFilter{Client: client})
}

// UpdateStatus moves a proposal to status and stamps updated_at.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Proposal, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	p, err := scanProposal(s.pool.QueryRow(ctx, `
		UPDATE proposals SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+proposalColumns, id, string(status), s.now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to update proposal status: %w", err)
	}
	return p, nil
}

// Delete removes a proposal
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProposalNotFound
	}
	return nil
}

// Import upserts proposals by id, keeping their timestamps and status.
// Totals are recomputed from the items.
func (s *Service) Import(ctx context.Context, proposals []Proposal) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i := range proposals {
			p := proposals[i]
			if err := normalizeImported(&p, s.now()); err != nil {
				return err
			}
			if err := s.insert(ctx, tx, &p, true); err != nil {
				return err
			}
		}
		return nil
	})
}
