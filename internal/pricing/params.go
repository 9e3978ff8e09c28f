package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Parameters is the firm's cost structure. There is exactly one row.
type Parameters struct {
	FixedCosts      decimal.Decimal `json:"fixed_costs"`
	ProLabor        decimal.Decimal `json:"pro_labor"`
	ProductiveHours decimal.Decimal `json:"productive_hours"`
	TaxRates
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultParameters mirrors the database defaults.
func DefaultParameters() Parameters {
	return Parameters{
		FixedCosts:      decimal.NewFromInt(5000),
		ProLabor:        decimal.NewFromInt(2000),
		ProductiveHours: decimal.NewFromInt(160),
		TaxRates:        DefaultTaxRates(),
	}
}

// TechnicalHour computes the hour rate from these parameters.
func (p Parameters) TechnicalHour() (decimal.Decimal, error) {
	return TechnicalHour(p.FixedCosts, p.ProLabor, p.ProductiveHours)
}

// Validate reports field errors keyed by JSON name.
func (p Parameters) Validate() map[string]string {
	errs := map[string]string{}
	if !p.FixedCosts.IsPositive() {
		errs["fixed_costs"] = "fixed costs must be positive"
	}
	if !p.ProLabor.IsPositive() {
		errs["pro_labor"] = "pro-labor must be positive"
	}
	if !p.ProductiveHours.IsPositive() {
		errs["productive_hours"] = ErrZeroHours.Error()
	}
	rates := map[string]decimal.Decimal{
		"tax_rate_mei":             p.MEI,
		"tax_rate_simples":         p.Simples,
		"tax_rate_lucro_presumido": p.LucroPresumido,
		"tax_rate_autonomo":        p.Autonomo,
	}
	for field, rate := range rates {
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			errs[field] = "tax rate must be between 0 and 100"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Store persists the parameters row.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the current parameters.
func (s *Store) Get(ctx context.Context) (*Parameters, error) {
	var p Parameters
	err := s.pool.QueryRow(ctx, `
		SELECT fixed_costs, pro_labor, productive_hours,
		       tax_rate_mei, tax_rate_simples, tax_rate_lucro_presumido, tax_rate_autonomo,
		       updated_at
		FROM pricing_parameters
		WHERE id
	`).Scan(
		&p.FixedCosts, &p.ProLabor, &p.ProductiveHours,
		&p.MEI, &p.Simples, &p.LucroPresumido, &p.Autonomo,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing parameters: %w", err)
	}
	return &p, nil
}

// Update replaces the parameters. Callers validate first.
func (s *Store) Update(ctx context.Context, p Parameters) (*Parameters, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pricing_parameters (id, fixed_costs, pro_labor, productive_hours,
			tax_rate_mei, tax_rate_simples, tax_rate_lucro_presumido, tax_rate_autonomo, updated_at)
		VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			fixed_costs = EXCLUDED.fixed_costs,
			pro_labor = EXCLUDED.pro_labor,
			productive_hours = EXCLUDED.productive_hours,
			tax_rate_mei = EXCLUDED.tax_rate_mei,
			tax_rate_simples = EXCLUDED.tax_rate_simples,
			tax_rate_lucro_presumido = EXCLUDED.tax_rate_lucro_presumido,
			tax_rate_autonomo = EXCLUDED.tax_rate_autonomo,
			updated_at = NOW()
	`,
		p.FixedCosts.Round(2), p.ProLabor.Round(2), p.ProductiveHours.Round(2),
		p.MEI.Round(2), p.Simples.Round(2), p.LucroPresumido.Round(2), p.Autonomo.Round(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update pricing parameters: %w", err)
	}
	return s.Get(ctx)
}
