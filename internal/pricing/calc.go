// Package pricing computes consulting prices from the firm's cost structure.
// All arithmetic is decimal; callers round for display or storage.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrZeroHours is returned when productive hours are zero or negative.
var ErrZeroHours = errors.New("productive hours must be greater than zero")

// Tax regimes accepted on proposals.
const (
	RegimeMEI            = "MEI"
	RegimeSimples        = "Simples Nacional"
	RegimeLucroPresumido = "Lucro Presumido"
	RegimeAutonomo       = "Autônomo"
)

// Regimes lists the known tax regimes in display order.
func Regimes() []string {
	return []string{RegimeMEI, RegimeSimples, RegimeLucroPresumido, RegimeAutonomo}
}

// ItemBaseHours is the monthly hour basis used when pricing a proposal item
// from a catalog price.
const ItemBaseHours = 160

var (
	hundred      = decimal.NewFromInt(100)
	one          = decimal.NewFromInt(1)
	itemOverhead = decimal.RequireFromString("0.2")
)

func pct(rate decimal.Decimal) decimal.Decimal {
	return rate.Div(hundred)
}

// TechnicalHour is (fixed costs + pro-labor) / productive hours.
func TechnicalHour(fixedCosts, proLabor, productiveHours decimal.Decimal) (decimal.Decimal, error) {
	if !productiveHours.IsPositive() {
		return decimal.Zero, ErrZeroHours
	}
	return fixedCosts.Add(proLabor).Div(productiveHours), nil
}

// WithTaxes is technicalHour × (1 + taxRate/100).
func WithTaxes(technicalHour, taxRate decimal.Decimal) decimal.Decimal {
	return technicalHour.Mul(one.Add(pct(taxRate)))
}

// Base is the hourly value × estimated hours.
func Base(hourly, estimatedHours decimal.Decimal) decimal.Decimal {
	return hourly.Mul(estimatedHours)
}

// Adjusted compounds the personalization, risk and seniority percentages.
func Adjusted(base, personalization, risk, seniority decimal.Decimal) decimal.Decimal {
	return base.
		Mul(one.Add(pct(personalization))).
		Mul(one.Add(pct(risk))).
		Mul(one.Add(pct(seniority)))
}

// Discounted applies the volume discount percentage.
func Discounted(adjusted, volumeDiscount decimal.Decimal) decimal.Decimal {
	return adjusted.Mul(one.Sub(pct(volumeDiscount)))
}

// Total is discounted − general discount + displacement fee.
func Total(discounted, generalDiscount, displacementFee decimal.Decimal) decimal.Decimal {
	return discounted.Sub(generalDiscount).Add(displacementFee)
}

// ItemInput prices one proposal line from a catalog base price.
type ItemInput struct {
	BasePrice                 decimal.Decimal `json:"base_price"`
	EstimatedHours            decimal.Decimal `json:"estimated_hours"`
	TaxRate                   decimal.Decimal `json:"tax_rate"`
	AdjustmentPersonalization decimal.Decimal `json:"adjustment_personalization"`
	AdjustmentRisk            decimal.Decimal `json:"adjustment_risk"`
	AdjustmentSeniority       decimal.Decimal `json:"adjustment_seniority"`
	VolumeDiscount            decimal.Decimal `json:"volume_discount"`
}

// ItemBreakdown shows every step of an item price.
type ItemBreakdown struct {
	TechnicalHour   decimal.Decimal `json:"technical_hour"`
	ValueWithTaxes  decimal.Decimal `json:"value_with_taxes"`
	BaseValue       decimal.Decimal `json:"base_value"`
	AdjustedValue   decimal.Decimal `json:"adjusted_value"`
	DiscountedValue decimal.Decimal `json:"discounted_value"`
}

// ProposalItem prices a line: the technical hour is (base + 20% of base)
// over ItemBaseHours, then taxes, hours, adjustments and volume discount
// apply in turn.
func ProposalItem(in ItemInput) ItemBreakdown {
	th, _ := TechnicalHour(in.BasePrice, in.BasePrice.Mul(itemOverhead), decimal.NewFromInt(ItemBaseHours))
	withTaxes := WithTaxes(th, in.TaxRate)
	base := Base(withTaxes, in.EstimatedHours)
	adjusted := Adjusted(base, in.AdjustmentPersonalization, in.AdjustmentRisk, in.AdjustmentSeniority)
	return ItemBreakdown{
		TechnicalHour:   th,
		ValueWithTaxes:  withTaxes,
		BaseValue:       base,
		AdjustedValue:   adjusted,
		DiscountedValue: Discounted(adjusted, in.VolumeDiscount),
	}
}

// TaxRates holds the rate, in percent, per regime.
type TaxRates struct {
	MEI            decimal.Decimal `json:"tax_rate_mei"`
	Simples        decimal.Decimal `json:"tax_rate_simples"`
	LucroPresumido decimal.Decimal `json:"tax_rate_lucro_presumido"`
	Autonomo       decimal.Decimal `json:"tax_rate_autonomo"`
}

// DefaultTaxRates returns the stock rates.
func DefaultTaxRates() TaxRates {
	return TaxRates{
		MEI:            decimal.RequireFromString("3.5"),
		Simples:        decimal.RequireFromString("6.0"),
		LucroPresumido: decimal.RequireFromString("8.0"),
		Autonomo:       decimal.RequireFromString("11.0"),
	}
}

// For returns the rate of regime, or zero for an unknown regime.
func (t TaxRates) For(regime string) decimal.Decimal {
	switch regime {
	case RegimeMEI:
		return t.MEI
	case RegimeSimples:
		return t.Simples
	case RegimeLucroPresumido:
		return t.LucroPresumido
	case RegimeAutonomo:
		return t.Autonomo
	default:
		return decimal.Zero
	}
}

// KnownRegime reports whether regime is one of Regimes.
func KnownRegime(regime string) bool {
	for _, r := range Regimes() {
		if r == regime {
			return true
		}
	}
	return false
}
