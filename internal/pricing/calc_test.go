package pricing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, got.Equal(d(want)), "want %s, got %s", want, got)
}

func TestTechnicalHour(t *testing.T) {
	th, err := TechnicalHour(d("5000"), d("2000"), d("160"))
	require.NoError(t, err)
	requireDecimal(t, "43.75", th)

	_, err = TechnicalHour(d("5000"), d("2000"), decimal.Zero)
	require.ErrorIs(t, err, ErrZeroHours)

	_, err = TechnicalHour(d("5000"), d("2000"), d("-1"))
	require.ErrorIs(t, err, ErrZeroHours)
}

func TestWithTaxes(t *testing.T) {
	requireDecimal(t, "110", WithTaxes(d("100"), d("10")))
	requireDecimal(t, "100", WithTaxes(d("100"), decimal.Zero))
	requireDecimal(t, "150", WithTaxes(d("100"), d("50")))
}

func TestBase(t *testing.T) {
	requireDecimal(t, "2000", Base(d("50"), d("40")))
	requireDecimal(t, "2025", Base(d("50"), d("40.5")))
}

func TestAdjusted(t *testing.T) {
	requireDecimal(t, "1155", Adjusted(d("1000"), d("10"), d("5"), decimal.Zero))
	requireDecimal(t, "1000", Adjusted(d("1000"), decimal.Zero, decimal.Zero, decimal.Zero))
	requireDecimal(t, "1331", Adjusted(d("1000"), d("10"), d("10"), d("10")))
}

func TestDiscounted(t *testing.T) {
	requireDecimal(t, "900", Discounted(d("1000"), d("10")))
	requireDecimal(t, "1000", Discounted(d("1000"), decimal.Zero))
	requireDecimal(t, "0", Discounted(d("1000"), d("100")))
}

func TestTotal(t *testing.T) {
	requireDecimal(t, "950", Total(d("1000"), d("100"), d("50")))
	requireDecimal(t, "1000", Total(d("1000"), decimal.Zero, decimal.Zero))
}

func TestProposalItem(t *testing.T) {
	b := ProposalItem(ItemInput{
		BasePrice:                 d("5000"),
		EstimatedHours:            d("40"),
		TaxRate:                   d("6"),
		AdjustmentPersonalization: d("10"),
		AdjustmentRisk:            d("5"),
		VolumeDiscount:            d("5"),
	})

	// (5000 + 1000) / 160
	requireDecimal(t, "37.5", b.TechnicalHour)
	requireDecimal(t, "39.75", b.ValueWithTaxes)
	requireDecimal(t, "1590", b.BaseValue)
	requireDecimal(t, "1836.45", b.AdjustedValue)
	require.Equal(t, "1744.63", b.DiscountedValue.StringFixed(2))

	minimal := ProposalItem(ItemInput{BasePrice: d("1000"), EstimatedHours: d("10")})
	requireDecimal(t, "7.5", minimal.TechnicalHour)
	requireDecimal(t, "75", minimal.DiscountedValue)
}

func TestTaxRatesFor(t *testing.T) {
	rates := DefaultTaxRates()
	requireDecimal(t, "3.5", rates.For(RegimeMEI))
	requireDecimal(t, "6", rates.For(RegimeSimples))
	requireDecimal(t, "8", rates.For(RegimeLucroPresumido))
	requireDecimal(t, "11", rates.For(RegimeAutonomo))
	requireDecimal(t, "0", rates.For("Unknown"))

	require.True(t, KnownRegime("Autônomo"))
	require.False(t, KnownRegime("autonomo"))
}

func TestParametersValidate(t *testing.T) {
	p := DefaultParameters()
	require.Nil(t, p.Validate())

	th, err := p.TechnicalHour()
	require.NoError(t, err)
	requireDecimal(t, "43.75", th)

	p.ProductiveHours = decimal.Zero
	p.MEI = d("101")
	p.ProLabor = d("-5")
	errs := p.Validate()
	require.Len(t, errs, 3)
	require.Contains(t, errs, "productive_hours")
	require.Contains(t, errs, "tax_rate_mei")
	require.Contains(t, errs, "pro_labor")
}

func TestParametersJSONFlattensTaxRates(t *testing.T) {
	var p Parameters
	require.NoError(t, json.Unmarshal([]byte(`{
		"fixed_costs": 6000, "pro_labor": "2500.50", "productive_hours": 150,
		"tax_rate_mei": 3.5, "tax_rate_simples": 6, "tax_rate_lucro_presumido": 8, "tax_rate_autonomo": 11
	}`), &p))
	requireDecimal(t, "2500.50", p.ProLabor)
	requireDecimal(t, "6", p.For(RegimeSimples))
	require.Nil(t, p.Validate())
}
