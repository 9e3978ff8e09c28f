package markup

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// BRL formats an amount as Brazilian reais, e.g. "R$ 1.234,56".
func BRL(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return "R$ " + printer.Sprint(number.Decimal(f, number.Scale(2)))
}

// Decimal formats a number with pt-BR separators and the given fraction digits.
func Decimal(v float64, digits int) string {
	return printer.Sprint(number.Decimal(v, number.Scale(digits)))
}

// Percent formats a 0-100 value as "12,5%".
func Percent(v float64) string {
	return Decimal(v, 1) + "%"
}
