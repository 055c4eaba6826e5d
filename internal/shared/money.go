package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultTolerance is the rounding slack accepted when comparing declared totals.
var DefaultTolerance = decimal.NewFromFloat(0.01)

var moneyPrinter = message.NewPrinter(language.MustParse("es-AR"))

// RoundMoney rounds to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinTolerance reports whether |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// FormatMoney renders an amount for Spanish user-facing messages.
func FormatMoney(d decimal.Decimal) string {
	return moneyPrinter.Sprintf("$%.2f", d.Round(2).InexactFloat64())
}
