package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	hundred = decimal.NewFromInt(100)
	printer = message.NewPrinter(language.English)
)

// Round2 rounds to centavos.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PercentToFraction converts a whole-number percent (15 for 15%) into 0.15.
func PercentToFraction(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(hundred)
}

// FormatPeso renders an amount as ₱1,234.50.
func FormatPeso(d decimal.Decimal) string {
	f, _ := Round2(d).Float64()
	return printer.Sprintf("₱%.2f", f)
}
