package sales

import (
	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/shared"
)

var (
	zero       = decimal.Zero
	maxPercent = decimal.NewFromInt(100)
)

// priceItemLine turns a requested line into the stored SaleItem figures.
func priceItemLine(line ItemLine) (SaleItem, error) {
	if line.ItemID <= 0 {
		return SaleItem{}, shared.Invalid("item is required on every line")
	}
	if line.Quantity <= 0 {
		return SaleItem{}, shared.Invalid("quantity must be a positive whole number")
	}
	original := shared.Round2(line.OriginalPrice)
	final := shared.Round2(line.FinalPrice)
	if original.IsNegative() || final.IsNegative() {
		return SaleItem{}, shared.Invalid("prices cannot be negative")
	}
	if final.GreaterThan(original) {
		return SaleItem{}, shared.Invalid("final price %s exceeds original price %s", final.StringFixed(2), original.StringFixed(2))
	}
	if line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(maxPercent) {
		return SaleItem{}, shared.Invalid("discount percent must be between 0 and 100")
	}
	discount := original.Sub(final)
	fraction := shared.PercentToFraction(line.DiscountPercent)
	if fraction.IsZero() && discount.IsPositive() && original.IsPositive() {
		fraction = discount.Div(original).Round(4)
	}
	return SaleItem{
		ItemID:            line.ItemID,
		Quantity:          line.Quantity,
		OriginalUnitPrice: original,
		DiscountPercent:   fraction,
		DiscountAmount:    discount,
		FinalUnitPrice:    final,
	}, nil
}

// totals returns the service fee and the sale total.
func totals(items []SaleItem, services []SaleService) (serviceFee, total decimal.Decimal) {
	serviceFee = zero
	for _, s := range services {
		serviceFee = serviceFee.Add(s.Price)
	}
	total = serviceFee
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return shared.Round2(serviceFee), shared.Round2(total)
}
