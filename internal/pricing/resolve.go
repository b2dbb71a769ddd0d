package pricing

import "github.com/shopspring/decimal"

// ResolveLineAmount returns the amount billed for one repetition of a line.
// Quantity is applied by the caller.
//
// Missing or non-positive billing counts resolve as 1, so a tiered line that
// has not been configured yet still costs the base price and never less.
func ResolveLineAmount(model Model, billingCount *int64, basePrice decimal.Decimal, tier *Tier) decimal.Decimal {
	if !model.Tiered() || tier == nil || tier.MinIncluded <= 0 {
		return basePrice
	}

	count := int64(1)
	if billingCount != nil && *billingCount > 0 {
		count = *billingCount
	}

	if count <= tier.MinIncluded {
		return basePrice
	}

	extra := decimal.NewFromInt(count - tier.MinIncluded)
	return basePrice.Add(extra.Mul(tier.AdditionalRate))
}

// Resolve prices a single line. The second return value is false when the
// line is not billable.
func Resolve(line Line) (PricedLine, bool) {
	if !line.Billable() {
		return PricedLine{}, false
	}
	unit := ResolveLineAmount(line.Model, line.BillingCount, line.Price, line.Tier)
	return PricedLine{
		Line:       line,
		UnitAmount: unit,
		Amount:     unit.Mul(decimal.NewFromInt(line.Quantity)),
	}, true
}
