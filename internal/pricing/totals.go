package pricing

import "github.com/shopspring/decimal"

// internalDiscountRate is the flat discount granted to internal clients.
var internalDiscountRate = decimal.New(12, -2)

// InternalDiscountRate returns the fixed internal-client rate (0.12).
func InternalDiscountRate() decimal.Decimal {
	return internalDiscountRate
}

func ComputeTotals(subtotal decimal.Decimal, isInternal bool) Totals {
	discount := decimal.Zero
	if isInternal {
		discount = subtotal.Mul(internalDiscountRate)
	}
	return Totals{
		Internal: isInternal,
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

// Summarize is the single entry point for quotation and charge slip numbers.
// On-screen summaries, PDFs and persisted totals all come from here.
func Summarize(lines []Line, isInternal bool) Summary {
	agg := Aggregate(lines)
	return Summary{
		Aggregation: agg,
		Totals:      ComputeTotals(agg.Subtotal, isInternal),
	}
}
