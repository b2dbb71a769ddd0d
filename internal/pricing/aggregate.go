package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

const uncategorized = "Uncategorized"

// Aggregate prices every billable line and groups them by category in the
// order categories are first seen. Lines with a non-positive quantity are
// skipped entirely.
func Aggregate(lines []Line) Aggregation {
	out := Aggregation{
		Lines:      make([]PricedLine, 0, len(lines)),
		Categories: []CategoryGroup{},
		Subtotal:   decimal.Zero,
	}
	index := map[string]int{}

	for _, line := range lines {
		priced, ok := Resolve(line)
		if !ok {
			continue
		}
		out.Lines = append(out.Lines, priced)
		out.Subtotal = out.Subtotal.Add(priced.Amount)

		name := groupName(line)
		pos, seen := index[name]
		if !seen {
			pos = len(out.Categories)
			index[name] = pos
			out.Categories = append(out.Categories, CategoryGroup{Name: name, Subtotal: decimal.Zero})
		}
		group := &out.Categories[pos]
		group.Lines = append(group.Lines, priced)
		group.Subtotal = group.Subtotal.Add(priced.Amount)
	}

	return out
}

func groupName(line Line) string {
	if name := strings.TrimSpace(line.Category); name != "" {
		return name
	}
	if name := strings.TrimSpace(line.Type); name != "" {
		return name
	}
	return uncategorized
}
