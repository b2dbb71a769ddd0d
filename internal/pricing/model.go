// Package pricing computes line amounts, category subtotals and quotation
// totals. Everything in this package is pure: no I/O, no clocks, no globals
// that change at runtime.
package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Model selects how a catalog entry is billed. It is decided once, when the
// entry is created, and copied into every line snapshot.
type Model string

const (
	ModelFlat                 Model = "flat"
	ModelTieredBySamples      Model = "tiered_by_samples"
	ModelTieredByParticipants Model = "tiered_by_participants"
)

var ErrInvalidModel = errors.New("invalid_pricing_model")

func (m Model) Valid() bool {
	switch m {
	case ModelFlat, ModelTieredBySamples, ModelTieredByParticipants:
		return true
	default:
		return false
	}
}

// Tiered reports whether the model applies graduated pricing.
func (m Model) Tiered() bool {
	return m == ModelTieredBySamples || m == ModelTieredByParticipants
}

// CountLabel is the noun printed next to the billing count.
func (m Model) CountLabel() string {
	switch m {
	case ModelTieredBySamples:
		return "samples"
	case ModelTieredByParticipants:
		return "participants"
	default:
		return ""
	}
}

func ParseModel(raw string) (Model, error) {
	m := Model(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", ErrInvalidModel
	}
	return m, nil
}

// InferModel maps a free-text service type to a pricing model. It is only
// used when a catalog entry is created without an explicit model.
func InferModel(serviceType string) Model {
	t := strings.ToLower(serviceType)
	switch {
	case strings.Contains(t, "bioinformatics"):
		return ModelTieredBySamples
	case strings.Contains(t, "training"):
		return ModelTieredByParticipants
	default:
		return ModelFlat
	}
}

// Tier is the graduated part of a price: the base price covers up to
// MinIncluded units, each unit above costs AdditionalRate.
type Tier struct {
	MinIncluded    int64           `json:"min_included"`
	AdditionalRate decimal.Decimal `json:"additional_rate"`
}

// Line is a selected service as it was when it was added to a document.
type Line struct {
	ServiceID    string          `json:"service_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Type         string          `json:"type"`
	Unit         string          `json:"unit"`
	Price        decimal.Decimal `json:"price"`
	Model        Model           `json:"pricing_model"`
	Tier         *Tier           `json:"tier,omitempty"`
	Quantity     int64           `json:"quantity"`
	BillingCount *int64          `json:"billing_count,omitempty"`
}

// Billable reports whether the line has been configured enough to count
// towards totals.
func (l Line) Billable() bool {
	return l.Quantity > 0
}

// PricedLine is a billable line with its resolved amounts.
type PricedLine struct {
	Line
	UnitAmount decimal.Decimal `json:"unit_amount"`
	Amount     decimal.Decimal `json:"amount"`
}

type CategoryGroup struct {
	Name     string          `json:"name"`
	Lines    []PricedLine    `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type Aggregation struct {
	Lines      []PricedLine    `json:"lines"`
	Categories []CategoryGroup `json:"categories"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type Totals struct {
	Internal bool            `json:"internal"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Summary is what every consumer of quotation numbers reads.
type Summary struct {
	Aggregation
	Totals Totals `json:"totals"`
}
