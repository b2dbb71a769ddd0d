// Package lineitem holds the catalog snapshot stored with every quotation and
// charge slip line, and the conversion into pricing lines.
package lineitem

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seqdesk/internal/pricing"
)

var (
	ErrUnknownService  = errors.New("unknown_service")
	ErrInactiveService = errors.New("inactive_service")
	ErrNoLines         = errors.New("no_lines")
)

// Snapshot copies the catalog fields that affect price at selection time.
// Later catalog edits never change a saved document.
type Snapshot struct {
	ServiceID          snowflake.ID        `gorm:"column:service_id;not null" json:"service_id"`
	ServiceCode        string              `gorm:"column:service_code;not null" json:"service_code"`
	Name               string              `gorm:"column:name;not null" json:"name"`
	Category           string              `gorm:"column:category" json:"category"`
	ServiceType        string              `gorm:"column:service_type" json:"service_type"`
	Unit               string              `gorm:"column:unit" json:"unit"`
	Price              decimal.Decimal     `gorm:"column:price;type:numeric(14,2);not null" json:"price"`
	PricingModel       pricing.Model       `gorm:"column:pricing_model;type:text;not null" json:"pricing_model"`
	TierMinIncluded    *int64              `gorm:"column:tier_min_included" json:"-"`
	TierAdditionalRate decimal.NullDecimal `gorm:"column:tier_additional_rate;type:numeric(14,2)" json:"-"`
}

// Tier rebuilds the structured tier from its two columns. Both must be set.
func (s Snapshot) Tier() *pricing.Tier {
	if s.TierMinIncluded == nil || !s.TierAdditionalRate.Valid {
		return nil
	}
	return &pricing.Tier{
		MinIncluded:    *s.TierMinIncluded,
		AdditionalRate: s.TierAdditionalRate.Decimal,
	}
}

// SetTier writes t into the two nullable columns, clearing both for nil.
func (s *Snapshot) SetTier(t *pricing.Tier) {
	if t == nil {
		s.TierMinIncluded = nil
		s.TierAdditionalRate = decimal.NullDecimal{}
		return
	}
	minIncluded := t.MinIncluded
	s.TierMinIncluded = &minIncluded
	s.TierAdditionalRate = decimal.NewNullDecimal(t.AdditionalRate)
}

// Item is a persisted line: snapshot, selection and resolved amounts.
type Item struct {
	Snapshot     `gorm:"embedded"`
	Quantity     int64           `gorm:"column:quantity;not null;default:0" json:"quantity"`
	BillingCount *int64          `gorm:"column:billing_count" json:"billing_count,omitempty"`
	UnitAmount   decimal.Decimal `gorm:"column:unit_amount;type:numeric(14,2);not null;default:0" json:"unit_amount"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null;default:0" json:"amount"`
}

func (i Item) PricingLine() pricing.Line {
	return pricing.Line{
		ServiceID:    i.ServiceID.String(),
		Name:         i.Name,
		Category:     i.Category,
		Type:         i.ServiceType,
		Unit:         i.Unit,
		Price:        i.Price,
		Model:        i.PricingModel,
		Tier:         i.Tier(),
		Quantity:     i.Quantity,
		BillingCount: i.BillingCount,
	}
}

// Summarize prices items and writes the resolved amounts back. Items that
// are not billable keep zero amounts.
func Summarize(items []Item, isInternal bool) pricing.Summary {
	lines := make([]pricing.Line, len(items))
	for i := range items {
		lines[i] = items[i].PricingLine()
	}
	summary := pricing.Summarize(lines, isInternal)

	next := 0
	for i := range items {
		items[i].UnitAmount = decimal.Zero
		items[i].Amount = decimal.Zero
		if !lines[i].Billable() {
			continue
		}
		priced := summary.Lines[next]
		items[i].UnitAmount = priced.UnitAmount
		items[i].Amount = priced.Amount
		next++
	}
	return summary
}

// Catalog resolves service ids to snapshots.
type Catalog interface {
	Snapshots(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]Snapshot, error)
}

// Build snapshots every input against the catalog, preserving input order.
func Build(ctx context.Context, catalog Catalog, inputs []Input) ([]Item, error) {
	if len(inputs) == 0 {
		return nil, ErrNoLines
	}

	ids := make([]snowflake.ID, 0, len(inputs))
	for _, in := range inputs {
		id, err := snowflake.ParseString(in.ServiceID)
		if err != nil || id == 0 {
			return nil, ErrUnknownService
		}
		ids = append(ids, id)
	}

	snapshots, err := catalog.Snapshots(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		snap, ok := snapshots[ids[i]]
		if !ok {
			return nil, ErrUnknownService
		}
		item := Item{
			Snapshot: snap,
			Quantity: in.Quantity.Bounded(),
		}
		if in.BillingCount != nil {
			count := in.BillingCount.Bounded()
			item.BillingCount = &count
		}
		items = append(items, item)
	}
	return items, nil
}
