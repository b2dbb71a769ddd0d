// Package document turns a pricing summary into the formatted strings that
// every printed surface shows. The HTML panel and the PDF both read from a
// View, so they cannot disagree on a number.
package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seqdesk/internal/config"
	"github.com/smallbiznis/seqdesk/internal/pricing"
)

type Kind string

const (
	KindQuotation  Kind = "Quotation"
	KindChargeSlip Kind = "Charge Slip"
)

type Party struct {
	Name        string
	Institution string
	Department  string
	Email       string
	Phone       string
}

type Meta struct {
	Kind         Kind
	Reference    string
	Status       string
	IssuedAt     time.Time
	ValidUntil   *time.Time
	Client       Party
	ProjectTitle string
	Notes        string
	Profile      config.DocumentProfile
}

type Letterhead struct {
	Name       string
	Department string
	Address    []string
	Email      string
	Phone      string
}

type Line struct {
	Name       string
	Detail     string
	Unit       string
	Quantity   string
	UnitAmount string
	Amount     string
}

type Group struct {
	Name     string
	Lines    []Line
	Subtotal string
}

type View struct {
	Title        string
	Reference    string
	Status       string
	IssuedOn     string
	ValidUntil   string
	Center       Letterhead
	Client       Party
	ProjectTitle string
	Currency     string
	Groups       []Group

	Internal      bool
	Subtotal      string
	DiscountLabel string
	Discount      string
	Total         string

	Bank        config.BankDetails
	Signatories []config.Signatory
	Terms       []string
	Notes       string
}

// BuildView formats a summary for display. Amounts are fixed to two
// decimals with thousands separators.
func BuildView(summary pricing.Summary, meta Meta) View {
	profile := meta.Profile
	view := View{
		Title:     string(meta.Kind),
		Reference: meta.Reference,
		Status:    meta.Status,
		IssuedOn:  FormatDate(meta.IssuedAt),
		Center: Letterhead{
			Name:       profile.CenterName,
			Department: profile.Department,
			Address:    profile.Address,
			Email:      profile.Email,
			Phone:      profile.Phone,
		},
		Client:        meta.Client,
		ProjectTitle:  meta.ProjectTitle,
		Currency:      profile.Currency,
		Internal:      summary.Totals.Internal,
		Subtotal:      FormatMoney(summary.Totals.Subtotal),
		DiscountLabel: discountLabel(summary.Totals.Internal),
		Discount:      FormatMoney(summary.Totals.Discount),
		Total:         FormatMoney(summary.Totals.Total),
		Bank:          profile.Bank,
		Signatories:   profile.Signatories,
		Terms:         profile.Terms,
		Notes:         meta.Notes,
	}
	if view.Title == "" {
		view.Title = string(KindQuotation)
	}
	if meta.ValidUntil != nil {
		view.ValidUntil = FormatDate(*meta.ValidUntil)
	}

	view.Groups = make([]Group, 0, len(summary.Categories))
	for _, category := range summary.Categories {
		group := Group{
			Name:     category.Name,
			Subtotal: FormatMoney(category.Subtotal),
			Lines:    make([]Line, 0, len(category.Lines)),
		}
		for _, priced := range category.Lines {
			group.Lines = append(group.Lines, Line{
				Name:       priced.Name,
				Detail:     lineDetail(priced),
				Unit:       priced.Unit,
				Quantity:   strconv.FormatInt(priced.Quantity, 10),
				UnitAmount: FormatMoney(priced.UnitAmount),
				Amount:     FormatMoney(priced.Amount),
			})
		}
		view.Groups = append(view.Groups, group)
	}
	return view
}

func discountLabel(internal bool) string {
	if !internal {
		return "Discount"
	}
	rate := pricing.InternalDiscountRate().Mul(decimal.NewFromInt(100))
	return fmt.Sprintf("Internal discount (%s%%)", rate.String())
}

// lineDetail describes how a tiered amount was reached, e.g.
// "12 samples (9 included, 50.00 per additional)".
func lineDetail(line pricing.PricedLine) string {
	if !line.Model.Tiered() {
		return ""
	}
	count := int64(1)
	if line.BillingCount != nil && *line.BillingCount > 0 {
		count = *line.BillingCount
	}
	detail := fmt.Sprintf("%d %s", count, line.Model.CountLabel())
	if line.Tier != nil && line.Tier.MinIncluded > 0 {
		detail += fmt.Sprintf(" (%d included, %s per additional)", line.Tier.MinIncluded, FormatMoney(line.Tier.AdditionalRate))
	}
	return detail
}

func FormatMoney(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	whole, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if negative {
		return "-" + out
	}
	return out
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("January 2, 2006")
}
