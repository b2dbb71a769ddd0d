package pdf

import (
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/seqdesk/internal/document"
)

var mutedColor = &props.Color{Red: 105, Green: 115, Blue: 134}

// TotalRow is one line of the totals block.
type TotalRow struct {
	Label string
	Value string
	Bold  bool
}

// TotalRows lists the totals block exactly as it is printed.
func TotalRows(view document.View) []TotalRow {
	currency := strings.ToUpper(strings.TrimSpace(view.Currency))
	prefix := ""
	if currency != "" {
		prefix = currency + " "
	}
	return []TotalRow{
		{Label: "Subtotal", Value: prefix + view.Subtotal},
		{Label: view.DiscountLabel, Value: "- " + prefix + view.Discount},
		{Label: "Total", Value: prefix + view.Total, Bold: true},
	}
}

func build(view document.View) core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	addLetterhead(m, view)
	addParties(m, view)
	addLines(m, view)
	addTotals(m, view)
	addFooter(m, view)

	return m
}

func addLetterhead(m core.Maroto, view document.View) {
	center := view.Center
	m.AddRow(8,
		text.NewCol(8, center.Name, props.Text{Size: 14, Style: fontstyle.Bold}),
		text.NewCol(4, view.Title, props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Right}),
	)

	contact := []string{}
	if center.Department != "" {
		contact = append(contact, center.Department)
	}
	contact = append(contact, center.Address...)
	if center.Email != "" || center.Phone != "" {
		contact = append(contact, strings.Trim(center.Email+"  "+center.Phone, " "))
	}

	meta := []string{}
	if view.Reference != "" {
		meta = append(meta, "No. "+view.Reference)
	}
	meta = append(meta, "Date: "+view.IssuedOn)
	if view.ValidUntil != "" {
		meta = append(meta, "Valid until: "+view.ValidUntil)
	}
	if view.Status != "" {
		meta = append(meta, "Status: "+view.Status)
	}

	rows := max(len(contact), len(meta))
	left := col.New(8)
	right := col.New(4)
	for i, line := range contact {
		left.Add(text.New(line, props.Text{Size: 8, Top: float64(i * 4), Color: mutedColor}))
	}
	for i, line := range meta {
		right.Add(text.New(line, props.Text{Size: 9, Top: float64(i * 4), Align: align.Right}))
	}
	m.AddRow(float64(rows*4+6), left, right)
}

func addParties(m core.Maroto, view document.View) {
	client := view.Client
	lines := []string{client.Name}
	for _, v := range []string{client.Institution, client.Department, client.Email, client.Phone} {
		if v != "" {
			lines = append(lines, v)
		}
	}

	billTo := col.New(7).Add(text.New("Prepared for", props.Text{Size: 8, Style: fontstyle.Bold, Color: mutedColor}))
	for i, line := range lines {
		style := fontstyle.Normal
		if i == 0 {
			style = fontstyle.Bold
		}
		billTo.Add(text.New(line, props.Text{Size: 9, Style: style, Top: float64(4 + i*4)}))
	}

	project := col.New(5)
	if view.ProjectTitle != "" {
		project.Add(
			text.New("Project", props.Text{Size: 8, Style: fontstyle.Bold, Color: mutedColor}),
			text.New(view.ProjectTitle, props.Text{Size: 9, Top: 4}),
		)
	}
	m.AddRow(float64(len(lines)*4+10), billTo, project)
}

func addLines(m core.Maroto, view document.View) {
	m.AddRow(8,
		text.NewCol(6, "Service", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if len(view.Groups) == 0 {
		m.AddRow(8, text.NewCol(12, "No billable services selected.", props.Text{Size: 9, Color: mutedColor}))
		return
	}

	for _, group := range view.Groups {
		m.AddRow(7,
			text.NewCol(10, group.Name, props.Text{Size: 9, Style: fontstyle.Bold, Top: 1}),
			text.NewCol(2, group.Subtotal, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right, Top: 1}),
		)
		for _, line := range group.Lines {
			height := 7.0
			name := col.New(6).Add(text.New(line.Name, props.Text{Size: 9, Left: 2}))
			if line.Detail != "" {
				name.Add(text.New(line.Detail, props.Text{Size: 7, Left: 2, Top: 4, Color: mutedColor}))
				height = 10
			}
			qty := line.Quantity
			if line.Unit != "" {
				qty += " " + line.Unit
			}
			m.AddRow(height,
				name,
				text.NewCol(2, qty, props.Text{Size: 9, Align: align.Right}),
				text.NewCol(2, line.UnitAmount, props.Text{Size: 9, Align: align.Right}),
				text.NewCol(2, line.Amount, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}
}

func addTotals(m core.Maroto, view document.View) {
	m.AddRow(4)
	for _, row := range TotalRows(view) {
		style := fontstyle.Normal
		if row.Bold {
			style = fontstyle.Bold
		}
		m.AddRow(7,
			col.New(6),
			text.NewCol(3, row.Label, props.Text{Size: 9, Style: style}),
			text.NewCol(3, row.Value, props.Text{Size: 9, Style: style, Align: align.Right}),
		)
	}
}

func addFooter(m core.Maroto, view document.View) {
	if view.Notes != "" {
		m.AddRow(12,
			col.New(12).Add(
				text.New("Notes", props.Text{Size: 8, Style: fontstyle.Bold, Top: 4}),
				text.New(view.Notes, props.Text{Size: 8, Top: 8}),
			),
		)
	}

	if view.Bank.AccountNumber != "" {
		m.AddRow(16,
			col.New(12).Add(
				text.New("Payment details", props.Text{Size: 8, Style: fontstyle.Bold, Top: 4}),
				text.New(view.Bank.Name+"  "+view.Bank.AccountName+"  "+view.Bank.AccountNumber, props.Text{Size: 8, Top: 8}),
			),
		)
	}

	if len(view.Terms) > 0 {
		terms := col.New(12).Add(text.New("Terms", props.Text{Size: 8, Style: fontstyle.Bold, Top: 4}))
		for i, term := range view.Terms {
			terms.Add(text.New("- "+term, props.Text{Size: 7, Top: float64(8 + i*4), Color: mutedColor}))
		}
		m.AddRow(float64(len(view.Terms)*4+10), terms)
	}

	if len(view.Signatories) > 0 {
		width := 12 / min(len(view.Signatories), 4)
		cols := []core.Col{}
		for i, sig := range view.Signatories {
			if i == 4 {
				break
			}
			cols = append(cols, col.New(width).Add(
				text.New("______________________", props.Text{Size: 9, Top: 14}),
				text.New(sig.Name, props.Text{Size: 9, Style: fontstyle.Bold, Top: 19}),
				text.New(sig.Title, props.Text{Size: 8, Top: 23, Color: mutedColor}),
			))
		}
		m.AddRow(30, cols...)
	}
}
