package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/smallbiznis/seqdesk/internal/document"
)

const summaryHTMLTemplate = `<section class="summary-panel">
  <style>
    .summary-panel { font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; color: #1a1f36; max-width: 760px; }
    .summary-panel h2 { font-size: 18px; margin: 0 0 4px; }
    .summary-panel .ref { color: #697386; font-size: 13px; margin-bottom: 16px; }
    .summary-panel table { width: 100%; border-collapse: collapse; margin-bottom: 12px; }
    .summary-panel th { text-align: left; font-size: 11px; text-transform: uppercase; color: #8792a2; border-bottom: 1px solid #e3e8ee; padding: 6px 0; }
    .summary-panel td { font-size: 14px; padding: 8px 0; border-bottom: 1px solid #e3e8ee; vertical-align: top; }
    .summary-panel .num { text-align: right; }
    .summary-panel .detail { font-size: 12px; color: #697386; }
    .summary-panel .group { font-weight: 600; background: #f7f9fc; }
    .summary-panel .totals { margin-left: auto; width: 280px; }
    .summary-panel .totals div { display: flex; justify-content: space-between; padding: 4px 0; }
    .summary-panel .grand { border-top: 1px solid #e3e8ee; font-weight: 700; }
  </style>
  <h2>{{.Title}}</h2>
  {{if .Reference}}<div class="ref">{{.Reference}}{{if .ValidUntil}} &middot; valid until {{.ValidUntil}}{{end}}</div>{{end}}
  {{if .Groups}}
  <table>
    <thead>
      <tr>
        <th style="width: 50%;">Service</th>
        <th class="num">Qty</th>
        <th class="num">Unit amount</th>
        <th class="num">Amount</th>
      </tr>
    </thead>
    <tbody>
      {{range .Groups}}
      <tr class="group"><td colspan="3">{{.Name}}</td><td class="num">{{.Subtotal}}</td></tr>
      {{range .Lines}}
      <tr>
        <td>{{.Name}}{{if .Detail}}<div class="detail">{{.Detail}}</div>{{end}}</td>
        <td class="num">{{.Quantity}}{{if .Unit}} {{.Unit}}{{end}}</td>
        <td class="num">{{.UnitAmount}}</td>
        <td class="num">{{.Amount}}</td>
      </tr>
      {{end}}
      {{end}}
    </tbody>
  </table>
  {{else}}
  <p class="detail">No billable services selected.</p>
  {{end}}
  <div class="totals">
    <div><span>Subtotal</span><span>{{.Currency}} {{.Subtotal}}</span></div>
    <div><span>{{.DiscountLabel}}</span><span>- {{.Currency}} {{.Discount}}</span></div>
    <div class="grand"><span>Total</span><span>{{.Currency}} {{.Total}}</span></div>
  </div>
</section>
`

type SummaryRenderer struct {
	tpl *template.Template
}

func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{
		tpl: template.Must(template.New("summary").Parse(summaryHTMLTemplate)),
	}
}

// RenderSummaryHTML renders the on-screen summary panel for a view.
func (r *SummaryRenderer) RenderSummaryHTML(view document.View) (string, error) {
	view.Currency = strings.ToUpper(strings.TrimSpace(view.Currency))

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
