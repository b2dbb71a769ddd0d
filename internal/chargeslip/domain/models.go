package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
)

type Status string

const (
	StatusIssued Status = "issued"
	StatusPaid   Status = "paid"
	StatusVoid   Status = "void"
)

// ChargeSlip is the billing document handed to the client once work is
// agreed. Its lines are frozen at issue time.
type ChargeSlip struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	Reference        string          `gorm:"type:text;not null;uniqueIndex" json:"reference"`
	ClientID         snowflake.ID    `gorm:"not null;index" json:"client_id"`
	ProjectID        *snowflake.ID   `gorm:"index" json:"project_id,omitempty"`
	QuotationID      *snowflake.ID   `gorm:"index" json:"quotation_id,omitempty"`
	IsInternal       bool            `gorm:"not null;default:false" json:"is_internal"`
	Status           Status          `gorm:"type:text;not null;index" json:"status"`
	Currency         string          `gorm:"type:text;not null" json:"currency"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	Discount         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"discount"`
	Total            decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	PaymentReference string          `gorm:"type:text" json:"payment_reference,omitempty"`
	VoidReason       string          `gorm:"type:text" json:"void_reason,omitempty"`
	PDFObjectKey     string          `gorm:"column:pdf_object_key;type:text" json:"pdf_object_key,omitempty"`
	CreatedBy        *string         `gorm:"type:text" json:"created_by,omitempty"`
	IssuedAt         time.Time       `gorm:"not null" json:"issued_at"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	VoidedAt         *time.Time      `json:"voided_at,omitempty"`
	CreatedAt        time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updated_at"`

	Lines []Line `gorm:"-" json:"lines,omitempty"`
}

func (ChargeSlip) TableName() string { return "charge_slips" }

func (c ChargeSlip) Items() []lineitem.Item {
	items := make([]lineitem.Item, len(c.Lines))
	for i := range c.Lines {
		items[i] = c.Lines[i].Item
	}
	return items
}

type Line struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	ChargeSlipID snowflake.ID `gorm:"not null;index" json:"charge_slip_id"`
	Position     int          `gorm:"not null" json:"position"`
	lineitem.Item
}

func (Line) TableName() string { return "charge_slip_lines" }
