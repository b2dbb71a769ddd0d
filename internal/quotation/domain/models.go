package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusSent            Status = "sent"
	StatusExpired         Status = "expired"
)

// Issued reports whether the quotation has been approved for the client,
// whether or not it was already emailed.
func (s Status) Issued() bool {
	return s == StatusApproved || s == StatusSent
}

type Quotation struct {
	ID           snowflake.ID                `gorm:"primaryKey" json:"id"`
	Reference    string                      `gorm:"type:text;not null;uniqueIndex" json:"reference"`
	ClientID     snowflake.ID                `gorm:"not null;index" json:"client_id"`
	ProjectID    *snowflake.ID               `gorm:"index" json:"project_id,omitempty"`
	InquiryID    *snowflake.ID               `gorm:"index" json:"inquiry_id,omitempty"`
	IsInternal   bool                        `gorm:"not null;default:false" json:"is_internal"`
	Status       Status                      `gorm:"type:text;not null;index" json:"status"`
	Currency     string                      `gorm:"type:text;not null" json:"currency"`
	Subtotal     decimal.Decimal             `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	Discount     decimal.Decimal             `gorm:"type:numeric(14,2);not null;default:0" json:"discount"`
	Total        decimal.Decimal             `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
	ValidUntil   *time.Time                  `json:"valid_until,omitempty"`
	CC           datatypes.JSONSlice[string] `gorm:"column:cc" json:"cc"`
	Notes        string                      `gorm:"type:text" json:"notes,omitempty"`
	ReviewNotes  string                      `gorm:"type:text" json:"review_notes,omitempty"`
	PDFObjectKey string                      `gorm:"column:pdf_object_key;type:text" json:"pdf_object_key,omitempty"`
	CreatedBy    *string                     `gorm:"type:text" json:"created_by,omitempty"`
	DecidedBy    *string                     `gorm:"type:text" json:"decided_by,omitempty"`
	SubmittedAt  *time.Time                  `json:"submitted_at,omitempty"`
	DecidedAt    *time.Time                  `json:"decided_at,omitempty"`
	SentAt       *time.Time                  `json:"sent_at,omitempty"`
	CreatedAt    time.Time                   `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"not null" json:"updated_at"`

	Lines []Line `gorm:"-" json:"lines,omitempty"`
}

func (Quotation) TableName() string { return "quotations" }

// Items returns the line items in position order.
func (q Quotation) Items() []lineitem.Item {
	items := make([]lineitem.Item, len(q.Lines))
	for i := range q.Lines {
		items[i] = q.Lines[i].Item
	}
	return items
}

type Line struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	QuotationID snowflake.ID `gorm:"not null;index" json:"quotation_id"`
	Position    int          `gorm:"not null" json:"position"`
	lineitem.Item
}

func (Line) TableName() string { return "quotation_lines" }
