package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusReviewed  Status = "reviewed"
	StatusQuoted    Status = "quoted"
	StatusDeclined  Status = "declined"
)

func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusSubmitted:
		return to == StatusReviewed || to == StatusDeclined
	case StatusReviewed:
		return to == StatusQuoted || to == StatusDeclined
	default:
		return false
	}
}

// Open reports whether admins still owe the inquiry a response.
func (s Status) Open() bool {
	return s == StatusSubmitted || s == StatusReviewed
}

type Inquiry struct {
	ID             snowflake.ID                        `gorm:"primaryKey" json:"id"`
	TrackingCode   string                              `gorm:"type:text;not null;uniqueIndex" json:"tracking_code"`
	ContactName    string                              `gorm:"type:text;not null" json:"contact_name"`
	Email          string                              `gorm:"type:text;not null;index" json:"email"`
	Phone          string                              `gorm:"type:text" json:"phone,omitempty"`
	Institution    string                              `gorm:"type:text" json:"institution,omitempty"`
	Department     string                              `gorm:"type:text" json:"department,omitempty"`
	ClaimsInternal bool                                `gorm:"not null;default:false" json:"claims_internal"`
	ProjectTitle   string                              `gorm:"type:text" json:"project_title,omitempty"`
	Summary        string                              `gorm:"type:text" json:"summary,omitempty"`
	Services       datatypes.JSONSlice[lineitem.Input] `gorm:"column:requested_services" json:"requested_services"`
	Status         Status                              `gorm:"type:text;not null;index" json:"status"`
	ReviewNotes    string                              `gorm:"type:text" json:"review_notes,omitempty"`
	ReviewedBy     *string                             `gorm:"type:text" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time                          `json:"reviewed_at,omitempty"`
	QuotationID    *snowflake.ID                       `gorm:"index" json:"quotation_id,omitempty"`
	ClientID       *snowflake.ID                       `gorm:"index" json:"client_id,omitempty"`
	CreatedAt      time.Time                           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Inquiry) TableName() string { return "inquiries" }

// TrackingView is the only thing an anonymous caller learns about an inquiry.
type TrackingView struct {
	TrackingCode string    `json:"tracking_code"`
	Status       Status    `json:"status"`
	SubmittedAt  time.Time `json:"submitted_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
