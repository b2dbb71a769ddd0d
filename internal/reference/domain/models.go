package domain

import "time"

// Sequence is the last issued number for one document kind within one period.
type Sequence struct {
	Scope     string    `gorm:"type:text;primaryKey;column:scope"`
	Period    string    `gorm:"type:text;primaryKey;column:period"`
	Value     int64     `gorm:"not null;default:0;column:value"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

func (Sequence) TableName() string { return "reference_sequences" }

// Kind names a numbered document series.
type Kind string

const (
	KindQuotation  Kind = "quotation"
	KindChargeSlip Kind = "charge_slip"
)
