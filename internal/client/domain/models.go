package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Client is a person billed for services. Internal clients belong to the
// host institution and receive the internal discount.
type Client struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"type:text;not null" json:"name"`
	Email       string            `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Institution string            `gorm:"type:text" json:"institution,omitempty"`
	Department  string            `gorm:"type:text" json:"department,omitempty"`
	Phone       string            `gorm:"type:text" json:"phone,omitempty"`
	IsInternal  bool              `gorm:"not null;default:false" json:"is_internal"`
	Metadata    datatypes.JSONMap `gorm:"not null" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }
