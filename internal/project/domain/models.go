package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusRegistered Status = "registered"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// CanTransition lists the allowed project status moves.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusRegistered:
		return to == StatusActive || to == StatusArchived
	case StatusActive:
		return to == StatusCompleted || to == StatusArchived
	case StatusCompleted:
		return to == StatusArchived
	default:
		return false
	}
}

type Project struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ClientID    snowflake.ID `gorm:"not null;index" json:"client_id"`
	Title       string       `gorm:"type:text;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Organism    string       `gorm:"type:text" json:"organism,omitempty"`
	SampleCount int64        `gorm:"not null;default:0" json:"sample_count"`
	Status      Status       `gorm:"type:text;not null" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Team []TeamMember `gorm:"-" json:"team,omitempty"`
}

func (Project) TableName() string { return "projects" }

type TeamMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ProjectID snowflake.ID `gorm:"not null;index" json:"project_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Email     string       `gorm:"type:text" json:"email,omitempty"`
	Role      string       `gorm:"type:text" json:"role,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (TeamMember) TableName() string { return "project_members" }
