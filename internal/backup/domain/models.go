package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// BackupRun records one export of the business tables into a workbook.
type BackupRun struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	RunKey     string            `gorm:"type:text;not null;uniqueIndex" json:"run_key"`
	Trigger    Trigger           `gorm:"type:text;not null" json:"trigger"`
	Status     Status            `gorm:"type:text;not null;index" json:"status"`
	ObjectKey  string            `gorm:"type:text" json:"object_key,omitempty"`
	SizeBytes  int64             `gorm:"not null;default:0" json:"size_bytes"`
	RowCounts  datatypes.JSONMap `json:"row_counts,omitempty"`
	Error      string            `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time         `gorm:"not null;index" json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (BackupRun) TableName() string { return "backup_runs" }
