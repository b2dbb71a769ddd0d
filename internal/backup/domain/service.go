package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
)

type ListBackupRequest struct {
	PageToken string
	PageSize  int
}

type ListBackupResponse struct {
	pagination.PageInfo
	Runs []BackupRun `json:"runs"`
}

type Service interface {
	Run(ctx context.Context, trigger Trigger) (BackupRun, error)
	List(ctx context.Context, req ListBackupRequest) (ListBackupResponse, error)
	// SucceededSince reports whether a backup completed at or after t.
	SucceededSince(ctx context.Context, t time.Time) (bool, error)
}

var (
	ErrAlreadyRunning = errors.New("backup_already_running")
	ErrInvalidTrigger = errors.New("invalid_trigger")
)
