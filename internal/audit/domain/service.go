package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
)

// ListAuditLogRequest pages through entries newest first.
type ListAuditLogRequest struct {
	pagination.Pagination
	ListFilter
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service records who did what to which document. Portal submissions,
// admin decisions, authorization denials and scheduler runs all land here.
type Service interface {
	// AuditLog records an action. An empty actorType is taken from the
	// request context, falling back to "system".
	AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)
