package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, run *BackupRun) error
	Finish(ctx context.Context, db *gorm.DB, run *BackupRun) error
	List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*BackupRun, error)
	CountSucceededSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error)
	// ExportTable streams every row of table in primary key order.
	ExportTable(ctx context.Context, db *gorm.DB, table string, w RowWriter) (int64, error)
}

// RowWriter receives the column names once, then each row.
type RowWriter interface {
	Header(columns []string) error
	Row(values []any) error
}
