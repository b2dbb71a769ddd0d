package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/seqdesk/internal/backup/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/option"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, run *domain.BackupRun) error {
	return db.WithContext(ctx).Create(run).Error
}

func (r *repo) Finish(ctx context.Context, db *gorm.DB, run *domain.BackupRun) error {
	return db.WithContext(ctx).
		Model(&domain.BackupRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":      run.Status,
			"object_key":  run.ObjectKey,
			"size_bytes":  run.SizeBytes,
			"row_counts":  run.RowCounts,
			"error":       run.Error,
			"finished_at": run.FinishedAt,
		}).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*domain.BackupRun, error) {
	var runs []*domain.BackupRun
	stmt := option.ApplyPagination(page).Apply(db.WithContext(ctx).Model(&domain.BackupRun{}))
	if err := stmt.Order("created_at desc, id desc").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *repo) CountSucceededSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.BackupRun{}).
		Where("status = ? AND started_at >= ?", domain.StatusSucceeded, since).
		Count(&count).Error
	return count, err
}

func (r *repo) ExportTable(ctx context.Context, db *gorm.DB, table string, w domain.RowWriter) (int64, error) {
	rows, err := db.WithContext(ctx).Table(table).Order("id").Rows()
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	if err := w.Header(columns); err != nil {
		return 0, err
	}

	var count int64
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		if err := w.Row(values); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}
