package repository

import (
	"context"

	"github.com/smallbiznis/seqdesk/internal/audit/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/option"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type gormRepository struct{}

func Provide() domain.Repository {
	return gormRepository{}
}

func (gormRepository) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (gormRepository) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.AuditLog, error) {
	var entries []*domain.AuditLog
	err := db.WithContext(ctx).
		Scopes(matching(filter), option.ApplyPagination(page).Apply).
		Order("created_at desc, id desc").
		Find(&entries).Error
	return entries, err
}

// matching turns the non-empty filter fields into equality and range clauses.
func matching(f domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(stmt *gorm.DB) *gorm.DB {
		eq := map[string]string{
			"action":      f.Action,
			"target_type": f.TargetType,
			"target_id":   f.TargetID,
			"actor_type":  f.ActorType,
			"actor_id":    f.ActorID,
		}
		for column, value := range eq {
			if value != "" {
				stmt = stmt.Where(column+" = ?", value)
			}
		}
		if f.StartAt != nil {
			stmt = stmt.Where("created_at >= ?", f.StartAt.UTC())
		}
		if f.EndAt != nil {
			stmt = stmt.Where("created_at <= ?", f.EndAt.UTC())
		}
		return stmt
	}
}
