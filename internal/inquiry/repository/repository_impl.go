package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/option"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, inquiry *domain.Inquiry) error {
	return db.WithContext(ctx).Create(inquiry).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, inquiry *domain.Inquiry, expected domain.Status) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Inquiry{}).
		Where("id = ? AND status = ?", inquiry.ID, expected).
		Updates(map[string]any{
			"status":       inquiry.Status,
			"review_notes": inquiry.ReviewNotes,
			"reviewed_by":  inquiry.ReviewedBy,
			"reviewed_at":  inquiry.ReviewedAt,
			"quotation_id": inquiry.QuotationID,
			"client_id":    inquiry.ClientID,
			"updated_at":   inquiry.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Inquiry, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByTrackingCode(ctx context.Context, db *gorm.DB, code string) (*domain.Inquiry, error) {
	return r.findOne(ctx, db, "tracking_code = ?", code)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Inquiry, error) {
	var items []domain.Inquiry
	err := db.WithContext(ctx).Where(query, arg).Limit(1).Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Inquiry, error) {
	var inquiries []*domain.Inquiry
	stmt := db.WithContext(ctx).Model(&domain.Inquiry{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&inquiries).Error
	if err != nil {
		return nil, err
	}
	return inquiries, nil
}

func (r *repo) ListPendingBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Inquiry, error) {
	var inquiries []domain.Inquiry
	stmt := db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []domain.Status{domain.StatusSubmitted, domain.StatusReviewed}, cutoff).
		Order("created_at asc, id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&inquiries).Error; err != nil {
		return nil, err
	}
	return inquiries, nil
}
