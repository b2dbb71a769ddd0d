package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/option"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, q *domain.Quotation) error {
	return db.WithContext(ctx).Create(q).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, q *domain.Quotation, expected domain.Status) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE quotations SET
			status = ?, is_internal = ?, subtotal = ?, discount = ?, total = ?,
			valid_until = ?, cc = ?, notes = ?, review_notes = ?, pdf_object_key = ?,
			decided_by = ?, submitted_at = ?, decided_at = ?, sent_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		q.Status,
		q.IsInternal,
		q.Subtotal,
		q.Discount,
		q.Total,
		q.ValidUntil,
		q.CC,
		q.Notes,
		q.ReviewNotes,
		q.PDFObjectKey,
		q.DecidedBy,
		q.SubmittedAt,
		q.DecidedAt,
		q.SentAt,
		q.UpdatedAt,
		q.ID,
		expected,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Quotation, error) {
	var q domain.Quotation
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&q).Error
	if err != nil {
		return nil, err
	}
	if q.ID == 0 {
		return nil, nil
	}
	return &q, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Quotation, error) {
	var items []*domain.Quotation
	stmt := db.WithContext(ctx).Model(&domain.Quotation{})
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if filter.ProjectID != 0 {
		stmt = stmt.Where("project_id = ?", filter.ProjectID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListExpirable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Quotation, error) {
	var items []*domain.Quotation
	stmt := db.WithContext(ctx).
		Where("status IN ?", []domain.Status{domain.StatusApproved, domain.StatusSent}).
		Where("valid_until IS NOT NULL AND valid_until < ?", now).
		Order("valid_until asc, id asc")
	stmt = option.WithLimit(limit).Apply(stmt)
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ReplaceLines(ctx context.Context, db *gorm.DB, quotationID snowflake.ID, lines []domain.Line) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM quotation_lines WHERE quotation_id = ?`, quotationID).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) ([]domain.Line, error) {
	var lines []domain.Line
	err := db.WithContext(ctx).
		Where("quotation_id = ?", quotationID).
		Order("position asc").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}
