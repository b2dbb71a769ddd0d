package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/internal/chargeslip/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/option"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, slip *domain.ChargeSlip) error {
	return db.WithContext(ctx).Create(slip).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, slip *domain.ChargeSlip, expected domain.Status) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE charge_slips SET
			status = ?, payment_reference = ?, void_reason = ?, pdf_object_key = ?,
			paid_at = ?, voided_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		slip.Status,
		slip.PaymentReference,
		slip.VoidReason,
		slip.PDFObjectKey,
		slip.PaidAt,
		slip.VoidedAt,
		slip.UpdatedAt,
		slip.ID,
		expected,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ChargeSlip, error) {
	var slip domain.ChargeSlip
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&slip).Error
	if err != nil {
		return nil, err
	}
	if slip.ID == 0 {
		return nil, nil
	}
	return &slip, nil
}

func (r *repo) FindOpenByQuotation(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) (*domain.ChargeSlip, error) {
	var slip domain.ChargeSlip
	err := db.WithContext(ctx).
		Where("quotation_id = ? AND status <> ?", quotationID, domain.StatusVoid).
		Limit(1).
		Find(&slip).Error
	if err != nil {
		return nil, err
	}
	if slip.ID == 0 {
		return nil, nil
	}
	return &slip, nil
}

func (r *repo) LockQuotation(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) error {
	var ids []int64
	return db.WithContext(ctx).
		Table("quotations").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", quotationID).
		Pluck("id", &ids).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.ChargeSlip, error) {
	var items []*domain.ChargeSlip
	stmt := db.WithContext(ctx).Model(&domain.ChargeSlip{})
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if filter.QuotationID != 0 {
		stmt = stmt.Where("quotation_id = ?", filter.QuotationID)
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

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []domain.Line) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, chargeSlipID snowflake.ID) ([]domain.Line, error) {
	var lines []domain.Line
	err := db.WithContext(ctx).
		Where("charge_slip_id = ?", chargeSlipID).
		Order("position asc").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}
