package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, code, name, description, category, service_type, unit, price, pricing_model,
	tier_min_included, tier_additional_rate, active, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, def *domain.ServiceDefinition) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO service_definitions (`+selectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID,
		def.Code,
		def.Name,
		def.Description,
		def.Category,
		def.ServiceType,
		def.Unit,
		def.Price,
		def.PricingModel,
		def.TierMinIncluded,
		def.TierAdditionalRate,
		def.Active,
		def.CreatedAt,
		def.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, def *domain.ServiceDefinition) error {
	return db.WithContext(ctx).Exec(
		`UPDATE service_definitions
		 SET name = ?, description = ?, category = ?, service_type = ?, unit = ?, price = ?,
		     pricing_model = ?, tier_min_included = ?, tier_additional_rate = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		def.Name,
		def.Description,
		def.Category,
		def.ServiceType,
		def.Unit,
		def.Price,
		def.PricingModel,
		def.TierMinIncluded,
		def.TierAdditionalRate,
		def.Active,
		def.UpdatedAt,
		def.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ServiceDefinition, error) {
	var def domain.ServiceDefinition
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM service_definitions WHERE id = ?`,
		id,
	).Scan(&def).Error
	if err != nil {
		return nil, err
	}
	if def.ID == 0 {
		return nil, nil
	}
	return &def, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.ServiceDefinition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var defs []*domain.ServiceDefinition
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM service_definitions WHERE id IN ?`,
		ids,
	).Scan(&defs).Error
	if err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.ServiceDefinition, error) {
	var defs []*domain.ServiceDefinition
	stmt := db.WithContext(ctx).Model(&domain.ServiceDefinition{})
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.ServiceType != "" {
		stmt = stmt.Where("service_type = ?", filter.ServiceType)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}
	err := stmt.
		Order("category asc, name asc, id asc").
		Find(&defs).Error
	if err != nil {
		return nil, err
	}
	return defs, nil
}
