package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seqdesk/internal/catalog/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	"github.com/smallbiznis/seqdesk/internal/pricing"
	"github.com/smallbiznis/seqdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Cache domain.Cache
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	cache domain.Cache
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		cache: p.Cache,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.ServiceDefinition, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ServiceDefinition{}, domain.ErrInvalidName
	}
	if req.Price.IsNegative() {
		return domain.ServiceDefinition{}, domain.ErrInvalidPrice
	}

	serviceType := strings.TrimSpace(req.ServiceType)
	model := pricing.InferModel(serviceType)
	if raw := strings.TrimSpace(req.PricingModel); raw != "" {
		parsed, err := pricing.ParseModel(raw)
		if err != nil {
			return domain.ServiceDefinition{}, err
		}
		model = parsed
	}

	tier, err := buildTier(model, req.TierMinIncluded, req.TierAdditionalRate)
	if err != nil {
		return domain.ServiceDefinition{}, err
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = name
	}

	now := s.clock.Now()
	def := domain.ServiceDefinition{
		ID:           s.genID.Generate(),
		Code:         slug.Make(code),
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Category:     strings.TrimSpace(req.Category),
		ServiceType:  serviceType,
		Unit:         strings.TrimSpace(req.Unit),
		Price:        req.Price,
		PricingModel: model,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	def.SetTier(tier)

	if err := s.repo.Insert(ctx, s.db, &def); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ServiceDefinition{}, domain.ErrDuplicateCode
		}
		s.log.Error("failed to create service definition", zap.Error(err))
		return domain.ServiceDefinition{}, err
	}
	s.cache.Invalidate(ctx)

	return def, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (domain.ServiceDefinition, error) {
	def, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.ServiceDefinition{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.ServiceDefinition{}, domain.ErrInvalidName
		}
		def.Name = name
	}
	if req.Description != nil {
		def.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		def.Category = strings.TrimSpace(*req.Category)
	}
	if req.ServiceType != nil {
		def.ServiceType = strings.TrimSpace(*req.ServiceType)
	}
	if req.Unit != nil {
		def.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.ServiceDefinition{}, domain.ErrInvalidPrice
		}
		def.Price = *req.Price
	}
	// the model only changes when asked for explicitly
	if req.PricingModel != nil {
		model, err := pricing.ParseModel(*req.PricingModel)
		if err != nil {
			return domain.ServiceDefinition{}, err
		}
		def.PricingModel = model
	}

	minIncluded, rate := def.TierMinIncluded, nullableRate(def.TierAdditionalRate)
	if req.ClearTier {
		minIncluded, rate = nil, nil
	}
	if req.TierMinIncluded != nil || req.TierAdditionalRate != nil {
		minIncluded, rate = req.TierMinIncluded, req.TierAdditionalRate
	}
	tier, err := buildTier(def.PricingModel, minIncluded, rate)
	if err != nil {
		return domain.ServiceDefinition{}, err
	}
	def.SetTier(tier)
	def.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, &def); err != nil {
		s.log.Error("failed to update service definition", zap.String("id", def.ID.String()), zap.Error(err))
		return domain.ServiceDefinition{}, err
	}
	s.cache.Invalidate(ctx)

	return def, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.ServiceDefinition, error) {
	return s.find(ctx, id)
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.ServiceDefinition, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.ServiceType = strings.TrimSpace(filter.ServiceType)

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

// ListActive serves the portal catalog, through the cache when available.
func (s *Service) ListActive(ctx context.Context) ([]domain.ServiceDefinition, error) {
	if defs, ok := s.cache.GetActive(ctx); ok {
		return defs, nil
	}

	active := true
	defs, err := s.List(ctx, domain.ListFilter{Active: &active})
	if err != nil {
		return nil, err
	}
	s.cache.SetActive(ctx, defs)
	return defs, nil
}

func (s *Service) Archive(ctx context.Context, id string) (domain.ServiceDefinition, error) {
	def, err := s.find(ctx, id)
	if err != nil {
		return domain.ServiceDefinition{}, err
	}
	if !def.Active {
		return def, nil
	}

	def.Active = false
	def.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, &def); err != nil {
		return domain.ServiceDefinition{}, err
	}
	s.cache.Invalidate(ctx)

	return def, nil
}

// Snapshots returns active definitions by id. Unknown or archived ids are
// absent from the result.
func (s *Service) Snapshots(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]lineitem.Snapshot, error) {
	items, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[snowflake.ID]lineitem.Snapshot, len(items))
	for _, item := range items {
		if item == nil || !item.Active {
			continue
		}
		out[item.ID] = item.Snapshot()
	}
	return out, nil
}

func (s *Service) find(ctx context.Context, raw string) (domain.ServiceDefinition, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return domain.ServiceDefinition{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ServiceDefinition{}, err
	}
	if item == nil {
		return domain.ServiceDefinition{}, domain.ErrNotFound
	}
	return *item, nil
}

// buildTier enforces that the tier fields come as a pair and that tiered
// models carry a usable tier. Flat models never keep a tier.
func buildTier(model pricing.Model, minIncluded *int64, rate *decimal.Decimal) (*pricing.Tier, error) {
	if (minIncluded == nil) != (rate == nil) {
		return nil, domain.ErrInvalidTier
	}
	if !model.Tiered() {
		return nil, nil
	}
	if minIncluded == nil || *minIncluded < 1 || rate.IsNegative() {
		return nil, domain.ErrInvalidTier
	}
	return &pricing.Tier{MinIncluded: *minIncluded, AdditionalRate: *rate}, nil
}

func nullableRate(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func deref(items []*domain.ServiceDefinition) []domain.ServiceDefinition {
	out := make([]domain.ServiceDefinition, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}
