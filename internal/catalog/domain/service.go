package domain

import (
	"context"
	"errors"
	"io"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
)

type ListFilter struct {
	Category    string
	ServiceType string
	Active      *bool
}

type CreateRequest struct {
	Code               string           `json:"code"`
	Name               string           `json:"name" validate:"required"`
	Description        string           `json:"description"`
	Category           string           `json:"category"`
	ServiceType        string           `json:"service_type"`
	Unit               string           `json:"unit"`
	Price              decimal.Decimal  `json:"price"`
	PricingModel       string           `json:"pricing_model"`
	TierMinIncluded    *int64           `json:"tier_min_included"`
	TierAdditionalRate *decimal.Decimal `json:"tier_additional_rate"`
}

type UpdateRequest struct {
	ID                 string           `json:"-"`
	Name               *string          `json:"name"`
	Description        *string          `json:"description"`
	Category           *string          `json:"category"`
	ServiceType        *string          `json:"service_type"`
	Unit               *string          `json:"unit"`
	Price              *decimal.Decimal `json:"price"`
	PricingModel       *string          `json:"pricing_model"`
	TierMinIncluded    *int64           `json:"tier_min_included"`
	TierAdditionalRate *decimal.Decimal `json:"tier_additional_rate"`
	ClearTier          bool             `json:"clear_tier"`
}

type Service interface {
	lineitem.Catalog

	Create(ctx context.Context, req CreateRequest) (ServiceDefinition, error)
	Update(ctx context.Context, req UpdateRequest) (ServiceDefinition, error)
	Get(ctx context.Context, id string) (ServiceDefinition, error)
	List(ctx context.Context, filter ListFilter) ([]ServiceDefinition, error)
	ListActive(ctx context.Context) ([]ServiceDefinition, error)
	Archive(ctx context.Context, id string) (ServiceDefinition, error)
	ExportXLSX(ctx context.Context, w io.Writer) error
}

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidPrice  = errors.New("invalid_price")
	ErrInvalidTier   = errors.New("invalid_tier")
	ErrDuplicateCode = errors.New("duplicate_code")
	ErrNotFound      = errors.New("not_found")
)
