package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	"github.com/smallbiznis/seqdesk/internal/pricing"
)

// ServiceDefinition is a billable service offered by the center.
type ServiceDefinition struct {
	ID                 snowflake.ID        `gorm:"primaryKey" json:"id"`
	Code               string              `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name               string              `gorm:"type:text;not null" json:"name"`
	Description        string              `gorm:"type:text" json:"description,omitempty"`
	Category           string              `gorm:"type:text;index" json:"category"`
	ServiceType        string              `gorm:"column:service_type;type:text" json:"service_type"`
	Unit               string              `gorm:"type:text" json:"unit"`
	Price              decimal.Decimal     `gorm:"type:numeric(14,2);not null" json:"price"`
	PricingModel       pricing.Model       `gorm:"type:text;not null" json:"pricing_model"`
	TierMinIncluded    *int64              `gorm:"column:tier_min_included" json:"-"`
	TierAdditionalRate decimal.NullDecimal `gorm:"column:tier_additional_rate;type:numeric(14,2)" json:"-"`
	Active             bool                `gorm:"not null;default:true" json:"active"`
	CreatedAt          time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ServiceDefinition) TableName() string { return "service_definitions" }

func (d ServiceDefinition) Tier() *pricing.Tier {
	return d.Snapshot().Tier()
}

func (d *ServiceDefinition) SetTier(t *pricing.Tier) {
	var snap lineitem.Snapshot
	snap.SetTier(t)
	d.TierMinIncluded = snap.TierMinIncluded
	d.TierAdditionalRate = snap.TierAdditionalRate
}

// Snapshot copies the fields a document line keeps.
func (d ServiceDefinition) Snapshot() lineitem.Snapshot {
	return lineitem.Snapshot{
		ServiceID:          d.ID,
		ServiceCode:        d.Code,
		Name:               d.Name,
		Category:           d.Category,
		ServiceType:        d.ServiceType,
		Unit:               d.Unit,
		Price:              d.Price,
		PricingModel:       d.PricingModel,
		TierMinIncluded:    d.TierMinIncluded,
		TierAdditionalRate: d.TierAdditionalRate,
	}
}

type serviceDefinitionJSON ServiceDefinition

type serviceDefinitionWire struct {
	serviceDefinitionJSON
	Tier *pricing.Tier `json:"tier,omitempty"`
}

// MarshalJSON exposes the tier columns as one optional object.
func (d ServiceDefinition) MarshalJSON() ([]byte, error) {
	return json.Marshal(serviceDefinitionWire{
		serviceDefinitionJSON: serviceDefinitionJSON(d),
		Tier:                  d.Tier(),
	})
}

func (d *ServiceDefinition) UnmarshalJSON(data []byte) error {
	var wire serviceDefinitionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*d = ServiceDefinition(wire.serviceDefinitionJSON)
	d.SetTier(wire.Tier)
	return nil
}
