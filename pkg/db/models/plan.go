package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
)

// Plan is a care plan catalog entry. Amounts are whole yen. The plans service
// guarantees CommissionYen + CompanyCutYen == PriceYen on every write; the
// storage layer does not enforce it.
type Plan struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string           `gorm:"column:name;not null"`
	PriceYen      int              `gorm:"column:price_yen;not null"`
	CommissionYen int              `gorm:"column:commission_yen;not null"`
	CompanyCutYen int              `gorm:"column:company_cut_yen;not null"`
	StripePriceID string           `gorm:"column:stripe_price_id;not null;uniqueIndex"`
	Features      pq.StringArray   `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	Status        enums.PlanStatus `gorm:"column:status;type:plan_status;not null;default:'active'"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
