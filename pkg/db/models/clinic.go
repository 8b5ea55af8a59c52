package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
)

// Clinic is the profile row for an account of role clinic. Base fee fields
// and CommissionEarned are mutated only by the webhook reconciler.
type Clinic struct {
	ID                          uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Name                        string              `gorm:"column:name;not null"`
	Email                       string              `gorm:"column:email;not null"`
	BaseFeeStatus               enums.BaseFeeStatus `gorm:"column:base_fee_status;type:base_fee_status;not null;default:'pending'"`
	BaseFeeStripeSubscriptionID *string             `gorm:"column:base_fee_stripe_subscription_id;index"`
	BaseFeeStripeCustomerID     *string             `gorm:"column:base_fee_stripe_customer_id"`
	CommissionEarned            decimal.Decimal     `gorm:"column:commission_earned;type:numeric(14,0);not null;default:0"`
	CreatedAt                   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
