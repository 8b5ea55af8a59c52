package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
)

// PlanSnapshot freezes a plan's economics at enrollment time so historical
// commission math survives later catalog edits.
type PlanSnapshot struct {
	PlanID        uuid.UUID `json:"plan_id"`
	Name          string    `json:"name"`
	PriceYen      int       `json:"price_yen"`
	CommissionYen int       `json:"commission_yen"`
	CompanyCutYen int       `json:"company_cut_yen"`
}

// Subscription persists one patient's paid plan enrollment. Cancellation is a
// status transition; rows are never deleted.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID            uuid.UUID                `gorm:"column:patient_id;type:uuid;not null;index"`
	ClinicID             uuid.UUID                `gorm:"column:clinic_id;type:uuid;not null;index"`
	PlanID               uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	PlanSnapshot         json.RawMessage          `gorm:"column:plan_snapshot;type:jsonb"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;uniqueIndex"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id"`
	StartDate            time.Time                `gorm:"column:start_date;not null"`
	EndDate              *time.Time               `gorm:"column:end_date"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// Snapshot decodes the stored plan snapshot, or returns nil when absent.
func (s *Subscription) Snapshot() (*PlanSnapshot, error) {
	if s == nil || len(s.PlanSnapshot) == 0 {
		return nil, nil
	}
	var snap PlanSnapshot
	if err := json.Unmarshal(s.PlanSnapshot, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SetSnapshot encodes and attaches the plan snapshot.
func (s *Subscription) SetSnapshot(snap PlanSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.PlanSnapshot = data
	return nil
}
