package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
)

// Patient is the profile row for an account of role patient. A nil ClinicID
// means the patient has not been assigned to a clinic yet.
type Patient struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey"`
	ClinicID  *uuid.UUID          `gorm:"column:clinic_id;type:uuid;index"`
	Name      string              `gorm:"column:name;not null"`
	BirthDate *time.Time          `gorm:"column:birth_date"`
	Phone     string              `gorm:"column:phone"`
	Status    enums.PatientStatus `gorm:"column:status;type:patient_status;not null;default:'active'"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
