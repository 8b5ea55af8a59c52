package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
)

// ActivityEntry records an immutable account/billing lifecycle event.
// Append-only; the core never updates or deletes rows.
type ActivityEntry struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type      enums.ActivityType `gorm:"column:type;type:activity_type;not null"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	ClinicID  *uuid.UUID         `gorm:"column:clinic_id;type:uuid;index"`
	Message   string             `gorm:"column:message;not null"`
	Details   json.RawMessage    `gorm:"column:details;type:jsonb"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}
