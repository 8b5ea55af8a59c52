package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
)

// User is an authenticated principal. Role is fixed at creation; there is
// exactly one profile row (patient or clinic) per user id.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Role         enums.Role `gorm:"column:role;type:account_role;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}
