package activity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	"github.com/carebridgehealth/carebridge-backend/pkg/pagination"
)

// Repository persists the append-only activity feed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.ActivityEntry) error
	List(ctx context.Context, params ListQuery) ([]models.ActivityEntry, *pagination.Cursor, error)
}

// ListQuery configures feed reads. Nil filters return the global feed.
type ListQuery struct {
	ClinicID *uuid.UUID
	Type     *enums.ActivityType
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an activity repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.ActivityEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.ActivityEntry, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.ActivityEntry{})
	if params.ClinicID != nil {
		query = query.Where("clinic_id = ?", *params.ClinicID)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var entries []models.ActivityEntry
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > limit {
		next := entries[limit]
		entries = entries[:limit]
		return entries, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return entries, nil, nil
}
