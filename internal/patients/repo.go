package patients

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
)

// Repository handles patient profile persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, patient *models.Patient) error
	Update(ctx context.Context, patient *models.Patient) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Patient, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]models.Patient, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a patient repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, patient *models.Patient) error {
	return r.db.WithContext(ctx).Create(patient).Error
}

func (r *repository) Update(ctx context.Context, patient *models.Patient) error {
	return r.db.WithContext(ctx).Save(patient).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var patient models.Patient
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&patient).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &patient, nil
}

func (r *repository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]models.Patient, error) {
	var patients []models.Patient
	if err := r.db.WithContext(ctx).
		Where("clinic_id = ?", clinicID).
		Order("created_at DESC").
		Find(&patients).Error; err != nil {
		return nil, err
	}
	return patients, nil
}
