package clinics

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
)

// Repository handles clinic profile persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, clinic *models.Clinic) error
	Update(ctx context.Context, clinic *models.Clinic) error
	List(ctx context.Context) ([]models.Clinic, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Clinic, error)
	FindByBaseFeeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Clinic, error)
	AddCommission(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a clinic repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, clinic *models.Clinic) error {
	return r.db.WithContext(ctx).Create(clinic).Error
}

func (r *repository) Update(ctx context.Context, clinic *models.Clinic) error {
	return r.db.WithContext(ctx).Save(clinic).Error
}

func (r *repository) List(ctx context.Context) ([]models.Clinic, error) {
	var clinics []models.Clinic
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&clinics).Error; err != nil {
		return nil, err
	}
	return clinics, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Clinic, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var clinic models.Clinic
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&clinic).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &clinic, nil
}

func (r *repository) FindByBaseFeeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Clinic, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	var clinic models.Clinic
	if err := r.db.WithContext(ctx).
		Where("base_fee_stripe_subscription_id = ?", stripeSubscriptionID).
		First(&clinic).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &clinic, nil
}

// AddCommission accrues the amount atomically in SQL so concurrent webhook
// deliveries cannot lose an increment.
func (r *repository) AddCommission(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Clinic{}).
		Where("id = ?", id).
		Update("commission_earned", gorm.Expr("commission_earned + ?", amount)).Error
}
