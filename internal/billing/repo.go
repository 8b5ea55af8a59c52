package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
)

// Repository handles patient subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscription(ctx context.Context, subscription *models.Subscription) error
	ListSubscriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Subscription, error)
	ListSubscriptionsByClinic(ctx context.Context, clinicID uuid.UUID) ([]models.Subscription, error)
	// FindSubscriptionByStripeID matches any status, canceled included, so a
	// replayed checkout event can never resurrect a dead enrollment.
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) ListSubscriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListSubscriptionsByClinic(ctx context.Context, clinicID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("clinic_id = ?", clinicID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}
