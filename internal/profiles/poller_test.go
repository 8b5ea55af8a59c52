package profiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridgehealth/carebridge-backend/internal/clinics"
	"github.com/carebridgehealth/carebridge-backend/internal/patients"
	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// scriptedPatients returns one scripted result per FindByID call.
type scriptedPatients struct {
	patients.Repository
	results []func() (*models.Patient, error)
	calls   int
}

func (s *scriptedPatients) WithTx(tx *gorm.DB) patients.Repository { return s }

func (s *scriptedPatients) FindByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.results) {
		return nil, nil
	}
	return s.results[idx]()
}

type staticClinics struct {
	clinics.Repository
	clinic *models.Clinic
	calls  int
}

func (s *staticClinics) WithTx(tx *gorm.DB) clinics.Repository { return s }

func (s *staticClinics) FindByID(ctx context.Context, id uuid.UUID) (*models.Clinic, error) {
	s.calls++
	return s.clinic, nil
}

func (s *staticClinics) AddCommission(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return nil
}

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Delay: time.Millisecond}
}

func TestWaitForProfileFoundAfterRetries(t *testing.T) {
	userID := uuid.New()
	repo := &scriptedPatients{
		results: []func() (*models.Patient, error){
			func() (*models.Patient, error) { return nil, nil },
			func() (*models.Patient, error) { return nil, nil },
			func() (*models.Patient, error) {
				return &models.Patient{ID: userID, Name: "Taro"}, nil
			},
		},
	}

	poller, err := NewPoller(fastPolicy(5), repo, &staticClinics{}, nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}

	profile, err := poller.WaitForProfile(context.Background(), userID, enums.RolePatient)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if profile.Name != "Taro" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if repo.calls != 3 {
		t.Fatalf("expected 3 lookups, got %d", repo.calls)
	}
}

func TestWaitForProfileExhaustsBudget(t *testing.T) {
	repo := &scriptedPatients{}
	poller, _ := NewPoller(fastPolicy(4), repo, &staticClinics{}, nil)

	_, err := poller.WaitForProfile(context.Background(), uuid.New(), enums.RolePatient)
	if !errors.Is(err, ErrProfileNotReady) {
		t.Fatalf("expected ErrProfileNotReady, got %v", err)
	}
	if repo.calls != 4 {
		t.Fatalf("expected exactly 4 lookups, got %d", repo.calls)
	}
}

func TestWaitForProfileRetriesTransientErrors(t *testing.T) {
	userID := uuid.New()
	repo := &scriptedPatients{
		results: []func() (*models.Patient, error){
			func() (*models.Patient, error) { return nil, errors.New("connection reset") },
			func() (*models.Patient, error) {
				return &models.Patient{ID: userID, Name: "Hanako"}, nil
			},
		},
	}

	poller, _ := NewPoller(fastPolicy(3), repo, &staticClinics{}, nil)
	profile, err := poller.WaitForProfile(context.Background(), userID, enums.RolePatient)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if profile.Name != "Hanako" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestWaitForProfileHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	poller, _ := NewPoller(Policy{MaxAttempts: 10, Delay: time.Minute}, &scriptedPatients{}, &staticClinics{}, nil)
	_, err := poller.WaitForProfile(ctx, uuid.New(), enums.RolePatient)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForProfileClinicRole(t *testing.T) {
	userID := uuid.New()
	clinicRepo := &staticClinics{clinic: &models.Clinic{ID: userID, Name: "Sakura Clinic"}}

	poller, _ := NewPoller(fastPolicy(2), &scriptedPatients{}, clinicRepo, nil)
	profile, err := poller.WaitForProfile(context.Background(), userID, enums.RoleClinic)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if profile.Role != enums.RoleClinic || profile.Name != "Sakura Clinic" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestWaitForProfileRejectsAdminRole(t *testing.T) {
	poller, _ := NewPoller(fastPolicy(2), &scriptedPatients{}, &staticClinics{}, nil)
	if _, err := poller.WaitForProfile(context.Background(), uuid.New(), enums.RoleAdmin); err == nil {
		t.Fatalf("expected error for role without profile")
	}
}
