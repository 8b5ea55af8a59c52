package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/internal/clinics"
	"github.com/carebridgehealth/carebridge-backend/internal/patients"
	"github.com/carebridgehealth/carebridge-backend/pkg/config"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
)

// ErrProfileNotReady is returned when the profile row has not materialized
// within the poll budget. Callers distinguish it from lookup failures: the
// account exists, its profile is still being provisioned.
var ErrProfileNotReady = errors.New("profile not ready")

// Policy bounds the read-after-write wait. Injectable so tests run without
// real delays.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// PolicyFromConfig maps the env-driven poll settings onto a Policy.
func PolicyFromConfig(cfg config.ProfilePollConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       cfg.Interval,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.Delay <= 0 {
		p.Delay = time.Second
	}
	return p
}

// Profile is the role-independent view the poller returns.
type Profile struct {
	UserID   uuid.UUID
	Role     enums.Role
	Name     string
	ClinicID *uuid.UUID
}

// Lookup fetches a profile once, returning (nil, nil) when it does not exist yet.
type Lookup func(ctx context.Context, userID uuid.UUID) (*Profile, error)

// Poller waits for asynchronously provisioned profile rows.
type Poller struct {
	policy   Policy
	sleep    func(ctx context.Context, d time.Duration) error
	logg     *logger.Logger
	patients patients.Repository
	clinics  clinics.Repository
}

// NewPoller wires a profile poller over the patient and clinic repositories.
func NewPoller(policy Policy, patientRepo patients.Repository, clinicRepo clinics.Repository, logg *logger.Logger) (*Poller, error) {
	if patientRepo == nil {
		return nil, fmt.Errorf("patients repository required")
	}
	if clinicRepo == nil {
		return nil, fmt.Errorf("clinics repository required")
	}
	return &Poller{
		policy:   policy.normalize(),
		sleep:    sleepContext,
		logg:     logg,
		patients: patientRepo,
		clinics:  clinicRepo,
	}, nil
}

// WaitForProfile polls until the profile row for the user appears, the
// attempt budget is spent, or the context ends. Per-attempt lookup errors are
// logged and retried; only the terminal outcome surfaces.
func (p *Poller) WaitForProfile(ctx context.Context, userID uuid.UUID, role enums.Role) (*Profile, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}

	lookup, err := p.lookupForRole(role)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		profile, err := lookup(ctx, userID)
		if err != nil {
			if p.logg != nil {
				attemptCtx := p.logg.WithFields(ctx, map[string]any{
					"user_id": userID.String(),
					"attempt": attempt,
				})
				p.logg.Warn(attemptCtx, "profile poll attempt failed")
			}
		} else if profile != nil {
			return profile, nil
		}

		if attempt == p.policy.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.policy.Delay); err != nil {
			return nil, err
		}
	}

	return nil, ErrProfileNotReady
}

func (p *Poller) lookupForRole(role enums.Role) (Lookup, error) {
	switch role {
	case enums.RolePatient:
		return func(ctx context.Context, userID uuid.UUID) (*Profile, error) {
			patient, err := p.patients.FindByID(ctx, userID)
			if err != nil {
				return nil, err
			}
			if patient == nil {
				return nil, nil
			}
			return &Profile{
				UserID:   patient.ID,
				Role:     enums.RolePatient,
				Name:     patient.Name,
				ClinicID: patient.ClinicID,
			}, nil
		}, nil
	case enums.RoleClinic:
		return func(ctx context.Context, userID uuid.UUID) (*Profile, error) {
			clinic, err := p.clinics.FindByID(ctx, userID)
			if err != nil {
				return nil, err
			}
			if clinic == nil {
				return nil, nil
			}
			return &Profile{
				UserID: clinic.ID,
				Role:   enums.RoleClinic,
				Name:   clinic.Name,
			}, nil
		}, nil
	default:
		return nil, fmt.Errorf("role %q has no profile", role)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
