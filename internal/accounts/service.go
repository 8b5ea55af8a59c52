package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/internal/clinics"
	"github.com/carebridgehealth/carebridge-backend/internal/patients"
	"github.com/carebridgehealth/carebridge-backend/internal/profiles"
	pkgAuth "github.com/carebridgehealth/carebridge-backend/pkg/auth"
	"github.com/carebridgehealth/carebridge-backend/pkg/config"
	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
	"github.com/carebridgehealth/carebridge-backend/pkg/security"
)

// RefreshTokenStore is the slice of the redis client the service needs.
type RefreshTokenStore interface {
	StoreRefreshToken(ctx context.Context, userID, token string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, userID string) (string, error)
	RevokeRefreshToken(ctx context.Context, userID string) error
}

// ProfileWaiter blocks until the asynchronously provisioned profile row exists.
type ProfileWaiter interface {
	WaitForProfile(ctx context.Context, userID uuid.UUID, role enums.Role) (*profiles.Profile, error)
}

// Service registers and authenticates accounts. Profile rows are provisioned
// asynchronously after the user row commits; Register waits for them through
// the profile poller so the response can include the profile.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

// RegisterInput creates an account plus its role profile.
type RegisterInput struct {
	Email    string
	Password string
	Role     enums.Role
	Name     string
	// ClinicID optionally assigns a new patient to a clinic at signup.
	ClinicID *uuid.UUID
}

// LoginInput authenticates an existing account.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is the session handed back after register or login.
type AuthResult struct {
	User         *models.User
	Profile      *profiles.Profile
	AccessToken  string
	RefreshToken string
}

type ServiceParams struct {
	Users    Repository
	Patients patients.Repository
	Clinics  clinics.Repository
	Waiter   ProfileWaiter
	Tokens   RefreshTokenStore
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
}

type service struct {
	users    Repository
	patients patients.Repository
	clinics  clinics.Repository
	waiter   ProfileWaiter
	tokens   RefreshTokenStore
	jwt      config.JWTConfig
	password config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires an accounts service.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Patients == nil {
		return nil, fmt.Errorf("patients repository required")
	}
	if params.Clinics == nil {
		return nil, fmt.Errorf("clinics repository required")
	}
	if params.Waiter == nil {
		return nil, fmt.Errorf("profile waiter required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("refresh token store required")
	}
	return &service{
		users:    params.Users,
		patients: params.Patients,
		clinics:  params.Clinics,
		waiter:   params.Waiter,
		tokens:   params.Tokens,
		jwt:      params.JWT,
		password: params.Password,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Role != enums.RolePatient && input.Role != enums.RoleClinic {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be patient or clinic")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account with this email already exists")
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}

	// Profile rows materialize out of band. Detach from the request context
	// so a client disconnect cannot strand a user without a profile.
	go s.provisionProfile(context.WithoutCancel(ctx), user, input)

	profile, err := s.waiter.WaitForProfile(ctx, user.ID, user.Role)
	if err != nil {
		if errors.Is(err, profiles.ErrProfileNotReady) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "profile is still being provisioned")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wait for profile")
	}

	return s.issueSession(ctx, user, profile)
}

func (s *service) provisionProfile(ctx context.Context, user *models.User, input RegisterInput) {
	var err error
	switch user.Role {
	case enums.RolePatient:
		err = s.patients.Create(ctx, &models.Patient{
			ID:       user.ID,
			ClinicID: input.ClinicID,
			Name:     input.Name,
			Status:   enums.PatientStatusActive,
		})
	case enums.RoleClinic:
		err = s.clinics.Create(ctx, &models.Clinic{
			ID:            user.ID,
			Name:          input.Name,
			Email:         user.Email,
			BaseFeeStatus: enums.BaseFeeStatusPending,
		})
	}
	if err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "profile.provision", err)
	}
}

func (s *service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	var profile *profiles.Profile
	if user.Role == enums.RolePatient || user.Role == enums.RoleClinic {
		profile, err = s.waiter.WaitForProfile(ctx, user.ID, user.Role)
		if err != nil && !errors.Is(err, profiles.ErrProfileNotReady) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
		}
	}

	return s.issueSession(ctx, user, profile)
}

func (s *service) Logout(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.tokens.RevokeRefreshToken(ctx, userID.String()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke refresh token")
	}
	return nil
}

func (s *service) issueSession(ctx context.Context, user *models.User, profile *profiles.Profile) (*AuthResult, error) {
	access, err := pkgAuth.MintAccessToken(s.jwt, s.now(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	refresh := uuid.NewString()
	if err := s.tokens.StoreRefreshToken(ctx, user.ID.String(), refresh, s.jwt.RefreshTokenTTL()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}

	return &AuthResult{
		User:         user,
		Profile:      profile,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
