package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/api/middleware"
	"github.com/carebridgehealth/carebridge-backend/api/responses"
	"github.com/carebridgehealth/carebridge-backend/api/validators"
	"github.com/carebridgehealth/carebridge-backend/internal/accounts"
	"github.com/carebridgehealth/carebridge-backend/internal/profiles"
	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
)

type registerRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8"`
	Role     string     `json:"role" validate:"required,oneof=patient clinic"`
	Name     string     `json:"name" validate:"required"`
	ClinicID *uuid.UUID `json:"clinicId,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userDTO struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Role      enums.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}

type profileDTO struct {
	UserID   uuid.UUID  `json:"userId"`
	Role     enums.Role `json:"role"`
	Name     string     `json:"name"`
	ClinicID *uuid.UUID `json:"clinicId,omitempty"`
}

type authResponse struct {
	User         userDTO     `json:"user"`
	Profile      *profileDTO `json:"profile,omitempty"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

func newAuthResponse(result *accounts.AuthResult) authResponse {
	return authResponse{
		User:         newUserDTO(result.User),
		Profile:      newProfileDTO(result.Profile),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}
}

func newUserDTO(user *models.User) userDTO {
	return userDTO{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func newProfileDTO(profile *profiles.Profile) *profileDTO {
	if profile == nil {
		return nil
	}
	return &profileDTO{
		UserID:   profile.UserID,
		Role:     profile.Role,
		Name:     profile.Name,
		ClinicID: profile.ClinicID,
	}
}

// AuthRegister creates an account, waits for its profile row, and answers
// with a fresh session.
func AuthRegister(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Register(r.Context(), accounts.RegisterInput{
			Email:    body.Email,
			Password: body.Password,
			Role:     enums.Role(body.Role),
			Name:     body.Name,
			ClinicID: body.ClinicID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newAuthResponse(result))
	}
}

func AuthLogin(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), accounts.LoginInput{
			Email:    body.Email,
			Password: body.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAuthResponse(result))
	}
}

// AuthLogout revokes the caller's refresh token.
func AuthLogout(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, ok := middleware.UserIDFrom(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		if err := svc.Logout(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"loggedOut": true})
	}
}
