package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carebridgehealth/carebridge-backend/api/responses"
	"github.com/carebridgehealth/carebridge-backend/internal/clinics"
	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
)

type clinicDTO struct {
	ID               uuid.UUID           `json:"id"`
	Name             string              `json:"name"`
	Email            string              `json:"email"`
	BaseFeeStatus    enums.BaseFeeStatus `json:"baseFeeStatus"`
	CommissionEarned decimal.Decimal     `json:"commissionEarned"`
	CreatedAt        time.Time           `json:"createdAt"`
}

func newClinicDTO(clinic *models.Clinic) clinicDTO {
	return clinicDTO{
		ID:               clinic.ID,
		Name:             clinic.Name,
		Email:            clinic.Email,
		BaseFeeStatus:    clinic.BaseFeeStatus,
		CommissionEarned: clinic.CommissionEarned,
		CreatedAt:        clinic.CreatedAt,
	}
}

// ListClinics returns all clinic profiles with their base-fee standing and
// accrued commission. Admin only; the router enforces the role.
func ListClinics(repo clinics.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "clinics repository unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := repo.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list clinics"))
			return
		}

		dtos := make([]clinicDTO, 0, len(items))
		for i := range items {
			dtos = append(dtos, newClinicDTO(&items[i]))
		}
		responses.WriteSuccess(w, map[string]any{"clinics": dtos})
	}
}
