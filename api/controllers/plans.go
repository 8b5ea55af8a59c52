package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/api/responses"
	"github.com/carebridgehealth/carebridge-backend/api/validators"
	"github.com/carebridgehealth/carebridge-backend/internal/plans"
	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
)

type createPlanRequest struct {
	Name          string   `json:"name" validate:"required"`
	PriceYen      int      `json:"priceYen" validate:"gte=0"`
	CommissionYen int      `json:"commissionYen" validate:"gte=0"`
	CompanyCutYen int      `json:"companyCutYen" validate:"gte=0"`
	StripePriceID string   `json:"stripePriceId" validate:"required"`
	Features      []string `json:"features"`
}

type updatePlanRequest struct {
	Name          *string  `json:"name,omitempty"`
	PriceYen      *int     `json:"priceYen,omitempty"`
	CommissionYen *int     `json:"commissionYen,omitempty"`
	CompanyCutYen *int     `json:"companyCutYen,omitempty"`
	Features      []string `json:"features,omitempty"`
	Status        *string  `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

type planDTO struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	PriceYen      int              `json:"priceYen"`
	CommissionYen int              `json:"commissionYen"`
	CompanyCutYen int              `json:"companyCutYen"`
	StripePriceID string           `json:"stripePriceId"`
	Features      []string         `json:"features"`
	Status        enums.PlanStatus `json:"status"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

func newPlanDTO(plan *models.Plan) planDTO {
	return planDTO{
		ID:            plan.ID,
		Name:          plan.Name,
		PriceYen:      plan.PriceYen,
		CommissionYen: plan.CommissionYen,
		CompanyCutYen: plan.CompanyCutYen,
		StripePriceID: plan.StripePriceID,
		Features:      plan.Features,
		Status:        plan.Status,
		CreatedAt:     plan.CreatedAt,
		UpdatedAt:     plan.UpdatedAt,
	}
}

func newPlanDTOs(items []models.Plan) []planDTO {
	dtos := make([]planDTO, 0, len(items))
	for i := range items {
		dtos = append(dtos, newPlanDTO(&items[i]))
	}
	return dtos
}

// ListPlans returns the catalog. The status query filters it; patients hit
// this with status=active for the enrollment page.
func ListPlans(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var query plans.ListPlansQuery
		if raw := r.URL.Query().Get("status"); raw != "" {
			status := enums.PlanStatus(raw)
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan status"))
				return
			}
			query.Status = &status
		}

		items, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"plans": newPlanDTOs(items)})
	}
}

func GetPlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "planID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan id"))
			return
		}

		plan, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPlanDTO(plan))
	}
}

// CreatePlan publishes a new care plan. Admin only; the router enforces the
// role.
func CreatePlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createPlanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := svc.Create(r.Context(), plans.CreatePlanInput{
			Name:          body.Name,
			PriceYen:      body.PriceYen,
			CommissionYen: body.CommissionYen,
			CompanyCutYen: body.CompanyCutYen,
			StripePriceID: body.StripePriceID,
			Features:      body.Features,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPlanDTO(plan))
	}
}

func UpdatePlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "planID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan id"))
			return
		}

		var body updatePlanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := plans.UpdatePlanInput{
			Name:          body.Name,
			PriceYen:      body.PriceYen,
			CommissionYen: body.CommissionYen,
			CompanyCutYen: body.CompanyCutYen,
			Features:      body.Features,
		}
		if body.Status != nil {
			status := enums.PlanStatus(*body.Status)
			input.Status = &status
		}

		plan, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPlanDTO(plan))
	}
}
