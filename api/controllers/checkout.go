package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/api/responses"
	"github.com/carebridgehealth/carebridge-backend/api/validators"
	"github.com/carebridgehealth/carebridge-backend/internal/checkout"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
)

type planCheckoutRequest struct {
	PriceID   string    `json:"priceId" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	PatientID uuid.UUID `json:"patientId" validate:"required"`
}

type baseFeeCheckoutRequest struct {
	Email  string    `json:"email" validate:"required,email"`
	UserID uuid.UUID `json:"userId" validate:"required"`
}

// PlanCheckout starts a Stripe Checkout session enrolling a patient in a plan.
// The response URL is where the frontend redirects the browser.
func PlanCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body planCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.StartPlanCheckout(r.Context(), checkout.PlanCheckoutInput{
			PriceID:   body.PriceID,
			Email:     body.Email,
			PatientID: body.PatientID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}

// BaseFeeCheckout starts a Stripe Checkout session for a clinic's monthly
// base fee.
func BaseFeeCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body baseFeeCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.StartBaseFeeCheckout(r.Context(), checkout.BaseFeeCheckoutInput{
			Email:  body.Email,
			UserID: body.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}
