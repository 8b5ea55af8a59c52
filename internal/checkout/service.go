package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/carebridgehealth/carebridge-backend/internal/clinics"
	"github.com/carebridgehealth/carebridge-backend/internal/patients"
	"github.com/carebridgehealth/carebridge-backend/internal/plans"
	"github.com/carebridgehealth/carebridge-backend/pkg/config"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	pkgstripe "github.com/carebridgehealth/carebridge-backend/pkg/stripe"
)

// Service starts Stripe Checkout sessions for plan enrollments and clinic
// base fees. It never writes local rows; the webhook reconciler does that
// when Stripe confirms payment.
type Service interface {
	StartPlanCheckout(ctx context.Context, input PlanCheckoutInput) (*Session, error)
	StartBaseFeeCheckout(ctx context.Context, input BaseFeeCheckoutInput) (*Session, error)
}

// PlanCheckoutInput identifies the plan (by Stripe price) and the patient
// enrolling in it.
type PlanCheckoutInput struct {
	PriceID   string
	Email     string
	PatientID uuid.UUID
}

// BaseFeeCheckoutInput identifies the clinic paying the monthly base fee.
type BaseFeeCheckoutInput struct {
	Email  string
	UserID uuid.UUID
}

// Session is the redirect handle returned to the frontend.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type service struct {
	cfg      config.StripeConfig
	stripe   StripeCheckoutClient
	plans    plans.Repository
	patients patients.Repository
	clinics  clinics.Repository
}

// NewService wires a checkout service.
func NewService(
	cfg config.StripeConfig,
	stripeClient StripeCheckoutClient,
	planRepo plans.Repository,
	patientRepo patients.Repository,
	clinicRepo clinics.Repository,
) (Service, error) {
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe checkout client required")
	}
	if planRepo == nil {
		return nil, fmt.Errorf("plans repository required")
	}
	if patientRepo == nil {
		return nil, fmt.Errorf("patients repository required")
	}
	if clinicRepo == nil {
		return nil, fmt.Errorf("clinics repository required")
	}
	return &service{
		cfg:      cfg,
		stripe:   stripeClient,
		plans:    planRepo,
		patients: patientRepo,
		clinics:  clinicRepo,
	}, nil
}

func (s *service) StartPlanCheckout(ctx context.Context, input PlanCheckoutInput) (*Session, error) {
	if input.PriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price id is required")
	}
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if input.PatientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient id is required")
	}

	plan, err := s.plans.FindByStripePriceID(ctx, input.PriceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no plan for this price id")
	}
	if plan.Status != enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "plan is not open for enrollment")
	}

	patient, err := s.patients.FindByID(ctx, input.PatientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup patient")
	}
	if patient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "patient not found")
	}

	metadata := map[string]string{
		pkgstripe.MetadataPurpose:   pkgstripe.PurposePlanSubscription,
		pkgstripe.MetadataPatientID: patient.ID.String(),
		pkgstripe.MetadataPlanID:    plan.ID.String(),
	}
	if patient.ClinicID != nil {
		metadata[pkgstripe.MetadataClinicID] = patient.ClinicID.String()
	}

	return s.createSession(ctx, input.Email, plan.StripePriceID, metadata)
}

func (s *service) StartBaseFeeCheckout(ctx context.Context, input BaseFeeCheckoutInput) (*Session, error) {
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if s.cfg.BaseFeePriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "base fee price is not configured")
	}

	clinic, err := s.clinics.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup clinic")
	}
	if clinic == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "clinic not found")
	}

	metadata := map[string]string{
		pkgstripe.MetadataPurpose: pkgstripe.PurposeClinicBaseFee,
		pkgstripe.MetadataUserID:  clinic.ID.String(),
	}

	return s.createSession(ctx, input.Email, s.cfg.BaseFeePriceID, metadata)
}

func (s *service) createSession(ctx context.Context, email, priceID string, metadata map[string]string) (*Session, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(email),
		SuccessURL:    stripe.String(s.cfg.SuccessURL),
		CancelURL:     stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
		// Stripe copies subscription_data.metadata onto the subscription
		// object, which is what later invoice events reference.
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	sess, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}
