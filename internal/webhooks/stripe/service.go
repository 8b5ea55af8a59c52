package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/carebridgehealth/carebridge-backend/internal/activity"
	"github.com/carebridgehealth/carebridge-backend/internal/billing"
	"github.com/carebridgehealth/carebridge-backend/internal/clinics"
	"github.com/carebridgehealth/carebridge-backend/internal/patients"
	"github.com/carebridgehealth/carebridge-backend/internal/plans"
	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
	pkgstripe "github.com/carebridgehealth/carebridge-backend/pkg/stripe"
)

// Outcome classifies what HandleEvent did with a delivery. Skipped events are
// acked to Stripe: redelivering them cannot succeed, so retries would only
// burn the retry budget.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeIgnored Outcome = "ignored"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	BillingRepo       billing.Repository
	ClinicRepo        clinics.Repository
	PatientRepo       patients.Repository
	PlanRepo          plans.Repository
	Activity          activity.Service
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service applies Stripe billing events to local state. Every state change
// and the activity entry describing it commit in one transaction.
type Service struct {
	billingRepo billing.Repository
	clinicRepo  clinics.Repository
	patientRepo patients.Repository
	planRepo    plans.Repository
	activity    activity.Service
	txRunner    txRunner
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.ClinicRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "clinic repo required")
	}
	if params.PatientRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "patient repo required")
	}
	if params.PlanRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan repo required")
	}
	if params.Activity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "activity service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		clinicRepo:  params.ClinicRepo,
		patientRepo: params.PatientRepo,
		planRepo:    params.PlanRepo,
		activity:    params.Activity,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
	}, nil
}

// HandleEvent dispatches one verified, deduplicated Stripe event. A non-nil
// error means the delivery should be retried by Stripe; a skip means the
// event can never be applied and is acked.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return OutcomeSkipped, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return OutcomeSkipped, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeInvoicePaid:
		return s.handleInvoice(ctx, event, true)
	case stripe.EventTypeInvoicePaymentFailed:
		return s.handleInvoice(ctx, event, false)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return OutcomeSkipped, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.handleSubscriptionDeleted(ctx, &stripeSub)
	default:
		// Anything not part of the billing lifecycle is acked untouched.
		return OutcomeIgnored, nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) (Outcome, error) {
	if session.Subscription == nil || session.Subscription.ID == "" {
		return s.skip(ctx, "checkout session carries no subscription", nil)
	}

	if session.Metadata[pkgstripe.MetadataPurpose] == pkgstripe.PurposeClinicBaseFee {
		return s.activateClinicBaseFee(ctx, session)
	}
	return s.createPlanSubscription(ctx, session)
}

func (s *Service) activateClinicBaseFee(ctx context.Context, session *stripe.CheckoutSession) (Outcome, error) {
	clinicID, err := uuid.Parse(session.Metadata[pkgstripe.MetadataUserID])
	if err != nil {
		return s.skip(ctx, "base fee session has no valid user id", err)
	}

	outcome := OutcomeApplied
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.clinicRepo.WithTx(tx)
		clinic, err := repo.FindByID(ctx, clinicID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load clinic")
		}
		if clinic == nil {
			outcome = OutcomeSkipped
			s.warn(ctx, "base fee session references unknown clinic", nil)
			return nil
		}

		subscriptionID := session.Subscription.ID
		// The stored subscription id already matching means this session was
		// applied before (or suspended later); replays must not touch it.
		if clinic.BaseFeeStripeSubscriptionID != nil && *clinic.BaseFeeStripeSubscriptionID == subscriptionID {
			outcome = OutcomeSkipped
			return nil
		}

		clinic.BaseFeeStatus = enums.BaseFeeStatusActive
		clinic.BaseFeeStripeSubscriptionID = &subscriptionID
		if session.Customer != nil && session.Customer.ID != "" {
			customerID := session.Customer.ID
			clinic.BaseFeeStripeCustomerID = &customerID
		}
		if err := repo.Update(ctx, clinic); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate base fee")
		}

		_, err = s.activity.Record(ctx, tx, activity.RecordInput{
			Type:     enums.ActivityTypeBaseFeePaid,
			UserID:   clinic.ID,
			ClinicID: &clinic.ID,
			Message:  fmt.Sprintf("%s activated the platform base fee", clinic.Name),
			Details:  map[string]any{"stripe_subscription_id": subscriptionID},
		})
		return err
	})
	if txErr != nil {
		return OutcomeSkipped, txErr
	}
	return outcome, nil
}

func (s *Service) createPlanSubscription(ctx context.Context, session *stripe.CheckoutSession) (Outcome, error) {
	patientID, err := uuid.Parse(session.Metadata[pkgstripe.MetadataPatientID])
	if err != nil {
		return s.skip(ctx, "checkout session has no valid patient id", err)
	}
	planID, err := uuid.Parse(session.Metadata[pkgstripe.MetadataPlanID])
	if err != nil {
		return s.skip(ctx, "checkout session has no valid plan id", err)
	}

	outcome := OutcomeApplied
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		billingRepo := s.billingRepo.WithTx(tx)

		// Any status counts, canceled included: a replayed checkout event
		// must never resurrect or duplicate a dead enrollment.
		existing, err := billingRepo.FindSubscriptionByStripeID(ctx, session.Subscription.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
		}
		if existing != nil {
			outcome = OutcomeSkipped
			return nil
		}

		patient, err := s.patientRepo.WithTx(tx).FindByID(ctx, patientID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load patient")
		}
		if patient == nil {
			outcome = OutcomeSkipped
			s.warn(ctx, "checkout session references unknown patient", nil)
			return nil
		}

		plan, err := s.planRepo.WithTx(tx).FindByID(ctx, planID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
		}
		if plan == nil {
			outcome = OutcomeSkipped
			s.warn(ctx, "checkout session references unknown plan", nil)
			return nil
		}

		clinicID, ok := s.resolveClinicID(session.Metadata, patient)
		if !ok {
			outcome = OutcomeSkipped
			s.warn(ctx, "checkout session has no clinic attribution", nil)
			return nil
		}

		sub := &models.Subscription{
			PatientID:            patient.ID,
			ClinicID:             clinicID,
			PlanID:               plan.ID,
			Status:               enums.SubscriptionStatusActive,
			StripeSubscriptionID: session.Subscription.ID,
			StartDate:            time.Now().UTC(),
		}
		if session.Customer != nil && session.Customer.ID != "" {
			customerID := session.Customer.ID
			sub.StripeCustomerID = &customerID
		}
		if err := sub.SetSnapshot(models.PlanSnapshot{
			PlanID:        plan.ID,
			Name:          plan.Name,
			PriceYen:      plan.PriceYen,
			CommissionYen: plan.CommissionYen,
			CompanyCutYen: plan.CompanyCutYen,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode plan snapshot")
		}
		if err := billingRepo.CreateSubscription(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}

		_, err = s.activity.Record(ctx, tx, activity.RecordInput{
			Type:     enums.ActivityTypeNewSignup,
			UserID:   patient.ID,
			ClinicID: &clinicID,
			Message:  fmt.Sprintf("%s subscribed to %s", patient.Name, plan.Name),
			Details: map[string]any{
				"plan_id":                plan.ID.String(),
				"plan_name":              plan.Name,
				"amount":                 plan.PriceYen,
				"stripe_subscription_id": sub.StripeSubscriptionID,
			},
		})
		return err
	})
	if txErr != nil {
		return OutcomeSkipped, txErr
	}
	return outcome, nil
}

// resolveClinicID prefers the clinic threaded through checkout metadata and
// falls back to the patient's current assignment.
func (s *Service) resolveClinicID(metadata map[string]string, patient *models.Patient) (uuid.UUID, bool) {
	if raw := metadata[pkgstripe.MetadataClinicID]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id, true
		}
	}
	if patient.ClinicID != nil {
		return *patient.ClinicID, true
	}
	return uuid.Nil, false
}

func (s *Service) handleInvoice(ctx context.Context, event *stripe.Event, paid bool) (Outcome, error) {
	subscriptionID := invoiceSubscriptionID(event)
	if subscriptionID == "" {
		return s.skip(ctx, "invoice event carries no subscription id", nil)
	}

	outcome := OutcomeApplied
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		billingRepo := s.billingRepo.WithTx(tx)
		sub, err := billingRepo.FindSubscriptionByStripeID(ctx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
		}
		if sub != nil {
			if paid {
				return s.applyPlanPayment(ctx, tx, sub)
			}
			return s.applyPlanPaymentFailure(ctx, tx, sub)
		}

		// Not a plan subscription; it may be a clinic base fee.
		clinicRepo := s.clinicRepo.WithTx(tx)
		clinic, err := clinicRepo.FindByBaseFeeSubscriptionID(ctx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup clinic by base fee subscription")
		}
		if clinic == nil {
			outcome = OutcomeSkipped
			s.warn(ctx, "invoice event references unknown subscription", nil)
			return nil
		}
		return s.applyBaseFeeInvoice(ctx, tx, clinic, paid)
	})
	if txErr != nil {
		return OutcomeSkipped, txErr
	}
	return outcome, nil
}

func (s *Service) applyPlanPayment(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	// Absolute target state: whatever the current status, a paid invoice
	// means the enrollment is active.
	sub.Status = enums.SubscriptionStatusActive
	sub.EndDate = nil
	if err := s.billingRepo.WithTx(tx).UpdateSubscription(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}

	snapshot, err := sub.Snapshot()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode plan snapshot")
	}
	commission := 0
	if snapshot != nil {
		commission = snapshot.CommissionYen
	}
	if commission > 0 {
		if err := s.clinicRepo.WithTx(tx).AddCommission(ctx, sub.ClinicID, decimal.NewFromInt(int64(commission))); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accrue commission")
		}
	}

	_, err = s.activity.Record(ctx, tx, activity.RecordInput{
		Type:     enums.ActivityTypePaymentSuccess,
		UserID:   sub.PatientID,
		ClinicID: &sub.ClinicID,
		Message:  "subscription payment received",
		Details: map[string]any{
			"stripe_subscription_id": sub.StripeSubscriptionID,
			"commission_yen":         commission,
		},
	})
	return err
}

func (s *Service) applyPlanPaymentFailure(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	sub.Status = enums.SubscriptionStatusPastDue
	if err := s.billingRepo.WithTx(tx).UpdateSubscription(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}

	_, err := s.activity.Record(ctx, tx, activity.RecordInput{
		Type:     enums.ActivityTypePaymentFailed,
		UserID:   sub.PatientID,
		ClinicID: &sub.ClinicID,
		Message:  "subscription payment failed",
		Details: map[string]any{
			"stripe_subscription_id": sub.StripeSubscriptionID,
		},
	})
	return err
}

func (s *Service) applyBaseFeeInvoice(ctx context.Context, tx *gorm.DB, clinic *models.Clinic, paid bool) error {
	repo := s.clinicRepo.WithTx(tx)
	if paid {
		clinic.BaseFeeStatus = enums.BaseFeeStatusActive
	} else {
		clinic.BaseFeeStatus = enums.BaseFeeStatusUnpaid
	}
	if err := repo.Update(ctx, clinic); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update clinic base fee status")
	}

	if !paid {
		return nil
	}
	_, err := s.activity.Record(ctx, tx, activity.RecordInput{
		Type:     enums.ActivityTypeBaseFeePaid,
		UserID:   clinic.ID,
		ClinicID: &clinic.ID,
		Message:  fmt.Sprintf("%s paid the platform base fee", clinic.Name),
		Details:  nil,
	})
	return err
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, stripeSub *stripe.Subscription) (Outcome, error) {
	if stripeSub.ID == "" {
		return s.skip(ctx, "subscription event carries no id", nil)
	}

	outcome := OutcomeApplied
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		billingRepo := s.billingRepo.WithTx(tx)
		sub, err := billingRepo.FindSubscriptionByStripeID(ctx, stripeSub.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
		}
		if sub != nil {
			now := time.Now().UTC()
			sub.Status = enums.SubscriptionStatusCanceled
			sub.EndDate = &now
			if err := billingRepo.UpdateSubscription(ctx, sub); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription")
			}
			_, err = s.activity.Record(ctx, tx, activity.RecordInput{
				Type:     enums.ActivityTypeSubscriptionCancelled,
				UserID:   sub.PatientID,
				ClinicID: &sub.ClinicID,
				Message:  "subscription cancelled",
				Details: map[string]any{
					"stripe_subscription_id": sub.StripeSubscriptionID,
				},
			})
			return err
		}

		clinicRepo := s.clinicRepo.WithTx(tx)
		clinic, err := clinicRepo.FindByBaseFeeSubscriptionID(ctx, stripeSub.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup clinic by base fee subscription")
		}
		if clinic == nil {
			outcome = OutcomeSkipped
			s.warn(ctx, "deleted subscription not known locally", nil)
			return nil
		}
		clinic.BaseFeeStatus = enums.BaseFeeStatusSuspended
		if err := clinicRepo.Update(ctx, clinic); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "suspend clinic base fee")
		}
		return nil
	})
	if txErr != nil {
		return OutcomeSkipped, txErr
	}
	return outcome, nil
}

// invoiceSubscriptionID covers both payload shapes Stripe has used for the
// invoice->subscription link.
func invoiceSubscriptionID(event *stripe.Event) string {
	if id := event.GetObjectValue("subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("parent", "subscription_details", "subscription")
}

// skip records a correlation failure. The delivery is acked: Stripe retries
// cannot repair a reference to data we do not have.
func (s *Service) skip(ctx context.Context, reason string, err error) (Outcome, error) {
	s.warn(ctx, reason, err)
	return OutcomeSkipped, nil
}

func (s *Service) warn(ctx context.Context, reason string, err error) {
	if s.logg == nil {
		return
	}
	if err != nil {
		ctx = s.logg.WithField(ctx, "cause", err.Error())
	}
	s.logg.Warn(ctx, "webhook.skip: "+reason)
}
