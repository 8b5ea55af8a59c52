package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
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
	"github.com/carebridgehealth/carebridge-backend/pkg/pagination"
)

// ---- stubs ----

type memBilling struct {
	billing.Repository
	byStripeID map[string]*models.Subscription
	created    []*models.Subscription
	updated    []*models.Subscription
}

func newMemBilling() *memBilling {
	return &memBilling{byStripeID: map[string]*models.Subscription{}}
}

func (m *memBilling) WithTx(tx *gorm.DB) billing.Repository { return m }

func (m *memBilling) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	m.byStripeID[sub.StripeSubscriptionID] = sub
	m.created = append(m.created, sub)
	return nil
}

func (m *memBilling) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	m.byStripeID[sub.StripeSubscriptionID] = sub
	m.updated = append(m.updated, sub)
	return nil
}

func (m *memBilling) FindSubscriptionByStripeID(ctx context.Context, id string) (*models.Subscription, error) {
	return m.byStripeID[id], nil
}

type memClinics struct {
	clinics.Repository
	byID        map[uuid.UUID]*models.Clinic
	commissions map[uuid.UUID]decimal.Decimal
}

func newMemClinics() *memClinics {
	return &memClinics{
		byID:        map[uuid.UUID]*models.Clinic{},
		commissions: map[uuid.UUID]decimal.Decimal{},
	}
}

func (m *memClinics) WithTx(tx *gorm.DB) clinics.Repository { return m }

func (m *memClinics) Update(ctx context.Context, clinic *models.Clinic) error {
	m.byID[clinic.ID] = clinic
	return nil
}

func (m *memClinics) FindByID(ctx context.Context, id uuid.UUID) (*models.Clinic, error) {
	return m.byID[id], nil
}

func (m *memClinics) FindByBaseFeeSubscriptionID(ctx context.Context, stripeID string) (*models.Clinic, error) {
	for _, clinic := range m.byID {
		if clinic.BaseFeeStripeSubscriptionID != nil && *clinic.BaseFeeStripeSubscriptionID == stripeID {
			return clinic, nil
		}
	}
	return nil, nil
}

func (m *memClinics) AddCommission(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	m.commissions[id] = m.commissions[id].Add(amount)
	return nil
}

type memPatients struct {
	patients.Repository
	byID map[uuid.UUID]*models.Patient
}

func (m *memPatients) WithTx(tx *gorm.DB) patients.Repository { return m }

func (m *memPatients) FindByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	return m.byID[id], nil
}

type memPlans struct {
	plans.Repository
	byID map[uuid.UUID]*models.Plan
}

func (m *memPlans) WithTx(tx *gorm.DB) plans.Repository { return m }

func (m *memPlans) FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return m.byID[id], nil
}

type recordedActivity struct {
	entries []activity.RecordInput
}

func (r *recordedActivity) Record(ctx context.Context, tx *gorm.DB, input activity.RecordInput) (*models.ActivityEntry, error) {
	r.entries = append(r.entries, input)
	return &models.ActivityEntry{ID: uuid.New(), Type: input.Type}, nil
}

func (r *recordedActivity) List(ctx context.Context, query activity.ListQuery) ([]models.ActivityEntry, *pagination.Cursor, error) {
	return nil, nil, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// ---- fixture ----

type fixture struct {
	svc      *Service
	billing  *memBilling
	clinics  *memClinics
	patients *memPatients
	plans    *memPlans
	feed     *recordedActivity

	clinicID  uuid.UUID
	patientID uuid.UUID
	planID    uuid.UUID
}

func newReconcilerFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		billing:  newMemBilling(),
		clinics:  newMemClinics(),
		patients: &memPatients{byID: map[uuid.UUID]*models.Patient{}},
		plans:    &memPlans{byID: map[uuid.UUID]*models.Plan{}},
		feed:     &recordedActivity{},
	}

	f.clinicID = uuid.New()
	f.clinics.byID[f.clinicID] = &models.Clinic{ID: f.clinicID, Name: "Sakura Clinic"}

	f.patientID = uuid.New()
	f.patients.byID[f.patientID] = &models.Patient{ID: f.patientID, ClinicID: &f.clinicID, Name: "Taro"}

	f.planID = uuid.New()
	f.plans.byID[f.planID] = &models.Plan{
		ID:            f.planID,
		Name:          "Standard Care",
		PriceYen:      5000,
		CommissionYen: 3500,
		CompanyCutYen: 1500,
		StripePriceID: "price_standard",
		Status:        enums.PlanStatusActive,
	}

	svc, err := NewService(ServiceParams{
		BillingRepo:       f.billing,
		ClinicRepo:        f.clinics,
		PatientRepo:       f.patients,
		PlanRepo:          f.plans,
		Activity:          f.feed,
		TransactionRunner: passthroughTx{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func rawEvent(t *testing.T, eventType stripe.EventType, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal event object: %v", err)
	}
	var objMap map[string]interface{}
	if err := json.Unmarshal(raw, &objMap); err != nil {
		t.Fatalf("unmarshal event object: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw, Object: objMap},
	}
}

func (f *fixture) checkoutCompletedEvent(t *testing.T, stripeSubID string) *stripe.Event {
	return rawEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":           "cs_" + uuid.NewString(),
		"subscription": stripeSubID,
		"customer":     "cus_123",
		"metadata": map[string]string{
			"purpose":    "plan_subscription",
			"patient_id": f.patientID.String(),
			"clinic_id":  f.clinicID.String(),
			"plan_id":    f.planID.String(),
		},
	})
}

func invoiceEvent(t *testing.T, eventType stripe.EventType, stripeSubID string) *stripe.Event {
	return rawEvent(t, eventType, map[string]any{
		"id":           "in_" + uuid.NewString(),
		"subscription": stripeSubID,
	})
}

// ---- tests ----

func TestCheckoutCompletedCreatesSubscriptionWithSnapshot(t *testing.T) {
	f := newReconcilerFixture(t)

	outcome, err := f.svc.HandleEvent(context.Background(), f.checkoutCompletedEvent(t, "sub_abc"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	sub := f.billing.byStripeID["sub_abc"]
	if sub == nil {
		t.Fatalf("subscription not created")
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", sub.Status)
	}
	if sub.PatientID != f.patientID || sub.ClinicID != f.clinicID {
		t.Fatalf("wrong attribution: %+v", sub)
	}

	snap, err := sub.Snapshot()
	if err != nil || snap == nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if snap.CommissionYen != 3500 || snap.PriceYen != 5000 {
		t.Fatalf("snapshot economics wrong: %+v", snap)
	}

	if len(f.feed.entries) != 1 || f.feed.entries[0].Type != enums.ActivityTypeNewSignup {
		t.Fatalf("expected new_signup entry, got %+v", f.feed.entries)
	}
	details := f.feed.entries[0].Details
	if details["plan_name"] != "Standard Care" {
		t.Fatalf("expected plan name in details, got %+v", details)
	}
	if details["amount"] != 5000 {
		t.Fatalf("expected plan price in details, got %+v", details)
	}
}

func TestCheckoutCompletedReplayIsNoOp(t *testing.T) {
	f := newReconcilerFixture(t)

	if _, err := f.svc.HandleEvent(context.Background(), f.checkoutCompletedEvent(t, "sub_abc")); err != nil {
		t.Fatalf("first: %v", err)
	}
	outcome, err := f.svc.HandleEvent(context.Background(), f.checkoutCompletedEvent(t, "sub_abc"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("expected skip on replay, got %s", outcome)
	}
	if len(f.billing.created) != 1 {
		t.Fatalf("replay created a duplicate subscription")
	}
	if len(f.feed.entries) != 1 {
		t.Fatalf("replay wrote a duplicate feed entry")
	}
}

func TestCheckoutReplayCannotResurrectCanceledSubscription(t *testing.T) {
	f := newReconcilerFixture(t)

	if _, err := f.svc.HandleEvent(context.Background(), f.checkoutCompletedEvent(t, "sub_abc")); err != nil {
		t.Fatalf("create: %v", err)
	}
	deleted := rawEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, map[string]any{"id": "sub_abc"})
	if _, err := f.svc.HandleEvent(context.Background(), deleted); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	outcome, err := f.svc.HandleEvent(context.Background(), f.checkoutCompletedEvent(t, "sub_abc"))
	if err != nil {
		t.Fatalf("stale replay: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("expected skip, got %s", outcome)
	}
	if got := f.billing.byStripeID["sub_abc"].Status; got != enums.SubscriptionStatusCanceled {
		t.Fatalf("stale replay resurrected subscription: %s", got)
	}
}

func TestInvoicePaidAccruesCommission(t *testing.T) {
	f := newReconcilerFixture(t)
	if _, err := f.svc.HandleEvent(context.Background(), f.checkoutCompletedEvent(t, "sub_abc")); err != nil {
		t.Fatalf("create: %v", err)
	}

	outcome, err := f.svc.HandleEvent(context.Background(), invoiceEvent(t, stripe.EventTypeInvoicePaid, "sub_abc"))
	if err != nil {
		t.Fatalf("invoice.paid: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	if got := f.clinics.commissions[f.clinicID]; !got.Equal(decimal.NewFromInt(3500)) {
		t.Fatalf("expected 3500 yen commission, got %s", got)
	}
	last := f.feed.entries[len(f.feed.entries)-1]
	if last.Type != enums.ActivityTypePaymentSuccess {
		t.Fatalf("expected payment_success, got %s", last.Type)
	}
}

func TestInvoicePaymentFailedMarksPastDue(t *testing.T) {
	f := newReconcilerFixture(t)
	if _, err := f.svc.HandleEvent(context.Background(), f.checkoutCompletedEvent(t, "sub_abc")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.HandleEvent(context.Background(), invoiceEvent(t, stripe.EventTypeInvoicePaymentFailed, "sub_abc")); err != nil {
		t.Fatalf("invoice.payment_failed: %v", err)
	}
	if got := f.billing.byStripeID["sub_abc"].Status; got != enums.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due, got %s", got)
	}

	// Late success flips it back; absolute target states make ordering safe.
	if _, err := f.svc.HandleEvent(context.Background(), invoiceEvent(t, stripe.EventTypeInvoicePaid, "sub_abc")); err != nil {
		t.Fatalf("invoice.paid: %v", err)
	}
	if got := f.billing.byStripeID["sub_abc"].Status; got != enums.SubscriptionStatusActive {
		t.Fatalf("expected active after late success, got %s", got)
	}
}

func TestSubscriptionDeletedCancelsAndStampsEndDate(t *testing.T) {
	f := newReconcilerFixture(t)
	if _, err := f.svc.HandleEvent(context.Background(), f.checkoutCompletedEvent(t, "sub_abc")); err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted := rawEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, map[string]any{"id": "sub_abc"})
	outcome, err := f.svc.HandleEvent(context.Background(), deleted)
	if err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	sub := f.billing.byStripeID["sub_abc"]
	if sub.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", sub.Status)
	}
	if sub.EndDate == nil {
		t.Fatalf("end date not stamped")
	}
	last := f.feed.entries[len(f.feed.entries)-1]
	if last.Type != enums.ActivityTypeSubscriptionCancelled {
		t.Fatalf("expected subscription_cancelled, got %s", last.Type)
	}
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	f := newReconcilerFixture(t)

	event := rawEvent(t, stripe.EventType("customer.created"), map[string]any{"id": "cus_1"})
	outcome, err := f.svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", outcome)
	}
	if len(f.feed.entries) != 0 || len(f.billing.created) != 0 {
		t.Fatalf("ignored event mutated state")
	}
}

func TestInvoiceForUnknownSubscriptionIsSkipped(t *testing.T) {
	f := newReconcilerFixture(t)

	outcome, err := f.svc.HandleEvent(context.Background(), invoiceEvent(t, stripe.EventTypeInvoicePaid, "sub_missing"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}
}

func TestBaseFeeLifecycle(t *testing.T) {
	f := newReconcilerFixture(t)

	// checkout.session.completed with the base fee purpose activates it.
	event := rawEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":           "cs_base",
		"subscription": "sub_base",
		"customer":     "cus_clinic",
		"metadata": map[string]string{
			"purpose": "clinic_base_fee",
			"user_id": f.clinicID.String(),
		},
	})
	outcome, err := f.svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("base fee checkout: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	clinic := f.clinics.byID[f.clinicID]
	if clinic.BaseFeeStatus != enums.BaseFeeStatusActive {
		t.Fatalf("expected active base fee, got %s", clinic.BaseFeeStatus)
	}
	if clinic.BaseFeeStripeSubscriptionID == nil || *clinic.BaseFeeStripeSubscriptionID != "sub_base" {
		t.Fatalf("base fee subscription id not stored")
	}
	if f.feed.entries[0].Type != enums.ActivityTypeBaseFeePaid {
		t.Fatalf("expected base_fee_paid entry")
	}

	// A failed renewal invoice marks the fee unpaid.
	if _, err := f.svc.HandleEvent(context.Background(), invoiceEvent(t, stripe.EventTypeInvoicePaymentFailed, "sub_base")); err != nil {
		t.Fatalf("failed renewal: %v", err)
	}
	if clinic.BaseFeeStatus != enums.BaseFeeStatusUnpaid {
		t.Fatalf("expected unpaid, got %s", clinic.BaseFeeStatus)
	}

	// Stripe canceling the base fee subscription suspends the clinic.
	deleted := rawEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, map[string]any{"id": "sub_base"})
	if _, err := f.svc.HandleEvent(context.Background(), deleted); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if clinic.BaseFeeStatus != enums.BaseFeeStatusSuspended {
		t.Fatalf("expected suspended, got %s", clinic.BaseFeeStatus)
	}
}

func TestBaseFeeActivationReplayIsNoOp(t *testing.T) {
	f := newReconcilerFixture(t)

	baseFeeEvent := func() *stripe.Event {
		return rawEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
			"id":           "cs_base",
			"subscription": "sub_base",
			"metadata": map[string]string{
				"purpose": "clinic_base_fee",
				"user_id": f.clinicID.String(),
			},
		})
	}

	if _, err := f.svc.HandleEvent(context.Background(), baseFeeEvent()); err != nil {
		t.Fatalf("first: %v", err)
	}
	outcome, err := f.svc.HandleEvent(context.Background(), baseFeeEvent())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("expected skip on replay, got %s", outcome)
	}
	if len(f.feed.entries) != 1 {
		t.Fatalf("replay wrote a duplicate base_fee_paid entry")
	}

	// A stale completed arriving after Stripe cancelled the base fee must not
	// reactivate the clinic; the stored subscription id still matches.
	deleted := rawEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, map[string]any{"id": "sub_base"})
	if _, err := f.svc.HandleEvent(context.Background(), deleted); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if _, err := f.svc.HandleEvent(context.Background(), baseFeeEvent()); err != nil {
		t.Fatalf("stale replay: %v", err)
	}
	if got := f.clinics.byID[f.clinicID].BaseFeeStatus; got != enums.BaseFeeStatusSuspended {
		t.Fatalf("stale replay reactivated base fee: %s", got)
	}
}

func TestCheckoutWithUnknownPatientIsSkipped(t *testing.T) {
	f := newReconcilerFixture(t)

	event := rawEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":           "cs_x",
		"subscription": "sub_x",
		"metadata": map[string]string{
			"purpose":    "plan_subscription",
			"patient_id": uuid.NewString(),
			"clinic_id":  f.clinicID.String(),
			"plan_id":    f.planID.String(),
		},
	})
	outcome, err := f.svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}
	if len(f.billing.created) != 0 {
		t.Fatalf("skip created a subscription")
	}
}

func TestIdempotencyGuard(t *testing.T) {
	store := &fakeIdemStore{keys: map[string]bool{}}
	guard, err := NewIdempotencyGuard(store, 0, "stripe")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	dup, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || dup {
		t.Fatalf("first claim should succeed: dup=%v err=%v", dup, err)
	}
	dup, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || !dup {
		t.Fatalf("second claim should report duplicate: dup=%v err=%v", dup, err)
	}

	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	dup, _ = guard.CheckAndMark(context.Background(), "evt_1")
	if dup {
		t.Fatalf("claim after delete should succeed")
	}
}

type fakeIdemStore struct {
	keys map[string]bool
}

func (f *fakeIdemStore) Get(ctx context.Context, key string) (string, error) {
	if f.keys[key] {
		return "1", nil
	}
	return "", nil
}

func (f *fakeIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdemStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idem:%s:%s", scope, id)
}

func (f *fakeIdemStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}
