package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/internal/checkout"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
)

type stubCheckoutService struct {
	planInput    *checkout.PlanCheckoutInput
	baseFeeInput *checkout.BaseFeeCheckoutInput
	session      *checkout.Session
	err          error
}

func (s *stubCheckoutService) StartPlanCheckout(ctx context.Context, input checkout.PlanCheckoutInput) (*checkout.Session, error) {
	s.planInput = &input
	return s.session, s.err
}

func (s *stubCheckoutService) StartBaseFeeCheckout(ctx context.Context, input checkout.BaseFeeCheckoutInput) (*checkout.Session, error) {
	s.baseFeeInput = &input
	return s.session, s.err
}

func TestPlanCheckout(t *testing.T) {
	logg := testLogger()
	patientID := uuid.New()

	t.Run("success", func(t *testing.T) {
		stub := &stubCheckoutService{session: &checkout.Session{ID: "cs_123", URL: "https://checkout.stripe.com/cs_123"}}
		body := `{"priceId":"price_standard","email":"taro@example.com","patientId":"` + patientID.String() + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/plan", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		PlanCheckout(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.planInput == nil || stub.planInput.PatientID != patientID {
			t.Fatalf("plan input not forwarded: %+v", stub.planInput)
		}

		var envelope struct {
			Data checkout.Session `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if envelope.Data.URL != "https://checkout.stripe.com/cs_123" {
			t.Fatalf("missing redirect url: %+v", envelope.Data)
		}
	})

	t.Run("missing patient id", func(t *testing.T) {
		stub := &stubCheckoutService{}
		body := `{"priceId":"price_standard","email":"taro@example.com"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/plan", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		PlanCheckout(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if stub.planInput != nil {
			t.Fatalf("service should not be called on validation failure")
		}
	})

	t.Run("unknown price", func(t *testing.T) {
		stub := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeNotFound, "no plan for this price id")}
		body := `{"priceId":"price_missing","email":"taro@example.com","patientId":"` + patientID.String() + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/plan", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		PlanCheckout(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestBaseFeeCheckout(t *testing.T) {
	logg := testLogger()
	clinicID := uuid.New()

	t.Run("success", func(t *testing.T) {
		stub := &stubCheckoutService{session: &checkout.Session{ID: "cs_456", URL: "https://checkout.stripe.com/cs_456"}}
		body := `{"email":"clinic@example.com","userId":"` + clinicID.String() + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/base-fee", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		BaseFeeCheckout(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.baseFeeInput == nil || stub.baseFeeInput.UserID != clinicID {
			t.Fatalf("base fee input not forwarded: %+v", stub.baseFeeInput)
		}
	})

	t.Run("stripe outage surfaces 503", func(t *testing.T) {
		stub := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeDependency, "create checkout session")}
		body := `{"email":"clinic@example.com","userId":"` + clinicID.String() + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/base-fee", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		BaseFeeCheckout(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}
