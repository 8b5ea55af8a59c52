package webhooks

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/carebridgehealth/carebridge-backend/api/responses"
	stripewebhook "github.com/carebridgehealth/carebridge-backend/internal/webhooks/stripe"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
	"github.com/carebridgehealth/carebridge-backend/pkg/metrics"
	"github.com/carebridgehealth/carebridge-backend/pkg/types"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error)
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook receives Stripe billing event deliveries: verify the
// signature, claim the event id, dispatch, and answer. A non-2xx answer makes
// Stripe redeliver, so only retryable failures produce one.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook pipeline unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			m.IncSignatureRejected()
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			m.IncSignatureRejected()
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			m.IncHandled(string(event.Type), "duplicate")
			responses.WriteSuccess(w, types.WebhookAck{Received: true})
			return
		}

		start := time.Now()
		outcome, err := svc.HandleEvent(ctx, &event)
		m.ObserveDuration(string(event.Type), time.Since(start))

		if err != nil {
			if pkgerrors.Retryable(err) {
				// Release the claim so the redelivery can try again.
				_ = guard.Delete(ctx, event.ID)
				m.IncHandled(string(event.Type), "error")
				responses.WriteError(ctx, logg, w, err)
				return
			}
			// Permanent: redelivery would fail identically. Keep the claim
			// and ack.
			if logg != nil {
				logg.Error(ctx, "webhook.event.unprocessable", err)
			}
			m.IncHandled(string(event.Type), "skipped")
			responses.WriteSuccess(w, types.WebhookAck{Received: true})
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "webhook.event.handled")
		}
		m.IncHandled(string(event.Type), string(outcome))
		responses.WriteSuccess(w, types.WebhookAck{Received: true})
	}
}
