package controllers

import (
	"context"
	"net/http"

	"github.com/carebridgehealth/carebridge-backend/api/responses"
	"github.com/carebridgehealth/carebridge-backend/pkg/config"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CareBridge-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when the backing stores answer a ping.
// The queue pinger is nil when Pub/Sub fan-out is not configured.
func HealthReady(cfg *config.Config, database pinger, cache pinger, queue pinger, logg *logger.Logger) http.HandlerFunc {
	checks := []struct {
		name string
		p    pinger
	}{
		{"database", database},
		{"redis", cache},
		{"pubsub", queue},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CareBridge-Env", cfg.App.Env)

		for _, check := range checks {
			if check.p == nil {
				continue
			}
			if err := check.p.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" unreachable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
