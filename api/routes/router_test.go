package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carebridgehealth/carebridge-backend/internal/activity"
	"github.com/carebridgehealth/carebridge-backend/internal/clinics"
	"github.com/carebridgehealth/carebridge-backend/internal/plans"
	pkgAuth "github.com/carebridgehealth/carebridge-backend/pkg/auth"
	"github.com/carebridgehealth/carebridge-backend/pkg/config"
	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
	"github.com/carebridgehealth/carebridge-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubPlansService struct{}

func (stubPlansService) Create(ctx context.Context, input plans.CreatePlanInput) (*models.Plan, error) {
	return &models.Plan{ID: uuid.New()}, nil
}

func (stubPlansService) Update(ctx context.Context, id uuid.UUID, input plans.UpdatePlanInput) (*models.Plan, error) {
	return &models.Plan{ID: id}, nil
}

func (stubPlansService) List(ctx context.Context, query plans.ListPlansQuery) ([]models.Plan, error) {
	return nil, nil
}

func (stubPlansService) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return &models.Plan{ID: id}, nil
}

type stubActivityService struct{}

func (stubActivityService) Record(ctx context.Context, tx *gorm.DB, input activity.RecordInput) (*models.ActivityEntry, error) {
	return nil, nil
}

func (stubActivityService) List(ctx context.Context, query activity.ListQuery) ([]models.ActivityEntry, *pagination.Cursor, error) {
	return nil, nil, nil
}

type stubClinicsRepo struct{}

func (s stubClinicsRepo) WithTx(tx *gorm.DB) clinics.Repository { return s }

func (stubClinicsRepo) Create(ctx context.Context, clinic *models.Clinic) error { return nil }

func (stubClinicsRepo) Update(ctx context.Context, clinic *models.Clinic) error { return nil }

func (stubClinicsRepo) List(ctx context.Context) ([]models.Clinic, error) { return nil, nil }

func (stubClinicsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Clinic, error) {
	return nil, nil
}

func (stubClinicsRepo) FindByBaseFeeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Clinic, error) {
	return nil, nil
}

func (stubClinicsRepo) AddCommission(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       stubPinger{},
		Redis:    stubPinger{},
		Plans:    stubPlansService{},
		Activity: stubActivityService{},
		Clinics:  stubClinicsRepo{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
	if resp.Header().Get("X-CareBridge-Env") != "test" {
		t.Fatalf("missing env header")
	}
}

func TestHealthReadyPingsStores(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for readiness got %d", resp.Code)
	}
}

func TestPublicPlansDoNotRequireAuth(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public plans got %d", resp.Code)
	}
}

func TestAdminGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/plans", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	clinic := httptest.NewRequest(http.MethodGet, "/api/admin/v1/plans", nil)
	clinic.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleClinic))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, clinic)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for clinic role got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/plans", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestAdminActivityFeedRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	patient := httptest.NewRequest(http.MethodGet, "/api/admin/v1/activity", nil)
	patient.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RolePatient))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, patient)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/activity", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin activity got %d", resp.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
}
