package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridgehealth/carebridge-backend/internal/activity"
	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	"github.com/carebridgehealth/carebridge-backend/pkg/pagination"
)

type stubActivityService struct {
	query   *activity.ListQuery
	entries []models.ActivityEntry
	next    *pagination.Cursor
	err     error
}

func (s *stubActivityService) Record(ctx context.Context, tx *gorm.DB, input activity.RecordInput) (*models.ActivityEntry, error) {
	return nil, nil
}

func (s *stubActivityService) List(ctx context.Context, query activity.ListQuery) ([]models.ActivityEntry, *pagination.Cursor, error) {
	s.query = &query
	return s.entries, s.next, s.err
}

func TestActivityFeed(t *testing.T) {
	logg := testLogger()
	clinicID := uuid.New()

	t.Run("filters and cursor forwarded", func(t *testing.T) {
		next := &pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
		stub := &stubActivityService{
			entries: []models.ActivityEntry{{
				ID:      uuid.New(),
				Type:    enums.ActivityTypePaymentSuccess,
				UserID:  uuid.New(),
				Message: "payment received",
			}},
			next: next,
		}

		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()})
		target := "/api/admin/v1/activity?clinicId=" + clinicID.String() + "&type=payment_success&limit=10&cursor=" + cursor
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()

		ActivityFeed(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.query == nil || stub.query.ClinicID == nil || *stub.query.ClinicID != clinicID {
			t.Fatalf("clinic filter not forwarded: %+v", stub.query)
		}
		if stub.query.Type == nil || *stub.query.Type != enums.ActivityTypePaymentSuccess {
			t.Fatalf("type filter not forwarded: %+v", stub.query)
		}
		if stub.query.Limit != 10 || stub.query.Cursor == nil {
			t.Fatalf("pagination not forwarded: %+v", stub.query)
		}

		var envelope struct {
			Data activityFeedResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(envelope.Data.Entries) != 1 {
			t.Fatalf("unexpected entries: %+v", envelope.Data.Entries)
		}
		if envelope.Data.NextCursor != pagination.EncodeCursor(*next) {
			t.Fatalf("next cursor missing from response")
		}
	})

	t.Run("invalid clinic id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/activity?clinicId=nope", nil)
		rec := httptest.NewRecorder()

		ActivityFeed(&stubActivityService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid cursor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/activity?cursor=%21%21", nil)
		rec := httptest.NewRecorder()

		ActivityFeed(&stubActivityService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/activity?type=bogus", nil)
		rec := httptest.NewRecorder()

		ActivityFeed(&stubActivityService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
