package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/api/responses"
	"github.com/carebridgehealth/carebridge-backend/internal/activity"
	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
	"github.com/carebridgehealth/carebridge-backend/pkg/pagination"
)

type activityEntryDTO struct {
	ID        uuid.UUID          `json:"id"`
	Type      enums.ActivityType `json:"type"`
	UserID    uuid.UUID          `json:"userId"`
	ClinicID  *uuid.UUID         `json:"clinicId,omitempty"`
	Message   string             `json:"message"`
	Details   json.RawMessage    `json:"details,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

type activityFeedResponse struct {
	Entries    []activityEntryDTO `json:"entries"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

func newActivityEntryDTO(entry *models.ActivityEntry) activityEntryDTO {
	return activityEntryDTO{
		ID:        entry.ID,
		Type:      entry.Type,
		UserID:    entry.UserID,
		ClinicID:  entry.ClinicID,
		Message:   entry.Message,
		Details:   entry.Details,
		CreatedAt: entry.CreatedAt,
	}
}

// ActivityFeed lists the newest-first activity feed. Query params: clinicId
// and type narrow the feed, limit and cursor page through it.
func ActivityFeed(svc activity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query, err := parseActivityQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, next, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activity"))
			return
		}

		resp := activityFeedResponse{Entries: make([]activityEntryDTO, 0, len(entries))}
		for i := range entries {
			resp.Entries = append(resp.Entries, newActivityEntryDTO(&entries[i]))
		}
		if next != nil {
			resp.NextCursor = pagination.EncodeCursor(*next)
		}

		responses.WriteSuccess(w, resp)
	}
}

func parseActivityQuery(r *http.Request) (activity.ListQuery, error) {
	var query activity.ListQuery
	values := r.URL.Query()

	if raw := values.Get("clinicId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return query, pkgerrors.New(pkgerrors.CodeValidation, "invalid clinic id")
		}
		query.ClinicID = &id
	}

	if raw := values.Get("type"); raw != "" {
		entryType := enums.ActivityType(raw)
		if !entryType.IsValid() {
			return query, pkgerrors.New(pkgerrors.CodeValidation, "invalid activity type")
		}
		query.Type = &entryType
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return query, pkgerrors.New(pkgerrors.CodeValidation, "invalid limit")
		}
		query.Limit = limit
	}

	cursor, err := pagination.ParseCursor(values.Get("cursor"))
	if err != nil {
		return query, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor

	return query, nil
}
