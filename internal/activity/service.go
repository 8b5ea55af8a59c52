package activity

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
	"github.com/carebridgehealth/carebridge-backend/pkg/pagination"
)

// Service records feed entries and fans them out to dashboard consumers.
type Service interface {
	// Record appends a feed entry. Pass the reconciler's transaction handle so
	// the entry commits or rolls back with the state change it describes.
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.ActivityEntry, error)
	List(ctx context.Context, query ListQuery) ([]models.ActivityEntry, *pagination.Cursor, error)
}

// RecordInput captures the immutable data a feed entry requires.
type RecordInput struct {
	Type     enums.ActivityType
	UserID   uuid.UUID
	ClinicID *uuid.UUID
	Message  string
	Details  map[string]any
}

// Publisher is the slice of the Pub/Sub publisher the service needs.
type Publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

type service struct {
	repo      Repository
	publisher Publisher
	logg      *logger.Logger
}

// NewService wires an activity service. The publisher is optional; without it
// entries are persisted but not fanned out.
func NewService(repo Repository, publisher Publisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	return &service{repo: repo, publisher: publisher, logg: logg}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.ActivityEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid activity type %q", input.Type)
	}
	if input.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	entry := &models.ActivityEntry{
		Type:     input.Type,
		UserID:   input.UserID,
		ClinicID: input.ClinicID,
		Message:  input.Message,
	}
	if input.Details != nil {
		data, err := json.Marshal(input.Details)
		if err != nil {
			return nil, fmt.Errorf("encode details: %w", err)
		}
		entry.Details = data
	}

	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}

	s.fanOut(ctx, entry)
	return entry, nil
}

// fanOut publishes the entry for realtime consumers. Best effort: the row is
// already committed (or will commit with the caller's tx), so a publish
// failure only degrades dashboard freshness.
func (s *service) fanOut(ctx context.Context, entry *models.ActivityEntry) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "activity.fanout.encode", err)
		}
		return
	}

	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"type": string(entry.Type),
		},
	})

	// Wait off the request path; the publish outcome only affects logging.
	go func() {
		if _, err := result.Get(context.WithoutCancel(ctx)); err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "activity_id", entry.ID.String()), "activity.fanout.publish", err)
			}
		}
	}()
}

func (s *service) List(ctx context.Context, query ListQuery) ([]models.ActivityEntry, *pagination.Cursor, error) {
	return s.repo.List(ctx, query)
}
