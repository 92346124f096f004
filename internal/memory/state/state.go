package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mnemo/internal/models"
	"mnemo/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// Key namespaces. They must not collide with any other key space on the
// shared Redis backend.
const (
	personalKeyPrefix = "personal_state:"
	sharedKeyPrefix   = "shared_state:"
	channelKeyPrefix  = "channel:shared_state:"
)

var (
	// ErrNotFound is returned when a shared workspace event does not exist.
	ErrNotFound = errors.New("shared workspace not found")
	// ErrCorruptedData is returned when stored shared state fails schema
	// validation. It is distinct from ErrNotFound because multiple agents
	// may depend on the event; corruption is never silently replaced.
	ErrCorruptedData = errors.New("corrupted shared workspace data")
)

// Store is the tiered state store: private per-agent scratch state and
// shared multi-agent workspace state, both persisted as whole JSON documents
// with last-writer-wins overwrite semantics. There is no conditional-write
// primitive; callers needing read-modify-write atomicity must serialize
// writes externally.
type Store struct {
	client *redis.Client
	logger *logger.Logger
}

// NewStore creates a state store on an already connected Redis client.
func NewStore(client *redis.Client, log *logger.Logger) *Store {
	return &Store{client: client, logger: log}
}

func personalKey(agentID string) string { return personalKeyPrefix + agentID }
func sharedKey(eventID string) string   { return sharedKeyPrefix + eventID }
func channelKey(eventID string) string  { return channelKeyPrefix + eventID }

// GetPersonalState returns the stored state for an agent, or a fresh default
// state when none exists. Corrupted stored bytes are logged and replaced
// with a fresh default rather than surfaced: losing personal scratch state
// is tolerated, failing an agent over it is not.
func (s *Store) GetPersonalState(ctx context.Context, agentID string) (*models.PersonalMemoryState, error) {
	raw, err := s.client.Get(ctx, personalKey(agentID)).Result()
	if err == redis.Nil {
		return models.NewPersonalMemoryState(agentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read personal state: %w", err)
	}

	var st models.PersonalMemoryState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "validation_error"}).
			Error(fmt.Sprintf("corrupted personal state for agent '%s', returning fresh state", agentID))
		return models.NewPersonalMemoryState(agentID), nil
	}
	if err := st.Validate(); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "validation_error"}).
			Error(fmt.Sprintf("corrupted personal state for agent '%s', returning fresh state", agentID))
		return models.NewPersonalMemoryState(agentID), nil
	}
	if st.Scratchpad == nil {
		st.Scratchpad = map[string]interface{}{}
	}
	if st.PromotionCandidates == nil {
		st.PromotionCandidates = map[string]interface{}{}
	}
	return &st, nil
}

// UpdatePersonalState stamps last_updated and overwrites the whole document
// under the agent's key. States are never partially patched.
func (s *Store) UpdatePersonalState(ctx context.Context, st *models.PersonalMemoryState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid personal state: %w", err)
	}
	st.LastUpdated = time.Now().UTC()
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to serialize personal state: %w", err)
	}
	if err := s.client.Set(ctx, personalKey(st.AgentID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write personal state: %w", err)
	}
	return nil
}

// GetSharedState returns the state of a collaborative event. Unlike personal
// state, a missing event is an error (ErrNotFound), and corruption is
// surfaced as ErrCorruptedData.
func (s *Store) GetSharedState(ctx context.Context, eventID string) (*models.SharedWorkspaceState, error) {
	raw, err := s.client.Get(ctx, sharedKey(eventID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: event_id %s", ErrNotFound, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read shared state: %w", err)
	}

	var st models.SharedWorkspaceState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("%w: event_id %s: %v", ErrCorruptedData, eventID, err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("%w: event_id %s: %v", ErrCorruptedData, eventID, err)
	}
	if st.SharedData == nil {
		st.SharedData = map[string]interface{}{}
	}
	return &st, nil
}

// UpdateSharedState stamps last_updated, overwrites the event document, then
// publishes an update notification. The publish is not transactional with
// the write: a crash in between leaves persisted state with no notification,
// so consumers must treat notifications as liveness hints and reconcile via
// GetSharedState.
func (s *Store) UpdateSharedState(ctx context.Context, st *models.SharedWorkspaceState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid shared state: %w", err)
	}
	st.LastUpdated = time.Now().UTC()
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to serialize shared state: %w", err)
	}
	if err := s.client.Set(ctx, sharedKey(st.EventID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write shared state: %w", err)
	}

	summary := models.UpdateSummary{
		EventID:       st.EventID,
		Status:        st.Status,
		LastUpdatedBy: st.LastUpdatedBy(),
	}
	if err := s.PublishUpdate(ctx, st.EventID, summary); err != nil {
		// Delivery is best effort; the write already succeeded.
		s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "publish_error"}).
			Warn(fmt.Sprintf("failed to publish update for event '%s'", st.EventID))
	}
	return nil
}

// PublishUpdate broadcasts a summary on the event's notification channel.
// Fire and forget: no acknowledgment, no backlog; subscribers joining later
// never see it.
func (s *Store) PublishUpdate(ctx context.Context, eventID string, summary models.UpdateSummary) error {
	message, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize update summary: %w", err)
	}
	if err := s.client.Publish(ctx, channelKey(eventID), message).Err(); err != nil {
		return fmt.Errorf("failed to publish update: %w", err)
	}
	return nil
}

// Subscribe opens a subscription on the event's notification channel. The
// caller owns the returned PubSub and must Close it.
func (s *Store) Subscribe(ctx context.Context, eventID string) *redis.PubSub {
	return s.client.Subscribe(ctx, channelKey(eventID))
}
