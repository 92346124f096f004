package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of a shared workspace event.
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusResolved  EventStatus = "resolved"
	EventStatusCancelled EventStatus = "cancelled"
)

// PersonalMemoryState is an agent's private scratchpad. The whole object is
// serialized to a single JSON document and overwritten wholesale on every
// update; it is never partially patched.
type PersonalMemoryState struct {
	AgentID             string                 `json:"agent_id"`
	CurrentTaskID       string                 `json:"current_task_id,omitempty"`
	Scratchpad          map[string]interface{} `json:"scratchpad"`
	PromotionCandidates map[string]interface{} `json:"promotion_candidates"`
	LastUpdated         time.Time              `json:"last_updated"`
}

// NewPersonalMemoryState returns the default state for an agent with no
// stored history.
func NewPersonalMemoryState(agentID string) *PersonalMemoryState {
	return &PersonalMemoryState{
		AgentID:             agentID,
		Scratchpad:          map[string]interface{}{},
		PromotionCandidates: map[string]interface{}{},
		LastUpdated:         time.Now().UTC(),
	}
}

// Validate checks the state document's required fields.
func (s *PersonalMemoryState) Validate() error {
	if s.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	return nil
}

// SharedWorkspaceState is the state of one collaborative event, jointly
// owned by all participating agents. The store enforces last-writer-wins;
// concurrent writers must coordinate externally.
type SharedWorkspaceState struct {
	EventID             string                 `json:"event_id"`
	Status              EventStatus            `json:"status"`
	SharedData          map[string]interface{} `json:"shared_data"`
	ParticipatingAgents []string               `json:"participating_agents"`
	CreatedAt           time.Time              `json:"created_at"`
	LastUpdated         time.Time              `json:"last_updated"`
}

// NewSharedWorkspaceState creates an active event with a generated id.
func NewSharedWorkspaceState() *SharedWorkspaceState {
	now := time.Now().UTC()
	return &SharedWorkspaceState{
		EventID:     "evt_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		Status:      EventStatusActive,
		SharedData:  map[string]interface{}{},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Validate checks the event document's required fields.
func (s *SharedWorkspaceState) Validate() error {
	if s.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	switch s.Status {
	case EventStatusActive, EventStatusResolved, EventStatusCancelled:
	default:
		return fmt.Errorf("unknown status: %s", s.Status)
	}
	return nil
}

// LastUpdatedBy reports the most recent contributor, or "system" when no
// agent has joined the event yet.
func (s *SharedWorkspaceState) LastUpdatedBy() string {
	if len(s.ParticipatingAgents) == 0 {
		return "system"
	}
	return s.ParticipatingAgents[len(s.ParticipatingAgents)-1]
}

// UpdateSummary is the notification payload published after every shared
// state write.
type UpdateSummary struct {
	EventID       string      `json:"event_id"`
	Status        EventStatus `json:"status"`
	LastUpdatedBy string      `json:"last_updated_by"`
}
