package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mnemo/internal/models"
	"mnemo/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, logger.New("state_test", "", "")), mr
}

func TestPersonalStateRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	st := models.NewPersonalMemoryState("agent-1")
	st.CurrentTaskID = "task-42"
	st.Scratchpad["note"] = "remember the deadline"
	firstStamp := st.LastUpdated

	time.Sleep(time.Millisecond)
	if err := store.UpdatePersonalState(ctx, st); err != nil {
		t.Fatalf("UpdatePersonalState() error = %v", err)
	}
	if !st.LastUpdated.After(firstStamp) {
		t.Error("update should advance last_updated")
	}

	got, err := store.GetPersonalState(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetPersonalState() error = %v", err)
	}
	if got.CurrentTaskID != "task-42" {
		t.Errorf("expected task-42, got %q", got.CurrentTaskID)
	}
	if got.Scratchpad["note"] != "remember the deadline" {
		t.Errorf("scratchpad did not survive the round trip: %v", got.Scratchpad)
	}
}

func TestPersonalStateDefaultOnMissing(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.GetPersonalState(context.Background(), "new-agent")
	if err != nil {
		t.Fatalf("GetPersonalState() error = %v", err)
	}
	if got.AgentID != "new-agent" {
		t.Errorf("expected fresh state for the agent, got %q", got.AgentID)
	}
	if got.Scratchpad == nil || got.PromotionCandidates == nil {
		t.Error("fresh state must have initialized maps")
	}
}

func TestPersonalStateCorruptedBytesReturnFresh(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Set("personal_state:agent-1", "{not json")

	got, err := store.GetPersonalState(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("corrupted personal state should not error, got %v", err)
	}
	if got.AgentID != "agent-1" || len(got.Scratchpad) != 0 {
		t.Error("corrupted personal state should be replaced with a fresh default")
	}
}

func TestSharedStateNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetSharedState(context.Background(), "evt_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSharedStateCorrupted(t *testing.T) {
	store, mr := newTestStore(t)

	mr.Set("shared_state:evt_1", "{broken")
	if _, err := store.GetSharedState(context.Background(), "evt_1"); !errors.Is(err, ErrCorruptedData) {
		t.Errorf("expected ErrCorruptedData for bad JSON, got %v", err)
	}

	// Parseable JSON that fails schema validation is corruption too.
	mr.Set("shared_state:evt_2", `{"event_id": "evt_2", "status": "bogus"}`)
	if _, err := store.GetSharedState(context.Background(), "evt_2"); !errors.Is(err, ErrCorruptedData) {
		t.Errorf("expected ErrCorruptedData for invalid schema, got %v", err)
	}
}

func TestSharedStateRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	st := models.NewSharedWorkspaceState()
	st.ParticipatingAgents = []string{"agent-a"}
	st.SharedData["topic"] = "incident response"

	if err := store.UpdateSharedState(ctx, st); err != nil {
		t.Fatalf("UpdateSharedState() error = %v", err)
	}

	got, err := store.GetSharedState(ctx, st.EventID)
	if err != nil {
		t.Fatalf("GetSharedState() error = %v", err)
	}
	if got.Status != models.EventStatusActive {
		t.Errorf("expected active status, got %q", got.Status)
	}
	if got.SharedData["topic"] != "incident response" {
		t.Errorf("shared data did not survive the round trip: %v", got.SharedData)
	}
}

func TestUpdateSharedStatePublishes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	st := models.NewSharedWorkspaceState()
	st.ParticipatingAgents = []string{"agent-a"}

	sub := store.Subscribe(ctx, st.EventID)
	defer sub.Close()
	// Wait for the subscription to be established before writing.
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := store.UpdateSharedState(ctx, st); err != nil {
		t.Fatalf("UpdateSharedState() error = %v", err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	if err != nil {
		t.Fatalf("expected an update notification: %v", err)
	}

	var summary models.UpdateSummary
	if err := json.Unmarshal([]byte(msg.Payload), &summary); err != nil {
		t.Fatalf("notification payload is not valid JSON: %v", err)
	}
	if summary.EventID != st.EventID {
		t.Errorf("expected event %q, got %q", st.EventID, summary.EventID)
	}
	if summary.Status != models.EventStatusActive {
		t.Errorf("expected active status, got %q", summary.Status)
	}
	if summary.LastUpdatedBy != "agent-a" {
		t.Errorf("expected last_updated_by 'agent-a', got %q", summary.LastUpdatedBy)
	}
}

func TestLastWriterWins(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	st := models.NewSharedWorkspaceState()
	if err := store.UpdateSharedState(ctx, st); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	second := *st
	second.SharedData = map[string]interface{}{"owner": "agent-b"}
	second.Status = models.EventStatusResolved
	if err := store.UpdateSharedState(ctx, &second); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	got, err := store.GetSharedState(ctx, st.EventID)
	if err != nil {
		t.Fatalf("GetSharedState() error = %v", err)
	}
	if got.Status != models.EventStatusResolved || got.SharedData["owner"] != "agent-b" {
		t.Error("later write should fully replace the document")
	}
}
