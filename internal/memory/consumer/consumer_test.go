package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"mnemo/internal/models"
	"mnemo/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// fakeProcessor records the batches it receives.
type fakeProcessor struct {
	maxTurns int
	batches  [][]models.Turn
	sessions []string
	agents   []string
}

func (f *fakeProcessor) ProcessBatch(ctx context.Context, agentID, sessionID string, turns []models.Turn) error {
	f.agents = append(f.agents, agentID)
	f.sessions = append(f.sessions, sessionID)
	f.batches = append(f.batches, turns)
	return nil
}

func (f *fakeProcessor) MaxBatchTurns() int { return f.maxTurns }

func newTestConsumer(maxTurns int) (*Consumer, *fakeProcessor) {
	proc := &fakeProcessor{maxTurns: maxTurns}
	c := New(nil, proc, logger.New("consumer_test", "", ""))
	return c, proc
}

func turnMsg(t *testing.T, agentID, sessionID, content string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(turnMessage{
		AgentID:   agentID,
		SessionID: sessionID,
		Role:      "user",
		Content:   content,
	})
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}
	return kafka.Message{Value: payload}
}

func TestHandleMessageBuffersUntilFull(t *testing.T) {
	c, proc := newTestConsumer(3)
	ctx := context.Background()

	c.handleMessage(ctx, turnMsg(t, "agent-1", "s1", "first"))
	c.handleMessage(ctx, turnMsg(t, "agent-1", "s1", "second"))
	if len(proc.batches) != 0 {
		t.Fatalf("batch flushed too early after %d messages", 2)
	}

	c.handleMessage(ctx, turnMsg(t, "agent-1", "s1", "third"))
	if len(proc.batches) != 1 {
		t.Fatalf("expected 1 flushed batch, got %d", len(proc.batches))
	}
	if len(proc.batches[0]) != 3 {
		t.Errorf("expected 3 turns in the batch, got %d", len(proc.batches[0]))
	}
	if proc.sessions[0] != "s1" || proc.agents[0] != "agent-1" {
		t.Errorf("wrong routing: session=%q agent=%q", proc.sessions[0], proc.agents[0])
	}
}

func TestHandleMessageKeepsSessionsSeparate(t *testing.T) {
	c, proc := newTestConsumer(2)
	ctx := context.Background()

	c.handleMessage(ctx, turnMsg(t, "agent-1", "s1", "a"))
	c.handleMessage(ctx, turnMsg(t, "agent-2", "s2", "b"))
	if len(proc.batches) != 0 {
		t.Fatal("no session has reached the ceiling yet")
	}

	c.handleMessage(ctx, turnMsg(t, "agent-2", "s2", "c"))
	if len(proc.batches) != 1 {
		t.Fatalf("expected only s2 to flush, got %d batches", len(proc.batches))
	}
	if proc.sessions[0] != "s2" {
		t.Errorf("expected session s2 to flush, got %q", proc.sessions[0])
	}
}

func TestHandleMessageSkipsMalformed(t *testing.T) {
	c, proc := newTestConsumer(1)
	ctx := context.Background()

	c.handleMessage(ctx, kafka.Message{Value: []byte("{broken")})
	c.handleMessage(ctx, kafka.Message{Value: []byte(`{"session_id": "", "content": "x"}`)})
	c.handleMessage(ctx, kafka.Message{Value: []byte(`{"session_id": "s1", "content": ""}`)})

	if len(proc.batches) != 0 {
		t.Errorf("malformed messages must not produce batches, got %d", len(proc.batches))
	}
}

func TestFlushAllRespectsMinimum(t *testing.T) {
	c, proc := newTestConsumer(10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.handleMessage(ctx, turnMsg(t, "agent-1", "s1", fmt.Sprintf("turn %d", i)))
	}
	for i := 0; i < 2; i++ {
		c.handleMessage(ctx, turnMsg(t, "agent-1", "s2", fmt.Sprintf("turn %d", i)))
	}

	c.flushAll(ctx, 5)
	if len(proc.batches) != 1 {
		t.Fatalf("only s1 holds enough turns, got %d batches", len(proc.batches))
	}
	if proc.sessions[0] != "s1" {
		t.Errorf("expected s1 to flush, got %q", proc.sessions[0])
	}

	// A drain with minimum 1 flushes the rest.
	c.flushAll(ctx, 1)
	if len(proc.batches) != 2 {
		t.Fatalf("expected the drain to flush s2, got %d batches", len(proc.batches))
	}
}
