package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	kafkadb "mnemo/internal/database/kafka"
	"mnemo/internal/models"
	"mnemo/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// turnMessage is the wire shape of one conversation turn on the ingest topic.
type turnMessage struct {
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchProcessor is the slice of the memory service the consumer feeds.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, agentID, sessionID string, turns []models.Turn) error
	MaxBatchTurns() int
}

// sessionBuffer accumulates turns for one session until a flush.
type sessionBuffer struct {
	agentID string
	turns   []models.Turn
}

// Consumer reads conversation turns from Kafka, groups them by session, and
// hands full batches to the memory service. Flushing happens when a session
// buffer reaches the segmenter's batch ceiling or on the periodic flush tick.
type Consumer struct {
	client        *kafkadb.KafkaClient
	service       BatchProcessor
	logger        *logger.Logger
	flushInterval time.Duration

	mu      sync.Mutex
	buffers map[string]*sessionBuffer

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a consumer over an initialized Kafka client.
func New(client *kafkadb.KafkaClient, svc BatchProcessor, log *logger.Logger) *Consumer {
	return &Consumer{
		client:        client,
		service:       svc,
		logger:        log,
		flushInterval: 30 * time.Second,
		buffers:       make(map[string]*sessionBuffer),
	}
}

// Start launches the fetch loop and the periodic flush loop. It returns
// immediately; call Stop to drain and shut down.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go c.fetchLoop(ctx)
	go c.flushLoop(ctx)

	c.logger.Info("memory consumer started")
}

// Stop cancels the loops, waits for them, and flushes whatever is buffered.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	// Final drain uses a fresh context since the loop context is gone.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c.flushAll(ctx, 1)

	c.logger.Info("memory consumer stopped")
}

func (c *Consumer) fetchLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		msg, err := c.client.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "kafka_error"}).
				Error("failed to fetch message, retrying")
			time.Sleep(time.Second)
			continue
		}

		c.handleMessage(ctx, msg)

		if err := c.client.Reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "kafka_error"}).
				Error("failed to commit message offset")
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var turn turnMessage
	if err := json.Unmarshal(msg.Value, &turn); err != nil {
		c.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "decode_error"}).
			Warn("skipping malformed turn message")
		return
	}
	if turn.SessionID == "" || turn.Content == "" {
		c.logger.Warn("skipping turn message without session_id or content")
		return
	}

	c.mu.Lock()
	buf, ok := c.buffers[turn.SessionID]
	if !ok {
		buf = &sessionBuffer{agentID: turn.AgentID}
		c.buffers[turn.SessionID] = buf
	}
	buf.turns = append(buf.turns, models.Turn{
		Role:      turn.Role,
		Content:   turn.Content,
		Timestamp: turn.Timestamp,
	})
	full := len(buf.turns) >= c.service.MaxBatchTurns()
	c.mu.Unlock()

	if full {
		c.flushSession(ctx, turn.SessionID)
	}
}

func (c *Consumer) flushLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Periodic flushes only push batches big enough to segment;
			// smaller buffers keep accumulating.
			c.flushAll(ctx, c.service.MaxBatchTurns()/2)
		}
	}
}

// flushSession pulls one session's buffer and runs it through the service.
func (c *Consumer) flushSession(ctx context.Context, sessionID string) {
	c.mu.Lock()
	buf, ok := c.buffers[sessionID]
	if !ok || len(buf.turns) == 0 {
		c.mu.Unlock()
		return
	}
	delete(c.buffers, sessionID)
	c.mu.Unlock()

	if err := c.service.ProcessBatch(ctx, buf.agentID, sessionID, buf.turns); err != nil {
		c.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "processing_error"}).
			Error("failed to process turn batch for session " + sessionID)
	}
}

// flushAll flushes every buffered session holding at least minTurns turns.
func (c *Consumer) flushAll(ctx context.Context, minTurns int) {
	c.mu.Lock()
	var ready []string
	for sessionID, buf := range c.buffers {
		if len(buf.turns) >= minTurns {
			ready = append(ready, sessionID)
		}
	}
	c.mu.Unlock()

	for _, sessionID := range ready {
		c.flushSession(ctx, sessionID)
	}
}
