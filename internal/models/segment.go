package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Turn is a single raw conversational turn awaiting segmentation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// TopicSegment is a coherent topic extracted from a batch of turns. The
// certainty and impact fields feed the CIAR scoring of any facts promoted
// from the segment.
type TopicSegment struct {
	SegmentID        string                 `json:"segment_id"`
	Topic            string                 `json:"topic"`
	Summary          string                 `json:"summary"`
	KeyPoints        []string               `json:"key_points"`
	TurnIndices      []int                  `json:"turn_indices"`
	Certainty        float64                `json:"certainty"`
	Impact           float64                `json:"impact"`
	ParticipantCount int                    `json:"participant_count"`
	MessageCount     int                    `json:"message_count"`
	TemporalContext  map[string]interface{} `json:"temporal_context,omitempty"`
}

// NewTopicSegment returns a segment with a fresh id and the default
// certainty/impact priors (0.7 / 0.5).
func NewTopicSegment(topic, summary string) *TopicSegment {
	return &TopicSegment{
		SegmentID: uuid.New().String(),
		Topic:     topic,
		Summary:   summary,
		Certainty: 0.7,
		Impact:    0.5,
	}
}

// Validate checks the segment against its constraints. batchSize is the
// number of turns in the batch the segment was extracted from; every turn
// index must point into that batch.
func (s *TopicSegment) Validate(batchSize int) error {
	if n := len(s.Topic); n < 3 || n > 200 {
		return fmt.Errorf("topic length must be 3-200, got %d", n)
	}
	if n := len(s.Summary); n < 10 || n > 2000 {
		return fmt.Errorf("summary length must be 10-2000, got %d", n)
	}
	if len(s.KeyPoints) > 20 {
		return fmt.Errorf("key_points must have at most 20 entries, got %d", len(s.KeyPoints))
	}
	if err := inUnitRange("certainty", s.Certainty); err != nil {
		return err
	}
	if err := inUnitRange("impact", s.Impact); err != nil {
		return err
	}
	if s.ParticipantCount < 0 {
		return fmt.Errorf("participant_count must be >= 0, got %d", s.ParticipantCount)
	}
	if s.MessageCount < 0 {
		return fmt.Errorf("message_count must be >= 0, got %d", s.MessageCount)
	}
	for _, idx := range s.TurnIndices {
		if idx < 0 || idx >= batchSize {
			return fmt.Errorf("turn index %d out of range for batch of %d turns", idx, batchSize)
		}
	}
	return nil
}
