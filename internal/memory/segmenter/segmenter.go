package segmenter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mnemo/internal/config"
	"mnemo/internal/models"
	"mnemo/pkg/logger"
)

const defaultSegmentationPrompt = `You are an expert at analyzing conversations between users and agents.

Your task: Segment a batch of conversation turns into coherent topics.

Instructions:
1. Identify distinct topics or themes discussed in the conversation
2. Group related turns into segments
3. For each segment, extract:
   - topic: Brief descriptive label (3-50 words)
   - summary: Concise narrative of what was discussed (50-500 words)
   - key_points: List of 3-10 significant points from the segment
   - turn_indices: Indices (0-based) of turns belonging to this segment
   - certainty: Your confidence in this segmentation (0.0-1.0)
   - impact: Estimated importance/urgency of this topic (0.0-1.0)
   - participant_count: Number of distinct speakers
   - message_count: Number of messages in segment
   - temporal_context: Any dates, times, deadlines mentioned

Guidelines:
- Compress noise: Skip greetings, acknowledgments, filler
- Merge related sub-topics into one segment
- Assign high impact (0.7-1.0) to: urgent requests, critical alerts, decisions, commitments
- Assign medium impact (0.4-0.7) to: informational queries, status updates
- Assign low impact (0.0-0.4) to: casual discussion, small talk
- Certainty based on: clarity of topic, coherence of discussion

Return JSON: {"segments": [list of segment objects]}`

const (
	// DefaultModel is the fast model used for segmentation calls.
	DefaultModel    = "gemini-2.5-flash"
	DefaultMinTurns = 10
	DefaultMaxTurns = 20

	// segmentationTemperature keeps the structured output consistent.
	segmentationTemperature = 0.3
)

// Generator is the slice of the LLM client the segmenter depends on.
type Generator interface {
	Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)
}

// Segmenter compresses batches of raw conversational turns into scored topic
// segments with a single generation call per batch. Instances hold no
// per-call state; concurrent SegmentTurns invocations are safe.
type Segmenter struct {
	llm      Generator
	model    string
	minTurns int
	maxTurns int
	logger   *logger.Logger
}

// New creates a segmenter. Zero config values fall back to the defaults
// (model gemini-2.5-flash, 10-20 turns per batch).
func New(llm Generator, cfg config.SegmenterConfig, log *logger.Logger) *Segmenter {
	s := &Segmenter{
		llm:      llm,
		model:    cfg.Model,
		minTurns: cfg.MinTurns,
		maxTurns: cfg.MaxTurns,
		logger:   log,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.minTurns <= 0 {
		s.minTurns = DefaultMinTurns
	}
	if s.maxTurns <= 0 {
		s.maxTurns = DefaultMaxTurns
	}
	return s
}

// MaxTurns reports the configured batch ceiling.
func (s *Segmenter) MaxTurns() int { return s.maxTurns }

// SegmentTurns segments a batch of turns into coherent topics. An empty
// batch yields nil; a batch below the minimum turn count is skipped (too
// small to segment usefully). Batches above the maximum keep only the most
// recent turns. Any LLM, parsing, or validation failure degrades to a single
// fallback segment; a well-formed batch never produces an error.
func (s *Segmenter) SegmentTurns(ctx context.Context, turns []models.Turn, metadata map[string]interface{}) []*models.TopicSegment {
	if len(turns) == 0 {
		return nil
	}

	if len(turns) < s.minTurns {
		s.logger.WithPayload(map[string]interface{}{"turns": len(turns), "min_turns": s.minTurns}).
			Info("turn count below minimum, skipping segmentation")
		return nil
	}

	if len(turns) > s.maxTurns {
		s.logger.WithPayload(map[string]interface{}{"turns": len(turns), "max_turns": s.maxTurns}).
			Warn("turn count exceeds maximum, truncating to most recent")
		turns = turns[len(turns)-s.maxTurns:]
	}

	segments, err := s.segmentWithLLM(ctx, turns)
	if err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "segmentation_error"}).
			Error("topic segmentation failed, using fallback segment")
		return []*models.TopicSegment{s.fallbackSegment(turns)}
	}
	return segments
}

func (s *Segmenter) segmentWithLLM(ctx context.Context, turns []models.Turn) ([]*models.TopicSegment, error) {
	prompt := fmt.Sprintf("%s\n\nConversation to segment:\n\n%s\n\nNow segment this conversation into coherent topics. Return JSON only.",
		defaultSegmentationPrompt, formatConversation(turns))

	resp, err := s.llm.Generate(ctx, &models.GenerateRequest{
		Prompt: prompt,
		Model:  s.model,
		Params: map[string]interface{}{"temperature": segmentationTemperature},
	})
	if err != nil {
		return nil, fmt.Errorf("generation call failed: %w", err)
	}

	var parsed struct {
		Segments []rawSegment `json:"segments"`
	}
	content := stripCodeFence(resp.Text)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON from LLM: %w", err)
	}

	if len(parsed.Segments) == 0 {
		return nil, fmt.Errorf("LLM returned no segments")
	}

	var segments []*models.TopicSegment
	for _, rs := range parsed.Segments {
		segment := rs.toSegment()
		if err := segment.Validate(len(turns)); err != nil {
			// A bad candidate never aborts the batch.
			s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "validation_error"}).
				Warn("skipping invalid segment from LLM")
			continue
		}
		segments = append(segments, segment)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("no valid segments after validation")
	}
	return segments, nil
}

// rawSegment is the candidate shape parsed from the LLM response before
// validation. Missing certainty/impact fall back to the segment priors.
type rawSegment struct {
	Topic            string                 `json:"topic"`
	Summary          string                 `json:"summary"`
	KeyPoints        []string               `json:"key_points"`
	TurnIndices      []int                  `json:"turn_indices"`
	Certainty        *float64               `json:"certainty"`
	Impact           *float64               `json:"impact"`
	ParticipantCount int                    `json:"participant_count"`
	MessageCount     int                    `json:"message_count"`
	TemporalContext  map[string]interface{} `json:"temporal_context"`
}

func (rs *rawSegment) toSegment() *models.TopicSegment {
	segment := models.NewTopicSegment(rs.Topic, rs.Summary)
	segment.KeyPoints = rs.KeyPoints
	segment.TurnIndices = rs.TurnIndices
	segment.ParticipantCount = rs.ParticipantCount
	segment.MessageCount = rs.MessageCount
	segment.TemporalContext = rs.TemporalContext
	if rs.Certainty != nil {
		segment.Certainty = *rs.Certainty
	}
	if rs.Impact != nil {
		segment.Impact = *rs.Impact
	}
	return segment
}

// formatConversation renders turns as an indexed transcript:
// [idx] Role (timestamp): content
// Indices are renumbered from 0 over the retained subset.
func formatConversation(turns []models.Turn) string {
	var sb strings.Builder
	for idx, turn := range turns {
		role := turn.Role
		if role == "" {
			role = "unknown"
		}
		role = strings.ToUpper(role[:1]) + role[1:]

		ts := ""
		if !turn.Timestamp.IsZero() {
			ts = fmt.Sprintf(" (%s)", turn.Timestamp.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "[%d] %s%s: %s\n", idx, role, ts, turn.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// stripCodeFence removes surrounding markdown code-fence markers that models
// sometimes wrap JSON output in.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = content[7:]
	} else if strings.HasPrefix(content, "```") {
		content = content[3:]
	}
	if strings.HasSuffix(content, "```") {
		content = content[:len(content)-3]
	}
	return strings.TrimSpace(content)
}

// fallbackSegment covers the whole retained batch with low certainty so the
// downstream pipeline always receives at least one segment per eligible
// batch.
func (s *Segmenter) fallbackSegment(turns []models.Turn) *models.TopicSegment {
	participants := make(map[string]struct{})
	for _, turn := range turns {
		role := turn.Role
		if role == "" {
			role = "unknown"
		}
		participants[role] = struct{}{}
	}

	indices := make([]int, len(turns))
	for i := range turns {
		indices[i] = i
	}

	segment := models.NewTopicSegment(
		"General Discussion",
		fmt.Sprintf("Conversation with %d turns discussing various topics.", len(turns)),
	)
	segment.KeyPoints = []string{"Fallback segmentation due to LLM failure"}
	segment.TurnIndices = indices
	segment.Certainty = 0.3
	segment.Impact = 0.5
	segment.ParticipantCount = len(participants)
	segment.MessageCount = len(turns)
	segment.TemporalContext = map[string]interface{}{}
	return segment
}
