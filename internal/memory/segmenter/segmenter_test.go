package segmenter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mnemo/internal/config"
	"mnemo/internal/models"
	"mnemo/pkg/logger"
)

// mockGenerator is a scriptable Generator that records the last prompt.
type mockGenerator struct {
	response string
	err      error
	prompt   string
	calls    int
}

func (m *mockGenerator) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	m.calls++
	m.prompt = req.Prompt
	if m.err != nil {
		return nil, m.err
	}
	return &models.GenerateResponse{Text: m.response}, nil
}

func newTestSegmenter(gen Generator) *Segmenter {
	return New(gen, config.SegmenterConfig{}, logger.New("segmenter_test", "", ""))
}

func makeTurns(n int) []models.Turn {
	turns := make([]models.Turn, n)
	for i := range turns {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		turns[i] = models.Turn{Role: role, Content: fmt.Sprintf("turn number %d", i)}
	}
	return turns
}

const validResponse = `{"segments": [{
	"topic": "Release planning",
	"summary": "The user and assistant walked through the rollout schedule for the release.",
	"key_points": ["canary first", "full rollout friday"],
	"turn_indices": [0, 1, 2, 3],
	"certainty": 0.9,
	"impact": 0.8,
	"participant_count": 2,
	"message_count": 4
}]}`

func TestSegmentTurnsEmptyBatch(t *testing.T) {
	gen := &mockGenerator{response: validResponse}
	s := newTestSegmenter(gen)

	if got := s.SegmentTurns(context.Background(), nil, nil); got != nil {
		t.Errorf("empty batch should yield nil, got %d segments", len(got))
	}
	if gen.calls != 0 {
		t.Error("empty batch must not call the LLM")
	}
}

func TestSegmentTurnsBelowMinimum(t *testing.T) {
	gen := &mockGenerator{response: validResponse}
	s := newTestSegmenter(gen)

	if got := s.SegmentTurns(context.Background(), makeTurns(5), nil); got != nil {
		t.Errorf("batch below minimum should be skipped, got %d segments", len(got))
	}
	if gen.calls != 0 {
		t.Error("skipped batch must not call the LLM")
	}
}

func TestSegmentTurnsTruncatesToMostRecent(t *testing.T) {
	gen := &mockGenerator{response: validResponse}
	s := newTestSegmenter(gen)

	segments := s.SegmentTurns(context.Background(), makeTurns(25), nil)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}

	// Only the most recent 20 turns reach the prompt.
	if strings.Contains(gen.prompt, "turn number 4\n") {
		t.Error("truncated turns leaked into the prompt")
	}
	if !strings.Contains(gen.prompt, "turn number 24") {
		t.Error("most recent turn missing from the prompt")
	}
	if !strings.Contains(gen.prompt, "[0]") || !strings.Contains(gen.prompt, "[19]") {
		t.Error("retained turns should be renumbered from 0")
	}
}

func TestSegmentTurnsParsesValidResponse(t *testing.T) {
	gen := &mockGenerator{response: validResponse}
	s := newTestSegmenter(gen)

	segments := s.SegmentTurns(context.Background(), makeTurns(12), nil)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Topic != "Release planning" {
		t.Errorf("unexpected topic %q", seg.Topic)
	}
	if seg.Certainty != 0.9 || seg.Impact != 0.8 {
		t.Errorf("unexpected scores: certainty=%v impact=%v", seg.Certainty, seg.Impact)
	}
	if seg.SegmentID == "" {
		t.Error("segment should receive a generated id")
	}
}

func TestSegmentTurnsStripsCodeFence(t *testing.T) {
	gen := &mockGenerator{response: "```json\n" + validResponse + "\n```"}
	s := newTestSegmenter(gen)

	segments := s.SegmentTurns(context.Background(), makeTurns(12), nil)
	if len(segments) != 1 {
		t.Fatalf("fenced response should still parse, got %d segments", len(segments))
	}
}

func TestSegmentTurnsMissingScoresUsePriors(t *testing.T) {
	response := `{"segments": [{
		"topic": "General catch-up",
		"summary": "A short informal discussion about current status.",
		"turn_indices": [0, 1]
	}]}`
	gen := &mockGenerator{response: response}
	s := newTestSegmenter(gen)

	segments := s.SegmentTurns(context.Background(), makeTurns(12), nil)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Certainty != 0.7 || segments[0].Impact != 0.5 {
		t.Errorf("missing scores should fall back to priors, got certainty=%v impact=%v",
			segments[0].Certainty, segments[0].Impact)
	}
}

func TestSegmentTurnsDropsInvalidCandidates(t *testing.T) {
	response := `{"segments": [
		{"topic": "ok", "summary": "too short", "turn_indices": [0]},
		{"topic": "Valid topic here",
		 "summary": "A proper summary long enough to pass validation checks.",
		 "turn_indices": [0, 1, 2]}
	]}`
	gen := &mockGenerator{response: response}
	s := newTestSegmenter(gen)

	segments := s.SegmentTurns(context.Background(), makeTurns(12), nil)
	if len(segments) != 1 {
		t.Fatalf("expected only the valid candidate, got %d segments", len(segments))
	}
	if segments[0].Topic != "Valid topic here" {
		t.Errorf("wrong candidate survived: %q", segments[0].Topic)
	}
}

func TestSegmentTurnsFallbackOnGeneratorError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("provider down")}
	s := newTestSegmenter(gen)

	turns := makeTurns(12)
	segments := s.SegmentTurns(context.Background(), turns, nil)
	if len(segments) != 1 {
		t.Fatalf("expected exactly one fallback segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Topic != "General Discussion" {
		t.Errorf("unexpected fallback topic %q", seg.Topic)
	}
	if seg.Certainty != 0.3 || seg.Impact != 0.5 {
		t.Errorf("unexpected fallback scores: certainty=%v impact=%v", seg.Certainty, seg.Impact)
	}
	if len(seg.TurnIndices) != len(turns) {
		t.Errorf("fallback should span all retained turns, got %d indices", len(seg.TurnIndices))
	}
	if seg.ParticipantCount != 2 {
		t.Errorf("expected 2 participants, got %d", seg.ParticipantCount)
	}
	if !strings.Contains(seg.Summary, "12 turns") {
		t.Errorf("fallback summary should mention the turn count, got %q", seg.Summary)
	}
}

func TestSegmentTurnsFallbackOnMalformedJSON(t *testing.T) {
	gen := &mockGenerator{response: "I could not produce JSON, sorry."}
	s := newTestSegmenter(gen)

	segments := s.SegmentTurns(context.Background(), makeTurns(12), nil)
	if len(segments) != 1 || segments[0].Topic != "General Discussion" {
		t.Fatalf("malformed response should degrade to the fallback segment")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{}\n```", "{}"},
		{"```\n{}\n```", "{}"},
		{"{}", "{}"},
		{"  {\"a\": 1}  ", "{\"a\": 1}"},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
