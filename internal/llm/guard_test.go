package llm

import (
	"context"
	"errors"
	"testing"

	"mnemo/internal/models"
)

func TestGuardOpensAfterConsecutiveFailures(t *testing.T) {
	g := newGuard()

	for i := 0; i < defaultFailureThreshold; i++ {
		if !g.allow() {
			t.Fatalf("guard should allow call %d while closed", i)
		}
		g.record(false)
	}

	if g.allow() {
		t.Error("guard should block once the failure threshold is hit")
	}
}

func TestGuardClosesOnSuccess(t *testing.T) {
	g := newGuard()

	g.record(false)
	g.record(false)
	g.record(true)
	g.record(false)
	g.record(false)
	if !g.allow() {
		t.Error("a success should reset the failure count")
	}
}

func TestGuardHalfOpenReopensOnFailure(t *testing.T) {
	g := newGuard()
	for i := 0; i < defaultFailureThreshold; i++ {
		g.record(false)
	}

	// Force the cooldown to elapse.
	g.mu.Lock()
	g.openedAt = g.openedAt.Add(-2 * defaultCooldown)
	g.mu.Unlock()

	if !g.allow() {
		t.Fatal("guard should allow one trial call after the cooldown")
	}
	g.record(false)
	if g.allow() {
		t.Error("a failed trial call should reopen the breaker immediately")
	}
}

func TestGuardRateLimitExhaustsBurst(t *testing.T) {
	g := newGuard()
	// One call per hour with a burst of two: the third call must block.
	g.setRateLimit(1.0/3600.0, 2)

	if !g.allow() || !g.allow() {
		t.Fatal("burst capacity should cover the first two calls")
	}
	if g.allow() {
		t.Error("third call should exceed the rate budget")
	}
}

func TestGenerateSkipsTrippedProvider(t *testing.T) {
	failing := &mockProvider{name: "gemini", err: errors.New("down")}
	healthy := &mockProvider{name: "openai", text: "ok"}

	c := newTestClient()
	c.Register("gemini", failing)
	c.Register("openai", healthy)

	// Trip the gemini breaker.
	for i := 0; i < defaultFailureThreshold; i++ {
		if _, err := c.Generate(context.Background(), &models.GenerateRequest{Prompt: "hi"}); err != nil {
			t.Fatalf("fallback should still succeed: %v", err)
		}
	}

	before := failing.calls
	if _, err := c.Generate(context.Background(), &models.GenerateRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if failing.calls != before {
		t.Errorf("tripped provider should be skipped, got %d extra calls", failing.calls-before)
	}
}

func TestGenerateRateLimitedProviderFallsThrough(t *testing.T) {
	limited := &mockProvider{name: "gemini", text: "from gemini"}
	backup := &mockProvider{name: "openai", text: "from openai"}

	c := newTestClient()
	c.Register("gemini", limited)
	c.Register("openai", backup)
	c.SetRateLimit("gemini", 1.0/3600.0, 1)

	resp, err := c.Generate(context.Background(), &models.GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Provider != "gemini" {
		t.Fatalf("first call should use gemini, got %q", resp.Provider)
	}

	resp, err = c.Generate(context.Background(), &models.GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Provider != "openai" {
		t.Errorf("rate-limited provider should fall through, got %q", resp.Provider)
	}
}
