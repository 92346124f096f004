package llm

import (
	"context"
	"errors"
	"testing"

	"mnemo/internal/models"
	"mnemo/pkg/logger"
)

// mockProvider is a scriptable Provider for fallback-chain tests.
type mockProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &models.GenerateResponse{Text: m.text}, nil
}

func newTestClient() *Client {
	return NewClient(logger.New("llm_test", "", ""))
}

func TestGenerateFallsBackToNextProvider(t *testing.T) {
	a := &mockProvider{name: "gemini", err: errors.New("quota exceeded")}
	b := &mockProvider{name: "openai", text: "hello"}

	c := newTestClient()
	c.Register("gemini", a)
	c.Register("openai", b)

	resp, err := c.Generate(context.Background(), &models.GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("expected text from fallback provider, got %q", resp.Text)
	}
	if resp.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", resp.Provider)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("expected one call each, got a=%d b=%d", a.calls, b.calls)
	}
}

func TestGeneratePriorityProviderFirst(t *testing.T) {
	a := &mockProvider{name: "gemini", text: "from gemini"}
	b := &mockProvider{name: "ollama", text: "from ollama"}

	c := newTestClient()
	c.Register("gemini", a)
	c.Register("ollama", b)

	resp, err := c.Generate(context.Background(), &models.GenerateRequest{
		Prompt:           "hi",
		ProviderPriority: "ollama",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Provider != "ollama" {
		t.Errorf("priority provider should be tried first, got %q", resp.Provider)
	}
	if a.calls != 0 {
		t.Errorf("default provider should not be called, got %d calls", a.calls)
	}
}

func TestGenerateAllProvidersFail(t *testing.T) {
	lastErr := errors.New("connection refused")
	c := newTestClient()
	c.Register("gemini", &mockProvider{name: "gemini", err: errors.New("bad key")})
	c.Register("openai", &mockProvider{name: "openai", err: lastErr})

	_, err := c.Generate(context.Background(), &models.GenerateRequest{Prompt: "hi"})
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Errorf("expected ErrAllProvidersFailed, got %v", err)
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("expected wrapped last provider error, got %v", err)
	}
}

func TestGenerateNoProviders(t *testing.T) {
	c := newTestClient()
	_, err := c.Generate(context.Background(), &models.GenerateRequest{Prompt: "hi"})
	if !errors.Is(err, ErrNoProviders) {
		t.Errorf("expected ErrNoProviders, got %v", err)
	}
}

func TestGenerateCancelledContextStopsChain(t *testing.T) {
	a := &mockProvider{name: "gemini", err: errors.New("slow")}
	b := &mockProvider{name: "openai", text: "never"}

	c := newTestClient()
	c.Register("gemini", a)
	c.Register("openai", b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, &models.GenerateRequest{Prompt: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if a.calls != 0 || b.calls != 0 {
		t.Errorf("cancelled context must not reach providers, got a=%d b=%d", a.calls, b.calls)
	}
}

func TestSetOrder(t *testing.T) {
	a := &mockProvider{name: "gemini", text: "from gemini"}
	b := &mockProvider{name: "ollama", text: "from ollama"}

	c := newTestClient()
	c.Register("gemini", a)
	c.Register("ollama", b)
	c.SetOrder([]string{"ollama", "gemini"})

	resp, err := c.Generate(context.Background(), &models.GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Provider != "ollama" {
		t.Errorf("expected reordered provider 'ollama', got %q", resp.Provider)
	}
}

func TestCallOrderSkipsUnregistered(t *testing.T) {
	c := newTestClient()
	c.Register("openai", &mockProvider{name: "openai", text: "x"})

	order := c.callOrder("gemini")
	if len(order) != 1 || order[0] != "openai" {
		t.Errorf("expected only registered providers in order, got %v", order)
	}
}
