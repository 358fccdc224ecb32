package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"eraforge/internal/metrics"
	"eraforge/internal/telemetry"
)

type mockClient struct {
	reply    string
	err      error
	block    bool
	lastReq  Request
	requests int
}

func (m *mockClient) Complete(ctx context.Context, req Request) (string, error) {
	m.lastReq = req
	m.requests++
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.reply, m.err
}

func newTestOracle(t *testing.T, client Client, timeout time.Duration) *Oracle {
	t.Helper()
	o, err := New(client, timeout, telemetry.Discard())
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	return o
}

func TestBuiltinPromptsLoad(t *testing.T) {
	o := newTestOracle(t, &mockClient{}, 0)
	want := []string{PromptCharacter, PromptMetricsUpdate, PromptNews, PromptWorld, PromptWorldChange, PromptWorldMetrics}
	got := o.prompts.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("prompts = %v, want %v", got, want)
	}
}

func TestGenerateWorldChangePrompt(t *testing.T) {
	client := &mockClient{reply: `{"world_changes": {}}`}
	o := newTestOracle(t, client, 0)

	reply, err := o.GenerateWorldChange(context.Background(), TurnRequest{
		Budget:     decimal.RequireFromString("787.5"),
		Multiplier: decimal.RequireFromString("1.05"),
		Character:  "Hammurabi, a lawgiver.",
		Year:       -1754,
		World:      "Babylon on the Euphrates.",
		Initiative: "Carve the laws in stone.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != client.reply {
		t.Fatalf("expected raw reply passed through, got %q", reply)
	}

	for _, want := range []string{"1754 BCE", "787.50", "1.05", "Hammurabi", "Babylon", "Carve the laws", "money_multiplier_change"} {
		if !strings.Contains(client.lastReq.Prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, client.lastReq.Prompt)
		}
	}
	if client.lastReq.MaxTokens != 1500 {
		t.Fatalf("expected max tokens from frontmatter, got %d", client.lastReq.MaxTokens)
	}
}

func TestMetricsPromptsListKeys(t *testing.T) {
	client := &mockClient{reply: "{}"}
	o := newTestOracle(t, client, 0)

	if _, err := o.UpdateWorldMetrics(context.Background(), "A world.", "Plant forests", metrics.Snapshot{Ecology: -3}); err != nil {
		t.Fatalf("update metrics: %v", err)
	}
	for _, key := range metrics.Keys() {
		if !strings.Contains(client.lastReq.Prompt, `"`+key+`"`) {
			t.Fatalf("prompt missing key %s", key)
		}
	}
	if !strings.Contains(client.lastReq.Prompt, "ecology -3") {
		t.Fatalf("prompt missing current metrics:\n%s", client.lastReq.Prompt)
	}
}

func TestGenerateCharacterDefaultsDetails(t *testing.T) {
	client := &mockClient{reply: "A potter."}
	o := newTestOracle(t, client, 0)

	if _, err := o.GenerateCharacter(context.Background(), "A village.", "   "); err != nil {
		t.Fatalf("generate character: %v", err)
	}
	if !strings.Contains(client.lastReq.Prompt, "play this character: any.") {
		t.Fatalf("expected empty details to become any:\n%s", client.lastReq.Prompt)
	}
}

func TestCallErrors(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		cause := errors.New("connection reset")
		o := newTestOracle(t, &mockClient{err: cause}, 0)

		_, err := o.GenerateWorld(context.Background(), 1200)
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("expected cause preserved, got %v", err)
		}
		var callErr *CallError
		if !errors.As(err, &callErr) || callErr.Op != PromptWorld {
			t.Fatalf("expected CallError for %s, got %v", PromptWorld, err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		o := newTestOracle(t, &mockClient{block: true}, 20*time.Millisecond)

		_, err := o.GenerateNews(context.Background(), 5, "A world.", metrics.Snapshot{})
		if !errors.Is(err, ErrUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected unavailable deadline error, got %v", err)
		}
	})
}

func TestEra(t *testing.T) {
	tests := map[int]string{-10000: "10000 BCE", -1: "1 BCE", 0: "0 CE", 2025: "2025 CE"}
	for year, want := range tests {
		if got := Era(year); got != want {
			t.Fatalf("Era(%d) = %q, want %q", year, got, want)
		}
	}
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(nil, 0, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestSetMaxTokensCapsPromptLimit(t *testing.T) {
	client := &mockClient{reply: "A steppe."}
	o := newTestOracle(t, client, 0)

	if _, err := o.GenerateWorld(context.Background(), 500); err != nil {
		t.Fatalf("generate world: %v", err)
	}
	own := client.lastReq.MaxTokens
	if own == 0 {
		t.Fatalf("expected the world prompt to carry its own limit")
	}

	o.SetMaxTokens(own + 1000)
	if _, err := o.GenerateWorld(context.Background(), 500); err != nil {
		t.Fatalf("generate world: %v", err)
	}
	if client.lastReq.MaxTokens != own {
		t.Fatalf("a higher cap must not raise the limit, got %d want %d", client.lastReq.MaxTokens, own)
	}

	o.SetMaxTokens(10)
	if _, err := o.GenerateWorld(context.Background(), 500); err != nil {
		t.Fatalf("generate world: %v", err)
	}
	if client.lastReq.MaxTokens != 10 {
		t.Fatalf("expected cap of 10, got %d", client.lastReq.MaxTokens)
	}
}
