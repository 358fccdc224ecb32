// Package oracle sends prompts to the text-generation service that narrates
// the world and judges initiatives. Replies come back as raw text; nothing
// here trusts their structure.
package oracle

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eraforge/internal/metrics"
	"eraforge/internal/prompt"
)

//go:embed prompts/*.md
var promptFS embed.FS

const (
	PromptWorld         = "world"
	PromptWorldMetrics  = "world_metrics"
	PromptCharacter     = "character"
	PromptNews          = "news"
	PromptWorldChange   = "world_change"
	PromptMetricsUpdate = "metrics_update"
)

var ErrUnavailable = errors.New("oracle unavailable")

// CallError wraps a failed oracle call. It matches both ErrUnavailable and
// the underlying cause.
type CallError struct {
	Op  string
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// Request is a single completion.
type Request struct {
	Prompt    string
	MaxTokens int
}

// Client is a text-generation backend.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// TurnRequest bundles what the oracle needs to judge one initiative.
type TurnRequest struct {
	Budget     decimal.Decimal
	Multiplier decimal.Decimal
	Character  string
	Year       int
	World      string
	Initiative string
}

type Oracle struct {
	client  Client
	prompts *prompt.Library
	timeout time.Duration
	limit   int
	tracer  trace.Tracer
	log     *slog.Logger
}

// New wraps client with the built-in prompts. A zero timeout means calls
// are bounded only by the caller's context.
func New(client Client, timeout time.Duration, logger *slog.Logger) (*Oracle, error) {
	if client == nil {
		return nil, fmt.Errorf("oracle client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	lib, err := prompt.Load(promptFS, "prompts")
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}
	return &Oracle{
		client:  client,
		prompts: lib,
		timeout: timeout,
		tracer:  otel.Tracer("eraforge/oracle"),
		log:     logger,
	}, nil
}

// SetMaxTokens caps every prompt's token budget. Zero keeps each prompt's
// own limit.
func (o *Oracle) SetMaxTokens(n int) {
	o.limit = n
}

func (o *Oracle) GenerateWorld(ctx context.Context, year int) (string, error) {
	return o.call(ctx, PromptWorld, struct {
		Year int
		Era  string
	}{Year: year, Era: Era(year)})
}

// GenerateWorldMetrics asks for an initial five-counter document.
func (o *Oracle) GenerateWorldMetrics(ctx context.Context, world string) (string, error) {
	return o.call(ctx, PromptWorldMetrics, struct {
		World string
		Keys  []string
	}{World: world, Keys: metrics.Keys()})
}

func (o *Oracle) GenerateCharacter(ctx context.Context, world, details string) (string, error) {
	if strings.TrimSpace(details) == "" {
		details = "any"
	}
	return o.call(ctx, PromptCharacter, struct {
		World   string
		Details string
	}{World: world, Details: details})
}

func (o *Oracle) GenerateNews(ctx context.Context, year int, world string, m metrics.Snapshot) (string, error) {
	return o.call(ctx, PromptNews, struct {
		Year    int
		Era     string
		World   string
		Metrics metrics.Snapshot
	}{Year: year, Era: Era(year), World: world, Metrics: m})
}

// GenerateWorldChange asks the oracle to judge an initiative. The reply is
// expected to carry world_changes and financial_evaluation objects.
func (o *Oracle) GenerateWorldChange(ctx context.Context, req TurnRequest) (string, error) {
	return o.call(ctx, PromptWorldChange, struct {
		Budget     string
		Multiplier string
		Character  string
		Year       int
		Era        string
		World      string
		Initiative string
	}{
		Budget:     req.Budget.StringFixed(2),
		Multiplier: req.Multiplier.String(),
		Character:  req.Character,
		Year:       req.Year,
		Era:        Era(req.Year),
		World:      req.World,
		Initiative: req.Initiative,
	})
}

// UpdateWorldMetrics asks for per-metric delta tokens after an initiative.
func (o *Oracle) UpdateWorldMetrics(ctx context.Context, world, initiative string, current metrics.Snapshot) (string, error) {
	return o.call(ctx, PromptMetricsUpdate, struct {
		World      string
		Initiative string
		Metrics    metrics.Snapshot
		Keys       []string
	}{World: world, Initiative: initiative, Metrics: current, Keys: metrics.Keys()})
}

func (o *Oracle) call(ctx context.Context, op string, data any) (string, error) {
	tmpl, err := o.prompts.Get(op)
	if err != nil {
		return "", err
	}
	text, err := tmpl.Render(data)
	if err != nil {
		return "", err
	}

	maxTokens := tmpl.MaxTokens
	if o.limit > 0 && (maxTokens == 0 || maxTokens > o.limit) {
		maxTokens = o.limit
	}

	ctx, span := o.tracer.Start(ctx, "oracle."+op, trace.WithAttributes(
		attribute.Int("oracle.max_tokens", maxTokens),
		attribute.Int("oracle.prompt_bytes", len(text)),
	))
	defer span.End()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := o.client.Complete(ctx, Request{Prompt: text, MaxTokens: maxTokens})
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle call failed")
		o.log.Error("oracle call failed", "op", op, "elapsed", elapsed, "error", err)
		return "", &CallError{Op: op, Err: err}
	}

	span.SetAttributes(attribute.Int("oracle.reply_bytes", len(reply)))
	o.log.Debug("oracle replied", "op", op, "elapsed", elapsed, "bytes", len(reply))
	return reply, nil
}

// Era renders a signed in-game year for prompts and display.
func Era(year int) string {
	if year < 0 {
		return fmt.Sprintf("%d BCE", -year)
	}
	return fmt.Sprintf("%d CE", year)
}
