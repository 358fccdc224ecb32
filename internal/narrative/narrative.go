// Package narrative owns a world's running description: replacement when an
// initiative resolves and the news digest appended afterwards.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"eraforge/internal/extract"
	"eraforge/internal/metrics"
	"eraforge/internal/store"
)

var ErrMissingFacts = errors.New("oracle reply has no world facts")

// Facts validates the extracted world_changes.facts value. A world must
// always keep some description, so anything but non-blank text fails.
func Facts(v extract.Value, lookupErr error) (string, error) {
	if lookupErr != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingFacts, lookupErr)
	}
	text, ok := v.AsString()
	if !ok {
		return "", fmt.Errorf("%w: got %s", ErrMissingFacts, v.Kind())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text", ErrMissingFacts)
	}
	return text, nil
}

// Perspective returns the user-facing outcome, or fallback when the oracle
// left it out.
func Perspective(v extract.Value, lookupErr error, fallback string) string {
	if lookupErr != nil {
		return fallback
	}
	text, ok := v.AsString()
	if !ok || strings.TrimSpace(text) == "" {
		return fallback
	}
	return strings.TrimSpace(text)
}

// NewsOracle writes a digest of the year's events.
type NewsOracle interface {
	GenerateNews(ctx context.Context, year int, world string, m metrics.Snapshot) (string, error)
}

// NewsWriter is where digests land. store.Store and store.Tx both satisfy it.
type NewsWriter interface {
	SaveNews(ctx context.Context, item store.NewsItem) error
	AppendDescription(ctx context.Context, id int64, text string) error
}

type Publisher struct {
	oracle  NewsOracle
	enabled bool
	log     *slog.Logger
}

func NewPublisher(oracle NewsOracle, enabled bool, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{oracle: oracle, enabled: enabled, log: logger}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.enabled && p.oracle != nil
}

// Digest generates and stores a news digest. When appendToWorld is set the
// digest is also appended to the world description. An empty digest is not
// stored.
func (p *Publisher) Digest(ctx context.Context, w NewsWriter, worldID int64, year int, world string, m metrics.Snapshot, appendToWorld bool) (string, error) {
	if !p.Enabled() {
		return "", nil
	}

	digest, err := p.oracle.GenerateNews(ctx, year, world, m)
	if err != nil {
		return "", fmt.Errorf("generating news: %w", err)
	}
	digest = strings.TrimSpace(digest)
	if digest == "" {
		p.log.Warn("oracle returned empty news digest", "world_id", worldID, "year", year)
		return "", nil
	}

	if err := w.SaveNews(ctx, store.NewsItem{WorldID: worldID, Year: year, Body: digest}); err != nil {
		return "", err
	}
	if appendToWorld {
		if err := w.AppendDescription(ctx, worldID, digest); err != nil {
			return "", err
		}
	}
	return digest, nil
}
