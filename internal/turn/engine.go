// Package turn resolves one initiative against a world: it asks the oracle
// for a judgment, validates the reply field by field, and commits the new
// description, treasury and metrics together.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eraforge/internal/extract"
	"eraforge/internal/ledger"
	"eraforge/internal/metrics"
	"eraforge/internal/narrative"
	"eraforge/internal/oracle"
	"eraforge/internal/store"
)

var (
	ErrPersistence     = errors.New("turn could not be saved")
	ErrMissingFacts    = narrative.ErrMissingFacts
	ErrEmptyInitiative = errors.New("initiative text is empty")
)

// Oracle is the subset of oracle.Oracle a turn needs.
type Oracle interface {
	GenerateWorldChange(ctx context.Context, req oracle.TurnRequest) (string, error)
	UpdateWorldMetrics(ctx context.Context, world, initiative string, current metrics.Snapshot) (string, error)
	GenerateNews(ctx context.Context, year int, world string, m metrics.Snapshot) (string, error)
}

type Initiative struct {
	WorldID   int64
	Character string
	NextYear  int
	World     string
	Text      string
}

type Result struct {
	TurnID     string
	Narrative  string
	World      string
	Year       int
	Balance    decimal.Decimal
	Multiplier decimal.Decimal
	Metrics    metrics.Snapshot
	News       string
}

// Budget is what the next turn may spend.
func (r *Result) Budget() decimal.Decimal {
	return r.Balance.Mul(r.Multiplier)
}

type Options struct {
	Logger *slog.Logger
	// News enables the digest appended after each committed turn.
	News bool
}

type Engine struct {
	store  store.Store
	ledger *ledger.Ledger
	oracle Oracle
	news   *narrative.Publisher
	locks  *Locks
	tracer trace.Tracer
	log    *slog.Logger
	newID  func() string
}

func NewEngine(st store.Store, o Oracle, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  st,
		ledger: ledger.New(st, logger),
		oracle: o,
		news:   narrative.NewPublisher(o, opts.News, logger),
		locks:  NewLocks(),
		tracer: otel.Tracer("eraforge/turn"),
		log:    logger,
		newID:  uuid.NewString,
	}
}

// Ledger exposes the engine's ledger for read-only callers.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// ComputeBudget returns balance × multiplier from the latest record.
func (e *Engine) ComputeBudget(ctx context.Context, worldID int64) (decimal.Decimal, error) {
	budget, err := e.ledger.ComputeBudget(ctx, worldID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return budget, nil
}

// ResolveInitiative runs one turn. Turns for the same world never overlap.
// On any error nothing has been written.
func (e *Engine) ResolveInitiative(ctx context.Context, in Initiative) (*Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyInitiative
	}

	unlock, err := e.locks.Lock(ctx, in.WorldID)
	if err != nil {
		return nil, fmt.Errorf("waiting for world %d: %w", in.WorldID, err)
	}
	defer unlock()

	ctx, span := e.tracer.Start(ctx, "turn.resolve", trace.WithAttributes(
		attribute.Int64("world.id", in.WorldID),
		attribute.Int("world.next_year", in.NextYear),
	))
	defer span.End()

	res, err := e.resolve(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		e.log.Warn("turn failed", "world_id", in.WorldID, "year", in.NextYear, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("turn.id", res.TurnID))
	return res, nil
}

func (e *Engine) resolve(ctx context.Context, in Initiative) (*Result, error) {
	acct, err := e.ledger.Current(ctx, in.WorldID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	current, err := e.currentMetrics(ctx, in.WorldID)
	if err != nil {
		return nil, err
	}

	e.log.Info("turn started",
		"world_id", in.WorldID,
		"year", in.NextYear,
		"balance", acct.Balance.String(),
		"multiplier", acct.Multiplier.String(),
	)

	reply, err := e.oracle.GenerateWorldChange(ctx, oracle.TurnRequest{
		Budget:     acct.Budget(),
		Multiplier: acct.Multiplier,
		Character:  in.Character,
		Year:       in.NextYear,
		World:      in.World,
		Initiative: in.Text,
	})
	if err != nil {
		return nil, err
	}

	verdict := e.judge(reply)
	facts, err := narrative.Facts(verdict.lookup("world_changes", "facts"))
	if err != nil {
		return nil, err
	}
	perspectiveValue, perspectiveErr := verdict.lookup("world_changes", "npc_perspective")
	if perspectiveErr != nil {
		e.log.Warn("oracle reply has no npc perspective, showing facts", "error", perspectiveErr)
	}
	outcome := narrative.Perspective(perspectiveValue, perspectiveErr, facts)
	cost := e.ledger.Cost(verdict.lookup("financial_evaluation", "estimated_cost"))
	delta := e.ledger.MultiplierDelta(verdict.lookup("financial_evaluation", "money_multiplier_change"))

	next, err := e.nextMetrics(ctx, facts, in.Text, current)
	if err != nil {
		return nil, err
	}

	res := &Result{
		TurnID:    e.newID(),
		Narrative: outcome,
		World:     facts,
		Year:      in.NextYear,
		Metrics:   next,
	}
	err = e.store.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.UpdateWorld(ctx, in.WorldID, in.NextYear, facts); err != nil {
			return err
		}
		settled, err := e.ledger.WithRepository(tx).ResolveTurn(ctx, in.WorldID, cost, delta)
		if err != nil {
			return err
		}
		if err := tx.AppendMetrics(ctx, in.WorldID, next); err != nil {
			return err
		}
		res.Balance = settled.Balance
		res.Multiplier = settled.Multiplier
		return tx.RecordTurn(ctx, store.TurnRecord{
			ID:              res.TurnID,
			WorldID:         in.WorldID,
			Year:            in.NextYear,
			Initiative:      in.Text,
			Outcome:         outcome,
			EstimatedCost:   cost,
			MultiplierDelta: delta,
			Balance:         settled.Balance,
			Multiplier:      settled.Multiplier,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	e.log.Info("turn committed",
		"world_id", in.WorldID,
		"turn_id", res.TurnID,
		"year", res.Year,
		"cost", cost.String(),
		"delta", delta.String(),
		"balance", res.Balance.String(),
		"multiplier", res.Multiplier.String(),
	)

	// Still inside the world lock, so the digest cannot interleave with the
	// next turn's replacement.
	digest, err := e.news.Digest(ctx, e.store, in.WorldID, in.NextYear, facts, next, true)
	if err != nil {
		e.log.Warn("news digest skipped", "world_id", in.WorldID, "error", err)
	} else if digest != "" {
		res.News = digest
		res.World = store.JoinDescription(facts, digest)
	}
	return res, nil
}

func (e *Engine) currentMetrics(ctx context.Context, worldID int64) (metrics.Snapshot, error) {
	rec, err := e.store.LatestMetrics(ctx, worldID)
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if rec == nil {
		return metrics.Snapshot{}, nil
	}
	return rec.Metrics, nil
}

// nextMetrics asks the oracle for deltas. A malformed reply counts as no
// change; an unparseable token fails the turn.
func (e *Engine) nextMetrics(ctx context.Context, world, initiative string, current metrics.Snapshot) (metrics.Snapshot, error) {
	reply, err := e.oracle.UpdateWorldMetrics(ctx, world, initiative, current)
	if err != nil {
		return metrics.Snapshot{}, err
	}
	doc, err := extract.Parse(reply)
	if err != nil {
		e.log.Warn("metric deltas unreadable, keeping metrics", "error", err)
		e.log.Debug("metric reply", "raw", reply)
		doc = nil
	}
	return metrics.Apply(current, metrics.Collect(doc))
}

type judgment struct {
	doc *extract.Document
	err error
}

func (e *Engine) judge(reply string) judgment {
	doc, err := extract.Parse(reply)
	if err != nil {
		e.log.Warn("oracle judgment unreadable", "error", err)
		e.log.Debug("oracle judgment", "raw", reply)
	}
	return judgment{doc: doc, err: err}
}

// lookup never fails past the field: a document-level error is reported as
// that field's failure.
func (j judgment) lookup(path ...string) (extract.Value, error) {
	if j.err != nil {
		return extract.Value{}, j.err
	}
	return j.doc.Lookup(path...)
}
