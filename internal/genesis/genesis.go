// Package genesis creates worlds and the characters that act in them.
package genesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"

	"eraforge/internal/extract"
	"eraforge/internal/ledger"
	"eraforge/internal/metrics"
	"eraforge/internal/narrative"
	"eraforge/internal/store"
)

var (
	ErrEmptyWorld     = errors.New("oracle returned an empty world description")
	ErrEmptyCharacter = errors.New("oracle returned an empty character description")
	ErrYearRange      = errors.New("min year is after max year")
)

type Oracle interface {
	GenerateWorld(ctx context.Context, year int) (string, error)
	GenerateWorldMetrics(ctx context.Context, world string) (string, error)
	GenerateCharacter(ctx context.Context, world, details string) (string, error)
	GenerateNews(ctx context.Context, year int, world string, m metrics.Snapshot) (string, error)
}

type Options struct {
	MinYear            int
	MaxYear            int
	StartingBalance    decimal.Decimal
	StartingMultiplier decimal.Decimal
	News               bool
	Logger             *slog.Logger
}

type Service struct {
	store  store.Store
	oracle Oracle
	opts   Options
	ledger *ledger.Ledger
	news   *narrative.Publisher
	log    *slog.Logger
	intn   func(n int) int
}

func New(st store.Store, o Oracle, opts Options) (*Service, error) {
	if opts.MinYear > opts.MaxYear {
		return nil, fmt.Errorf("%w: %d > %d", ErrYearRange, opts.MinYear, opts.MaxYear)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		oracle: o,
		opts:   opts,
		ledger: ledger.New(st, logger),
		news:   narrative.NewPublisher(o, opts.News, logger),
		log:    logger,
		intn:   rand.IntN,
	}, nil
}

// World is a freshly created world with its opening treasury and metrics.
type World struct {
	store.World
	Metrics metrics.Snapshot
	Account ledger.Account
}

// CreateWorld rolls an in-game year, has the oracle describe the era and
// stores the world together with its opening economy and metrics.
func (s *Service) CreateWorld(ctx context.Context) (*World, error) {
	year := s.opts.MinYear + s.intn(s.opts.MaxYear-s.opts.MinYear+1)

	description, err := s.oracle.GenerateWorld(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("generating world: %w", err)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyWorld
	}

	snapshot := s.initialMetrics(ctx, description)
	acct := ledger.Account{Balance: s.opts.StartingBalance, Multiplier: s.opts.StartingMultiplier}

	var created *store.World
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		w, err := tx.CreateWorld(ctx, year, description)
		if err != nil {
			return err
		}
		if err := tx.AppendMetrics(ctx, w.ID, snapshot); err != nil {
			return err
		}
		if err := s.ledger.WithRepository(tx).Fund(ctx, w.ID, acct); err != nil {
			return err
		}
		created = w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving world: %w", err)
	}

	s.log.Info("world created",
		"world_id", created.ID,
		"year", created.Year,
		"balance", acct.Balance.String(),
		"multiplier", acct.Multiplier.String(),
	)
	return &World{World: *created, Metrics: snapshot, Account: acct}, nil
}

func (s *Service) initialMetrics(ctx context.Context, description string) metrics.Snapshot {
	reply, err := s.oracle.GenerateWorldMetrics(ctx, description)
	if err != nil {
		s.log.Warn("initial metrics unavailable, starting at zero", "error", err)
		return metrics.Snapshot{}
	}
	doc, err := extract.Parse(reply)
	if err != nil {
		s.log.Warn("initial metrics unreadable, starting at zero", "error", err)
		s.log.Debug("initial metrics reply", "raw", reply)
		return metrics.Snapshot{}
	}
	snapshot, defaulted := metrics.Initial(doc)
	if len(defaulted) > 0 {
		s.log.Warn("initial metrics defaulted to zero", "keys", defaulted)
	}
	return snapshot
}

// Character is a stored character plus the news digest that greets it.
type Character struct {
	store.Character
	News string
}

// CreateCharacter asks the oracle for a character fitting the world. Every
// call stores a new row; earlier characters are kept as history.
func (s *Service) CreateCharacter(ctx context.Context, worldID int64, userID, details string) (*Character, error) {
	w, err := s.store.GetWorld(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("loading world %d: %w", worldID, err)
	}

	description, err := s.oracle.GenerateCharacter(ctx, w.Description, details)
	if err != nil {
		return nil, fmt.Errorf("generating character: %w", err)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyCharacter
	}

	saved, err := s.store.SaveCharacter(ctx, store.Character{
		WorldID:     worldID,
		UserID:      userID,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("saving character: %w", err)
	}
	s.log.Info("character created", "world_id", worldID, "user_id", userID, "character_id", saved.ID)

	out := &Character{Character: *saved}
	if !s.news.Enabled() {
		return out, nil
	}

	var snapshot metrics.Snapshot
	rec, err := s.store.LatestMetrics(ctx, worldID)
	if err != nil {
		s.log.Warn("news skipped, metrics unreadable", "world_id", worldID, "error", err)
		return out, nil
	}
	if rec != nil {
		snapshot = rec.Metrics
	}
	digest, err := s.news.Digest(ctx, s.store, worldID, w.Year, w.Description, snapshot, false)
	if err != nil {
		s.log.Warn("news digest skipped", "world_id", worldID, "error", err)
		return out, nil
	}
	out.News = digest
	return out, nil
}
