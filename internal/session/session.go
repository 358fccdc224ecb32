// Package session gates which game operations a user may call and in what
// order: world, then character, then any number of initiatives.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"eraforge/internal/genesis"
	"eraforge/internal/turn"
)

var (
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	ErrTurnInProgress    = errors.New("a turn is already being resolved")
	ErrNoSession         = errors.New("no session for user")
)

type State int

const (
	Idle State = iota
	WorldCreated
	CharacterCreated
	AwaitingInitiative
	TurnResolving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WorldCreated:
		return "world_created"
	case CharacterCreated:
		return "character_created"
	case AwaitingInitiative:
		return "awaiting_initiative"
	case TurnResolving:
		return "turn_resolving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TransitionError reports an operation attempted from the wrong state.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: not allowed while %s", e.Op, e.State)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Session is one user's progress through the game.
type Session struct {
	UserID    string `json:"user_id"`
	State     State  `json:"-"`
	StateName string `json:"state"`
	WorldID   int64  `json:"world_id,omitempty"`
	Year      int    `json:"year,omitempty"`
	World     string `json:"world,omitempty"`
	Character string `json:"character,omitempty"`
	Turns     int    `json:"turns"`

	busy bool
}

type Genesis interface {
	CreateWorld(ctx context.Context) (*genesis.World, error)
	CreateCharacter(ctx context.Context, worldID int64, userID, details string) (*genesis.Character, error)
}

type Engine interface {
	ResolveInitiative(ctx context.Context, in turn.Initiative) (*turn.Result, error)
	ComputeBudget(ctx context.Context, worldID int64) (decimal.Decimal, error)
}

// Manager holds one session per user. Operations for different users run
// concurrently; a user's own turn blocks only that user's next submission.
type Manager struct {
	genesis Genesis
	engine  Engine
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(g Genesis, e Engine, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		genesis:  g,
		engine:   e,
		log:      logger,
		sessions: make(map[string]*Session),
	}
}

// Start resets the user's session to Idle. A turn still resolving keeps
// the session until it finishes.
func (m *Manager) Start(userID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok && (s.busy || s.State == TurnResolving) {
		return Session{}, ErrTurnInProgress
	}
	s := &Session{UserID: userID, State: Idle}
	m.sessions[userID] = s
	m.log.Info("session started", "user_id", userID)
	return s.snapshot(), nil
}

func (m *Manager) Get(userID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, ErrNoSession
	}
	return s.snapshot(), nil
}

func (m *Manager) CreateWorld(ctx context.Context, userID string) (*genesis.World, error) {
	s, err := m.claim(userID, "create_world", Idle)
	if err != nil {
		return nil, err
	}

	w, err := m.genesis.CreateWorld(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	s.busy = false
	if err != nil {
		return nil, err
	}
	s.State = WorldCreated
	s.WorldID = w.ID
	s.Year = w.Year
	s.World = w.Description
	return w, nil
}

func (m *Manager) CreateCharacter(ctx context.Context, userID, details string) (*genesis.Character, error) {
	s, err := m.claim(userID, "create_character", WorldCreated)
	if err != nil {
		return nil, err
	}

	c, err := m.genesis.CreateCharacter(ctx, s.WorldID, userID, details)

	m.mu.Lock()
	defer m.mu.Unlock()
	s.busy = false
	if err != nil {
		return nil, err
	}
	s.State = CharacterCreated
	s.Character = c.Description
	return c, nil
}

// BeginInitiatives opens the turn loop. Calling it again while already
// waiting for an initiative is a no-op.
func (m *Manager) BeginInitiatives(userID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, ErrNoSession
	}
	switch s.State {
	case CharacterCreated, AwaitingInitiative:
		s.State = AwaitingInitiative
		return s.snapshot(), nil
	case TurnResolving:
		return Session{}, ErrTurnInProgress
	default:
		return Session{}, &TransitionError{Op: "begin_initiatives", State: s.State}
	}
}

// SubmitInitiative resolves one turn for the user's world. Whatever the
// outcome the session returns to AwaitingInitiative.
func (m *Manager) SubmitInitiative(ctx context.Context, userID, text string) (*turn.Result, error) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNoSession
	}
	switch s.State {
	case AwaitingInitiative:
	case TurnResolving:
		m.mu.Unlock()
		return nil, ErrTurnInProgress
	default:
		m.mu.Unlock()
		return nil, &TransitionError{Op: "submit_initiative", State: s.State}
	}
	s.State = TurnResolving
	in := turn.Initiative{
		WorldID:   s.WorldID,
		Character: s.Character,
		NextYear:  s.Year + 1,
		World:     s.World,
		Text:      text,
	}
	m.mu.Unlock()

	res, err := m.engine.ResolveInitiative(ctx, in)

	m.mu.Lock()
	defer m.mu.Unlock()
	s.State = AwaitingInitiative
	if err != nil {
		m.log.Warn("initiative failed", "user_id", userID, "world_id", in.WorldID, "error", err)
		return nil, err
	}
	s.Year = res.Year
	s.World = res.World
	s.Turns++
	return res, nil
}

// Budget reports what the user's world may spend on its next turn.
func (m *Manager) Budget(ctx context.Context, userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return decimal.Zero, ErrNoSession
	}
	if s.WorldID == 0 {
		state := s.State
		m.mu.Unlock()
		return decimal.Zero, &TransitionError{Op: "get_budget", State: state}
	}
	worldID := s.WorldID
	m.mu.Unlock()
	return m.engine.ComputeBudget(ctx, worldID)
}

// claim checks the session is in want and marks it busy so a second
// creation call cannot run alongside the first.
func (m *Manager) claim(userID, op string, want State) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	if s.busy {
		return nil, ErrTurnInProgress
	}
	if s.State != want {
		return nil, &TransitionError{Op: op, State: s.State}
	}
	s.busy = true
	return s, nil
}

func (s *Session) snapshot() Session {
	out := *s
	out.busy = false
	out.StateName = s.State.String()
	return out
}
