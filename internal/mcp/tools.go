package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"eraforge/internal/ledger"
	"eraforge/internal/metrics"
	"eraforge/internal/oracle"
	"eraforge/internal/session"
	"eraforge/internal/store"
)

const defaultUser = "local"

type UserInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"player id, defaults to local"`
}

type CreateCharacterInput struct {
	UserID  string `json:"user_id,omitempty" jsonschema:"player id, defaults to local"`
	Details string `json:"details,omitempty" jsonschema:"name, age, trade or temperament; empty for any"`
}

type SubmitInitiativeInput struct {
	UserID     string `json:"user_id,omitempty" jsonschema:"player id, defaults to local"`
	Initiative string `json:"initiative" jsonschema:"what the player's character sets out to change"`
}

type GetWorldInput struct {
	WorldID int64 `json:"world_id" jsonschema:"world id"`
	News    int   `json:"news,omitempty" jsonschema:"number of recent news digests to include"`
}

type SessionOutput struct {
	UserID    string `json:"user_id"`
	State     string `json:"state"`
	WorldID   int64  `json:"world_id,omitempty"`
	Year      int    `json:"year,omitempty"`
	Era       string `json:"era,omitempty"`
	Character string `json:"character,omitempty"`
	Turns     int    `json:"turns"`
}

type MetricsOutput = metrics.Snapshot

type StartGameOutput struct {
	Session     SessionOutput `json:"session"`
	World       string        `json:"world"`
	Balance     string        `json:"balance"`
	Multiplier  string        `json:"multiplier"`
	Metrics     MetricsOutput `json:"metrics"`
	NextMessage string        `json:"next"`
}

type CharacterOutput struct {
	Session   SessionOutput `json:"session"`
	Character string        `json:"character"`
	News      string        `json:"news,omitempty"`
}

type TurnOutput struct {
	Session    SessionOutput `json:"session"`
	TurnID     string        `json:"turn_id"`
	Result     string        `json:"result"`
	Year       int           `json:"year"`
	Balance    string        `json:"balance"`
	Multiplier string        `json:"multiplier"`
	Budget     string        `json:"budget"`
	Metrics    MetricsOutput `json:"metrics"`
	News       string        `json:"news,omitempty"`
}

type BudgetOutput struct {
	Budget string `json:"budget"`
}

type WorldOutput struct {
	ID          int64          `json:"id"`
	Year        int            `json:"year"`
	Era         string         `json:"era"`
	Description string         `json:"description"`
	Balance     string         `json:"balance,omitempty"`
	Multiplier  string         `json:"multiplier,omitempty"`
	Budget      string         `json:"budget,omitempty"`
	Metrics     *MetricsOutput `json:"metrics,omitempty"`
	News        []string       `json:"news,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "start_game",
		Description: "Start a new game: creates a world in a random era with its treasury and metrics",
	}, s.handleStartGame)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_character",
		Description: "Create the player's character for the current world",
	}, s.handleCreateCharacter)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "begin_initiatives",
		Description: "Open the initiative loop once a character exists",
	}, s.handleBeginInitiatives)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "submit_initiative",
		Description: "Submit an initiative; the world advances one year",
	}, s.handleSubmitInitiative)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_budget",
		Description: "Return what the player's world may spend on its next initiative",
	}, s.handleGetBudget)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_session",
		Description: "Return the player's session state",
	}, s.handleGetSession)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_world",
		Description: "Retrieve a stored world with its treasury, metrics and recent news",
	}, s.handleGetWorld)
}

func (s *Server) handleStartGame(ctx context.Context, req *sdk.CallToolRequest, input UserInput) (*sdk.CallToolResult, StartGameOutput, error) {
	user := userID(input.UserID)
	if _, err := s.game.Start(user); err != nil {
		return nil, StartGameOutput{}, s.userError("start_game", err)
	}
	w, err := s.game.CreateWorld(ctx, user)
	if err != nil {
		return nil, StartGameOutput{}, s.userError("start_game", err)
	}
	sess, err := s.game.Get(user)
	if err != nil {
		return nil, StartGameOutput{}, s.userError("start_game", err)
	}
	return nil, StartGameOutput{
		Session:     sessionOutput(sess),
		World:       w.Description,
		Balance:     w.Account.Balance.StringFixed(2),
		Multiplier:  w.Account.Multiplier.String(),
		Metrics:     w.Metrics,
		NextMessage: "Now create your character.",
	}, nil
}

func (s *Server) handleCreateCharacter(ctx context.Context, req *sdk.CallToolRequest, input CreateCharacterInput) (*sdk.CallToolResult, CharacterOutput, error) {
	user := userID(input.UserID)
	c, err := s.game.CreateCharacter(ctx, user, input.Details)
	if err != nil {
		return nil, CharacterOutput{}, s.userError("create_character", err)
	}
	sess, err := s.game.Get(user)
	if err != nil {
		return nil, CharacterOutput{}, s.userError("create_character", err)
	}
	return nil, CharacterOutput{Session: sessionOutput(sess), Character: c.Description, News: c.News}, nil
}

func (s *Server) handleBeginInitiatives(ctx context.Context, req *sdk.CallToolRequest, input UserInput) (*sdk.CallToolResult, SessionOutput, error) {
	sess, err := s.game.BeginInitiatives(userID(input.UserID))
	if err != nil {
		return nil, SessionOutput{}, s.userError("begin_initiatives", err)
	}
	return nil, sessionOutput(sess), nil
}

func (s *Server) handleSubmitInitiative(ctx context.Context, req *sdk.CallToolRequest, input SubmitInitiativeInput) (*sdk.CallToolResult, TurnOutput, error) {
	if strings.TrimSpace(input.Initiative) == "" {
		return nil, TurnOutput{}, fmt.Errorf("initiative is required")
	}
	user := userID(input.UserID)
	res, err := s.game.SubmitInitiative(ctx, user, input.Initiative)
	if err != nil {
		return nil, TurnOutput{}, s.userError("submit_initiative", err)
	}
	sess, err := s.game.Get(user)
	if err != nil {
		return nil, TurnOutput{}, s.userError("submit_initiative", err)
	}
	return nil, TurnOutput{
		Session:    sessionOutput(sess),
		TurnID:     res.TurnID,
		Result:     res.Narrative,
		Year:       res.Year,
		Balance:    res.Balance.StringFixed(2),
		Multiplier: res.Multiplier.String(),
		Budget:     res.Budget().StringFixed(2),
		Metrics:    res.Metrics,
		News:       res.News,
	}, nil
}

func (s *Server) handleGetBudget(ctx context.Context, req *sdk.CallToolRequest, input UserInput) (*sdk.CallToolResult, BudgetOutput, error) {
	budget, err := s.game.Budget(ctx, userID(input.UserID))
	if err != nil {
		return nil, BudgetOutput{}, s.userError("get_budget", err)
	}
	return nil, BudgetOutput{Budget: budget.StringFixed(2)}, nil
}

func (s *Server) handleGetSession(ctx context.Context, req *sdk.CallToolRequest, input UserInput) (*sdk.CallToolResult, SessionOutput, error) {
	sess, err := s.game.Get(userID(input.UserID))
	if err != nil {
		return nil, SessionOutput{}, s.userError("get_session", err)
	}
	return nil, sessionOutput(sess), nil
}

func (s *Server) handleGetWorld(ctx context.Context, req *sdk.CallToolRequest, input GetWorldInput) (*sdk.CallToolResult, WorldOutput, error) {
	if input.WorldID <= 0 {
		return nil, WorldOutput{}, fmt.Errorf("world_id is required")
	}
	w, err := s.chronicle.GetWorld(ctx, input.WorldID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, WorldOutput{}, fmt.Errorf("world not found")
	}
	if err != nil {
		return nil, WorldOutput{}, err
	}
	out := WorldOutput{ID: w.ID, Year: w.Year, Era: oracle.Era(w.Year), Description: w.Description}

	econ, err := s.chronicle.LatestEconomy(ctx, w.ID)
	if err != nil {
		return nil, WorldOutput{}, err
	}
	if econ != nil {
		acct := ledger.Account{Balance: econ.Balance, Multiplier: econ.Multiplier}
		out.Balance = acct.Balance.StringFixed(2)
		out.Multiplier = acct.Multiplier.String()
		out.Budget = acct.Budget().StringFixed(2)
	}

	m, err := s.chronicle.LatestMetrics(ctx, w.ID)
	if err != nil {
		return nil, WorldOutput{}, err
	}
	if m != nil {
		out.Metrics = &m.Metrics
	}

	if input.News > 0 {
		items, err := s.chronicle.ListNews(ctx, w.ID, input.News)
		if err != nil {
			return nil, WorldOutput{}, err
		}
		for _, item := range items {
			out.News = append(out.News, item.Body)
		}
	}
	return nil, out, nil
}

// userError logs the cause and hands the client the player-facing text.
func (s *Server) userError(tool string, err error) error {
	s.log.Warn("tool failed", "tool", tool, "error", err)
	return errors.New(session.UserMessage(err))
}

func userID(raw string) string {
	if id := strings.TrimSpace(raw); id != "" {
		return id
	}
	return defaultUser
}

func sessionOutput(sess session.Session) SessionOutput {
	out := SessionOutput{
		UserID:    sess.UserID,
		State:     sess.State.String(),
		WorldID:   sess.WorldID,
		Year:      sess.Year,
		Character: sess.Character,
		Turns:     sess.Turns,
	}
	if sess.WorldID != 0 {
		out.Era = oracle.Era(sess.Year)
	}
	return out
}
