package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"eraforge/internal/genesis"
	"eraforge/internal/session"
	"eraforge/internal/store"
	"eraforge/internal/turn"
)

// Game is the session surface the tools drive.
type Game interface {
	Start(userID string) (session.Session, error)
	Get(userID string) (session.Session, error)
	CreateWorld(ctx context.Context, userID string) (*genesis.World, error)
	CreateCharacter(ctx context.Context, userID, details string) (*genesis.Character, error)
	BeginInitiatives(userID string) (session.Session, error)
	SubmitInitiative(ctx context.Context, userID, text string) (*turn.Result, error)
	Budget(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Chronicle is read-only access to stored worlds.
type Chronicle interface {
	GetWorld(ctx context.Context, id int64) (*store.World, error)
	LatestEconomy(ctx context.Context, worldID int64) (*store.EconomicRecord, error)
	LatestMetrics(ctx context.Context, worldID int64) (*store.MetricsRecord, error)
	ListNews(ctx context.Context, worldID int64, limit int) ([]store.NewsItem, error)
}

type Server struct {
	game      Game
	chronicle Chronicle
	log       *slog.Logger
	mcp       *sdk.Server
}

func NewServer(game Game, chronicle Chronicle, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		game:      game,
		chronicle: chronicle,
		log:       logger,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "eraforge",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
