package turn

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"eraforge/internal/metrics"
	"eraforge/internal/oracle"
	"eraforge/internal/store"
	"eraforge/internal/store/sqlite"
	"eraforge/internal/telemetry"
)

const judgmentReply = "Here is my assessment:\n```json\n" + `{
  "world_changes": {
    "facts": "Granaries line the river and famine is a memory.",
    "npc_perspective": "The elders bless your name."
  },
  "financial_evaluation": {
    "estimated_cost": 250,
    "money_multiplier_change": 0.05
  }
}` + "\n```"

const deltaReply = `{"economy_metric": "+", "social_stability_metric": "-", "ecology_metric": "0", "security_metric": "3"}`

type mockOracle struct {
	mu           sync.Mutex
	changeReply  string
	changeErr    error
	metricsReply string
	metricsErr   error
	newsReply    string
	newsErr      error
	budgets      []string
	lastRequest  oracle.TurnRequest
	metricsCalls int
}

func (m *mockOracle) GenerateWorldChange(ctx context.Context, req oracle.TurnRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRequest = req
	m.budgets = append(m.budgets, req.Budget.StringFixed(2))
	return m.changeReply, m.changeErr
}

func (m *mockOracle) UpdateWorldMetrics(ctx context.Context, world, initiative string, current metrics.Snapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metricsCalls++
	return m.metricsReply, m.metricsErr
}

func (m *mockOracle) GenerateNews(ctx context.Context, year int, world string, s metrics.Snapshot) (string, error) {
	return m.newsReply, m.newsErr
}

type fixture struct {
	store   *sqlite.Client
	oracle  *mockOracle
	engine  *Engine
	worldID int64
}

func newFixture(t *testing.T, o *mockOracle, news bool) *fixture {
	t.Helper()
	ctx := context.Background()
	client, err := sqlite.New(ctx, "sqlite://"+filepath.Join(t.TempDir(), "turns.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = client.Close(ctx) })
	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	w, err := client.CreateWorld(ctx, 1199, "A dry valley.")
	if err != nil {
		t.Fatalf("create world: %v", err)
	}
	seed := store.EconomicRecord{WorldID: w.ID, Balance: decimal.RequireFromString("1000.00"), Multiplier: decimal.RequireFromString("1.00")}
	if err := client.AppendEconomy(ctx, seed); err != nil {
		t.Fatalf("seed economy: %v", err)
	}
	five := metrics.Snapshot{Economy: 5, SocialStability: 5, Ecology: 5, Security: 5, PoliticalSupport: 5}
	if err := client.AppendMetrics(ctx, w.ID, five); err != nil {
		t.Fatalf("seed metrics: %v", err)
	}

	engine := NewEngine(client, o, Options{Logger: telemetry.Discard(), News: news})
	return &fixture{store: client, oracle: o, engine: engine, worldID: w.ID}
}

func (f *fixture) initiative(text string) Initiative {
	return Initiative{
		WorldID:   f.worldID,
		Character: "Ana, a canal engineer.",
		NextYear:  1200,
		World:     "A dry valley.",
		Text:      text,
	}
}

// assertUntouched checks that a failed turn wrote nothing.
func (f *fixture) assertUntouched(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	w, err := f.store.GetWorld(ctx, f.worldID)
	if err != nil {
		t.Fatalf("get world: %v", err)
	}
	if w.Year != 1199 || w.Description != "A dry valley." {
		t.Fatalf("world changed by failed turn: %+v", w)
	}
	history, err := f.store.EconomyHistory(ctx, f.worldID, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("economy changed by failed turn: %+v, %v", history, err)
	}
	rec, err := f.store.LatestMetrics(ctx, f.worldID)
	if err != nil || rec.Metrics.Economy != 5 || rec.Metrics.Security != 5 {
		t.Fatalf("metrics changed by failed turn: %+v, %v", rec, err)
	}
	turns, err := f.store.ListTurns(ctx, f.worldID, 0)
	if err != nil || len(turns) != 0 {
		t.Fatalf("turn logged by failed turn: %+v, %v", turns, err)
	}
}

func TestResolveInitiativeEndToEnd(t *testing.T) {
	ctx := context.Background()
	o := &mockOracle{changeReply: judgmentReply, metricsReply: deltaReply, newsReply: "Canal opens."}
	f := newFixture(t, o, true)

	res, err := f.engine.ResolveInitiative(ctx, f.initiative("Dig irrigation canals"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if o.lastRequest.Budget.StringFixed(2) != "1000.00" || !o.lastRequest.Multiplier.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("oracle saw budget %s × %s", o.lastRequest.Budget, o.lastRequest.Multiplier)
	}
	if res.Narrative != "The elders bless your name." {
		t.Fatalf("unexpected narrative %q", res.Narrative)
	}
	if !res.Balance.Equal(decimal.RequireFromString("750.00")) || !res.Multiplier.Equal(decimal.RequireFromString("1.05")) {
		t.Fatalf("unexpected account %s × %s", res.Balance, res.Multiplier)
	}
	want := metrics.Snapshot{Economy: 6, SocialStability: 4, Ecology: 5, Security: 8, PoliticalSupport: 5}
	if res.Metrics != want {
		t.Fatalf("metrics = %+v, want %+v", res.Metrics, want)
	}
	if res.News != "Canal opens." {
		t.Fatalf("unexpected news %q", res.News)
	}

	budget, err := f.engine.ComputeBudget(ctx, f.worldID)
	if err != nil {
		t.Fatalf("compute budget: %v", err)
	}
	if !budget.Equal(decimal.RequireFromString("787.50")) {
		t.Fatalf("budget = %s, want 787.50", budget)
	}

	w, err := f.store.GetWorld(ctx, f.worldID)
	if err != nil {
		t.Fatalf("get world: %v", err)
	}
	if w.Year != 1200 {
		t.Fatalf("expected year to advance to 1200, got %d", w.Year)
	}
	if w.Description != "Granaries line the river and famine is a memory.\n\nCanal opens." {
		t.Fatalf("unexpected description %q", w.Description)
	}
	if res.World != w.Description {
		t.Fatalf("result world %q differs from stored %q", res.World, w.Description)
	}

	turns, err := f.store.ListTurns(ctx, f.worldID, 0)
	if err != nil || len(turns) != 1 {
		t.Fatalf("expected one logged turn, got %+v, %v", turns, err)
	}
	if turns[0].ID != res.TurnID || !turns[0].EstimatedCost.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected turn log %+v", turns[0])
	}
}

func TestResolveInitiativeDegradedFinancials(t *testing.T) {
	tests := []struct {
		name           string
		financial      string
		wantBalance    string
		wantMultiplier string
	}{
		{name: "missing cost", financial: `{"money_multiplier_change": 0.10}`, wantBalance: "1000.00", wantMultiplier: "1.10"},
		{name: "empty values", financial: `{"estimated_cost": "", "money_multiplier_change": ""}`, wantBalance: "1000.00", wantMultiplier: "1.00"},
		{name: "prose values", financial: `{"estimated_cost": "a lot", "money_multiplier_change": "up"}`, wantBalance: "1000.00", wantMultiplier: "1.00"},
		{name: "no financial section", financial: `null`, wantBalance: "1000.00", wantMultiplier: "1.00"},
		{name: "cost only", financial: `{"estimated_cost": "30"}`, wantBalance: "970.00", wantMultiplier: "1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := `{"world_changes": {"facts": "Quiet year.", "npc_perspective": "Nothing much."}, "financial_evaluation": ` + tt.financial + `}`
			f := newFixture(t, &mockOracle{changeReply: reply, metricsReply: "{}"}, false)

			res, err := f.engine.ResolveInitiative(context.Background(), f.initiative("Wait"))
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !res.Balance.Equal(decimal.RequireFromString(tt.wantBalance)) {
				t.Fatalf("balance = %s, want %s", res.Balance, tt.wantBalance)
			}
			if !res.Multiplier.Equal(decimal.RequireFromString(tt.wantMultiplier)) {
				t.Fatalf("multiplier = %s, want %s", res.Multiplier, tt.wantMultiplier)
			}
		})
	}
}

func TestResolveInitiativeMissingPerspectiveFallsBackToFacts(t *testing.T) {
	reply := `{"world_changes": {"facts": "Bridges everywhere."}}`
	f := newFixture(t, &mockOracle{changeReply: reply, metricsReply: "{}"}, false)

	res, err := f.engine.ResolveInitiative(context.Background(), f.initiative("Build bridges"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Narrative != "Bridges everywhere." {
		t.Fatalf("unexpected narrative %q", res.Narrative)
	}
}

func TestResolveInitiativeFailuresWriteNothing(t *testing.T) {
	oracleDown := errors.New("503 from upstream")

	tests := []struct {
		name   string
		oracle *mockOracle
		check  func(t *testing.T, err error)
	}{
		{
			name:   "oracle unavailable",
			oracle: &mockOracle{changeErr: &oracle.CallError{Op: oracle.PromptWorldChange, Err: oracleDown}},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, oracle.ErrUnavailable) {
					t.Fatalf("expected ErrUnavailable, got %v", err)
				}
			},
		},
		{
			name:   "reply is not a document",
			oracle: &mockOracle{changeReply: "I cannot help with that.", metricsReply: "{}"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrMissingFacts) {
					t.Fatalf("expected ErrMissingFacts, got %v", err)
				}
			},
		},
		{
			name:   "facts missing",
			oracle: &mockOracle{changeReply: `{"world_changes": {"npc_perspective": "Hm."}, "financial_evaluation": {"estimated_cost": 10}}`, metricsReply: "{}"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrMissingFacts) {
					t.Fatalf("expected ErrMissingFacts, got %v", err)
				}
			},
		},
		{
			name:   "unparseable metric delta",
			oracle: &mockOracle{changeReply: judgmentReply, metricsReply: `{"economy_metric": "+", "security_metric": "much better"}`},
			check: func(t *testing.T, err error) {
				var parseErr *metrics.ParseError
				if !errors.As(err, &parseErr) || parseErr.Key != metrics.KeySecurity {
					t.Fatalf("expected ParseError for security, got %v", err)
				}
			},
		},
		{
			name:   "metrics oracle unavailable",
			oracle: &mockOracle{changeReply: judgmentReply, metricsErr: &oracle.CallError{Op: oracle.PromptMetricsUpdate, Err: oracleDown}},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, oracle.ErrUnavailable) {
					t.Fatalf("expected ErrUnavailable, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.oracle, true)
			_, err := f.engine.ResolveInitiative(context.Background(), f.initiative("Raise taxes"))
			if err == nil {
				t.Fatalf("expected error")
			}
			tt.check(t, err)
			f.assertUntouched(t)
		})
	}
}

func TestResolveInitiativeMalformedMetricsKeepsCounters(t *testing.T) {
	f := newFixture(t, &mockOracle{changeReply: judgmentReply, metricsReply: "metrics unchanged, sorry"}, false)

	res, err := f.engine.ResolveInitiative(context.Background(), f.initiative("Hold a census"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	five := metrics.Snapshot{Economy: 5, SocialStability: 5, Ecology: 5, Security: 5, PoliticalSupport: 5}
	if res.Metrics != five {
		t.Fatalf("expected unchanged metrics, got %+v", res.Metrics)
	}
}

func TestResolveInitiativeNewsFailureKeepsTurn(t *testing.T) {
	o := &mockOracle{changeReply: judgmentReply, metricsReply: "{}", newsErr: errors.New("quota")}
	f := newFixture(t, o, true)

	res, err := f.engine.ResolveInitiative(context.Background(), f.initiative("Open a school"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.News != "" {
		t.Fatalf("expected no news, got %q", res.News)
	}
	w, err := f.store.GetWorld(context.Background(), f.worldID)
	if err != nil || w.Description != "Granaries line the river and famine is a memory." {
		t.Fatalf("unexpected world %+v, %v", w, err)
	}
}

type failingTxStore struct {
	store.Store
	err error
}

func (s *failingTxStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.err
}

func TestResolveInitiativePersistenceFailure(t *testing.T) {
	o := &mockOracle{changeReply: judgmentReply, metricsReply: deltaReply}
	f := newFixture(t, o, false)
	diskFull := errors.New("database or disk is full")
	f.engine = NewEngine(&failingTxStore{Store: f.store, err: diskFull}, o, Options{Logger: telemetry.Discard()})

	_, err := f.engine.ResolveInitiative(context.Background(), f.initiative("Mint coins"))
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, diskFull) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	f.assertUntouched(t)
}

func TestResolveInitiativeRejectsEmptyText(t *testing.T) {
	o := &mockOracle{}
	f := newFixture(t, o, false)
	if _, err := f.engine.ResolveInitiative(context.Background(), f.initiative("  ")); !errors.Is(err, ErrEmptyInitiative) {
		t.Fatalf("expected ErrEmptyInitiative, got %v", err)
	}
	if len(o.budgets) != 0 {
		t.Fatalf("oracle should not be called")
	}
}

func TestConcurrentTurnsForOneWorldAreSerialized(t *testing.T) {
	reply := `{"world_changes": {"facts": "Time passes."}, "financial_evaluation": {"estimated_cost": 100, "money_multiplier_change": 0}}`
	o := &mockOracle{changeReply: reply, metricsReply: "{}"}
	f := newFixture(t, o, false)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.ResolveInitiative(context.Background(), f.initiative("Spend"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}

	budgets := append([]string(nil), o.budgets...)
	sort.Strings(budgets)
	if strings.Join(budgets, ",") != "1000.00,900.00" {
		t.Fatalf("turns interleaved: oracle saw budgets %v", o.budgets)
	}
	final, err := f.engine.ComputeBudget(context.Background(), f.worldID)
	if err != nil || !final.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("final budget = %s, %v", final, err)
	}
}
