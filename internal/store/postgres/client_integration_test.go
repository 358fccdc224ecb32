//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"eraforge/internal/metrics"
	"eraforge/internal/store"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("ERAFORGE_TEST_DSN")
	if dsn == "" {
		t.Skip("ERAFORGE_TEST_DSN not set")
	}
	ctx := context.Background()
	client, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v", err)
	}
	t.Cleanup(func() { _ = client.Close(ctx) })
	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema (idempotent): %v", err)
	}
	return client
}

func TestEconomyExactRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)

	w, err := client.CreateWorld(ctx, -44, "Rome, the Ides of March.")
	if err != nil {
		t.Fatalf("create world: %v", err)
	}

	want := store.EconomicRecord{
		WorldID:    w.ID,
		Balance:    decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2")),
		Multiplier: decimal.RequireFromString("1.05"),
	}
	if err := client.AppendEconomy(ctx, want); err != nil {
		t.Fatalf("append economy: %v", err)
	}

	got, err := client.LatestEconomy(ctx, w.ID)
	if err != nil {
		t.Fatalf("latest economy: %v", err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("0.3")) || !got.Multiplier.Equal(want.Multiplier) {
		t.Fatalf("expected exact decimals, got %+v", got)
	}
}

func TestWithinTxCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)

	w, err := client.CreateWorld(ctx, 1066, "A channel crossing.")
	if err != nil {
		t.Fatalf("create world: %v", err)
	}

	err = client.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.UpdateWorld(ctx, w.ID, 1067, "A conquered kingdom."); err != nil {
			return err
		}
		if err := tx.AppendMetrics(ctx, w.ID, metrics.Snapshot{Security: 2}); err != nil {
			return err
		}
		return tx.RecordTurn(ctx, store.TurnRecord{
			ID:         uuid.NewString(),
			WorldID:    w.ID,
			Year:       1067,
			Initiative: "Build castles",
			Outcome:    "Stone keeps rise.",
			Balance:    decimal.NewFromInt(10),
			Multiplier: decimal.NewFromInt(1),
		})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	boom := errors.New("boom")
	err = client.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.UpdateWorld(ctx, w.ID, 1068, "Lost."); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	got, err := client.GetWorld(ctx, w.ID)
	if err != nil {
		t.Fatalf("get world: %v", err)
	}
	if got.Year != 1067 || got.Description != "A conquered kingdom." {
		t.Fatalf("unexpected world after commit/rollback: %+v", got)
	}

	turns, err := client.ListTurns(ctx, w.ID, 10)
	if err != nil || len(turns) != 1 {
		t.Fatalf("expected one turn, got %+v, %v", turns, err)
	}
}
