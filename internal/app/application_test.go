package app

import (
	"context"
	"math/big"
	"testing"

	"github.com/blef1o/tunebank/internal/app/httpapi"
	"github.com/blef1o/tunebank/internal/app/services/exchange"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	application, err := New(Config{
		InitialSupply: big.NewInt(10),
		API:           httpapi.Config{JWTSecret: []byte("app-test-secret")},
	}, Stores{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return application
}

func TestApplicationLifecycle(t *testing.T) {
	application := newTestApp(t)

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := application.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestApplicationMintsConfiguredSupply(t *testing.T) {
	application := newTestApp(t)

	want, err := exchange.ToUnits(big.NewInt(10))
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	if got := application.Credits.TotalSupply(); got.Cmp(want) != 0 {
		t.Fatalf("total supply = %s, want %s", got, want)
	}
	if got := application.Credits.BalanceOf("system"); got.Cmp(want) != 0 {
		t.Fatalf("system balance = %s, want %s", got, want)
	}
}

func TestApplicationRequiresJWTSecret(t *testing.T) {
	if _, err := New(Config{}, Stores{}, nil); err == nil {
		t.Fatal("expected error for missing jwt secret")
	}
}

func TestApplicationEndToEndFlow(t *testing.T) {
	application := newTestApp(t)
	ctx := context.Background()

	slot, err := application.Treasury.AddSong("admin", "opening", "la la", 200, 100)
	if err != nil {
		t.Fatalf("add song: %v", err)
	}

	cost, err := exchange.ToReserveUnits(big.NewInt(1))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if err := application.Reserve.Fund("alice", cost); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := application.Treasury.Buy(ctx, "alice", big.NewInt(1), cost); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := application.Treasury.Listen(ctx, "alice", slot); err != nil {
		t.Fatalf("listen: %v", err)
	}

	entries, err := application.Journal.ListEntries(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("list journal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("journal entries = %d, want 2", len(entries))
	}
}
