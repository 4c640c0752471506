//go:build integration && postgres

package httpapi

import (
	"database/sql"
	"encoding/json"
	"math/big"
	"net/http"
	"os"
	"testing"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/blef1o/tunebank/internal/app/authority"
	"github.com/blef1o/tunebank/internal/app/ledger"
	"github.com/blef1o/tunebank/internal/app/services/activity"
	"github.com/blef1o/tunebank/internal/app/services/catalog"
	"github.com/blef1o/tunebank/internal/app/services/exchange"
	"github.com/blef1o/tunebank/internal/app/services/treasury"
	"github.com/blef1o/tunebank/internal/app/storage/postgres"
	"github.com/blef1o/tunebank/internal/platform/migrations"
)

// End-to-end flow against Postgres: migrations, the HTTP surface and the
// persisted journal together.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := migrations.Apply(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.Exec("TRUNCATE journal_entries"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	supply, err := exchange.ToUnits(big.NewInt(100))
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	credits, err := ledger.NewTokenLedger("system", supply)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	auth, err := authority.NewStatic("admin")
	if err != nil {
		t.Fatalf("authority: %v", err)
	}
	cat := catalog.New(auth, nil)
	reserve := ledger.NewVault()
	store := postgres.New(db)

	tre, err := treasury.New("system", cat, activity.New(), credits, reserve, auth, store, nil)
	if err != nil {
		t.Fatalf("treasury: %v", err)
	}
	handler, err := NewHandler(Config{JWTSecret: testSecret}, tre, cat, credits, store, auth, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	env := &testEnv{handler: handler, reserve: reserve, credits: credits}

	slot := env.addSong(t, "integration", 100)
	env.fundAndBuy(t, "alice", 2)
	if resp := env.request(t, "alice", http.MethodPost, "/accounts/alice/listens", map[string]int{"slot": slot}); resp.Code != http.StatusOK {
		t.Fatalf("listen: status %d body %s", resp.Code, resp.Body)
	}

	resp := env.request(t, "alice", http.MethodGet, "/accounts/alice/journal", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("journal status = %d", resp.Code)
	}
	var entries []struct {
		Kind    string `json:"kind"`
		Account string `json:"account"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal journal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("journal entries = %d, want 2", len(entries))
	}
	if entries[0].Kind != "listen" || entries[1].Kind != "buy" {
		t.Fatalf("entry kinds = %s, %s", entries[0].Kind, entries[1].Kind)
	}
}
