package httpapi

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blef1o/tunebank/internal/app/authority"
	"github.com/blef1o/tunebank/internal/app/ledger"
	"github.com/blef1o/tunebank/internal/app/services/activity"
	"github.com/blef1o/tunebank/internal/app/services/catalog"
	"github.com/blef1o/tunebank/internal/app/services/exchange"
	"github.com/blef1o/tunebank/internal/app/services/treasury"
	"github.com/blef1o/tunebank/internal/app/storage/memory"
)

var testSecret = []byte("handler-test-secret")

type testEnv struct {
	handler http.Handler
	reserve *ledger.Vault
	credits *ledger.TokenLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

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
	store := memory.New()

	tre, err := treasury.New("system", cat, activity.New(), credits, reserve, auth, store, nil)
	if err != nil {
		t.Fatalf("treasury: %v", err)
	}
	handler, err := NewHandler(Config{JWTSecret: testSecret}, tre, cat, credits, store, auth, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return &testEnv{handler: handler, reserve: reserve, credits: credits}
}

func (e *testEnv) request(t *testing.T, account, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body := bytes.NewBuffer(nil)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if account != "" {
		token, err := GenerateToken(testSecret, account, time.Hour)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) addSong(t *testing.T, name string, baseValue int64) int {
	t.Helper()
	resp := e.request(t, "admin", http.MethodPost, "/songs", map[string]any{
		"name":           name,
		"text":           "lyrics",
		"length_seconds": 180,
		"base_value":     baseValue,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("add song: status %d body %s", resp.Code, resp.Body)
	}
	var out struct {
		Slot int `json:"slot"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal slot: %v", err)
	}
	return out.Slot
}

func (e *testEnv) fundAndBuy(t *testing.T, account string, credits int64) {
	t.Helper()
	cost, err := exchange.ToReserveUnits(big.NewInt(credits))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if err := e.reserve.Fund(account, cost); err != nil {
		t.Fatalf("fund: %v", err)
	}
	resp := e.request(t, account, http.MethodPost, "/accounts/"+account+"/buy", map[string]string{
		"credits": big.NewInt(credits).String(),
		"payment": cost.String(),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("buy: status %d body %s", resp.Code, resp.Body)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)
	if resp := env.request(t, "", http.MethodGet, "/healthz", nil); resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
}

func TestSongReadsArePublic(t *testing.T) {
	env := newTestEnv(t)
	slot := env.addSong(t, "first", 100)

	resp := env.request(t, "", http.MethodGet, "/songs", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list status = %d", resp.Code)
	}
	var listed []songDetails
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "first" {
		t.Fatalf("listed = %+v", listed)
	}
	if listed[0].Value.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("value = %s, want 100", listed[0].Value)
	}

	if resp := env.request(t, "", http.MethodGet, "/songs/0", nil); resp.Code != http.StatusOK {
		t.Fatalf("get slot %d status = %d", slot, resp.Code)
	}
}

func TestMutationsRequireToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.request(t, "", http.MethodPost, "/songs", map[string]any{"name": "x"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	token, err := GenerateToken(testSecret, "alice", -time.Minute)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/accounts/alice/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	env.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestAddSongRequiresAuthority(t *testing.T) {
	env := newTestEnv(t)
	resp := env.request(t, "alice", http.MethodPost, "/songs", map[string]any{
		"name":           "first",
		"text":           "lyrics",
		"length_seconds": 180,
		"base_value":     100,
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.Code)
	}
}

func TestAccountsCannotActOnOthers(t *testing.T) {
	env := newTestEnv(t)
	resp := env.request(t, "mallory", http.MethodPost, "/accounts/alice/buy", map[string]string{
		"credits": "1", "payment": "0",
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.Code)
	}
}

func TestBuyListenRateFlow(t *testing.T) {
	env := newTestEnv(t)
	slot := env.addSong(t, "first", 100)
	env.fundAndBuy(t, "alice", 1)

	resp := env.request(t, "alice", http.MethodPost, "/accounts/alice/listens", map[string]int{"slot": slot})
	if resp.Code != http.StatusOK {
		t.Fatalf("listen: status %d body %s", resp.Code, resp.Body)
	}

	resp = env.request(t, "alice", http.MethodGet, "/accounts/alice/history", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("history status = %d", resp.Code)
	}
	var hist struct {
		History []string `json:"history"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &hist); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(hist.History) != 1 || hist.History[0] != "first" {
		t.Fatalf("history = %v", hist.History)
	}

	resp = env.request(t, "alice", http.MethodPost, "/accounts/alice/ratings", map[string]int{"slot": slot, "rate": 8})
	if resp.Code != http.StatusNoContent {
		t.Fatalf("rate: status %d body %s", resp.Code, resp.Body)
	}
	resp = env.request(t, "alice", http.MethodPost, "/accounts/alice/ratings", map[string]int{"slot": slot, "rate": 5})
	if resp.Code != http.StatusConflict {
		t.Fatalf("second rate: status %d, want 409", resp.Code)
	}

	resp = env.request(t, "alice", http.MethodGet, "/accounts/alice/journal", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("journal status = %d", resp.Code)
	}
	var entries []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal journal: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("journal entries = %d, want 3", len(entries))
	}
}

func TestBuyWrongPaymentReturns402(t *testing.T) {
	env := newTestEnv(t)
	resp := env.request(t, "alice", http.MethodPost, "/accounts/alice/buy", map[string]string{
		"credits": "1", "payment": "5",
	})
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.Code)
	}
}

func TestListenUnknownSlotReturns404(t *testing.T) {
	env := newTestEnv(t)
	resp := env.request(t, "alice", http.MethodPost, "/accounts/alice/listens", map[string]int{"slot": 7})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestRemoveSongCompactsSlots(t *testing.T) {
	env := newTestEnv(t)
	env.addSong(t, "first", 100)
	env.addSong(t, "second", 100)
	env.addSong(t, "third", 100)

	resp := env.request(t, "admin", http.MethodDelete, "/songs/0", nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("remove: status %d body %s", resp.Code, resp.Body)
	}

	resp = env.request(t, "", http.MethodGet, "/songs/0", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get slot 0 status = %d", resp.Code)
	}
	var details songDetails
	if err := json.Unmarshal(resp.Body.Bytes(), &details); err != nil {
		t.Fatalf("unmarshal song: %v", err)
	}
	if details.Name != "third" {
		t.Fatalf("slot 0 now holds %q, want third", details.Name)
	}
	if resp := env.request(t, "", http.MethodGet, "/songs/2", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("slot 2 status = %d, want 404", resp.Code)
	}
}

func TestWithdrawEndpoint(t *testing.T) {
	env := newTestEnv(t)
	slot := env.addSong(t, "first", 100)
	env.fundAndBuy(t, "alice", 1)
	if resp := env.request(t, "alice", http.MethodPost, "/accounts/alice/listens", map[string]int{"slot": slot}); resp.Code != http.StatusOK {
		t.Fatalf("listen: status %d", resp.Code)
	}

	if resp := env.request(t, "alice", http.MethodPost, "/treasury/withdraw", nil); resp.Code != http.StatusForbidden {
		t.Fatalf("non-authority withdraw status = %d, want 403", resp.Code)
	}

	resp := env.request(t, "admin", http.MethodPost, "/treasury/withdraw", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("withdraw: status %d body %s", resp.Code, resp.Body)
	}
	var out struct {
		Paid *big.Int `json:"paid"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal paid: %v", err)
	}
	if out.Paid.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("paid = %s, want 100", out.Paid)
	}
}

func TestTreasuryStats(t *testing.T) {
	env := newTestEnv(t)
	env.fundAndBuy(t, "alice", 2)

	resp := env.request(t, "alice", http.MethodGet, "/treasury", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var stats struct {
		CreditsOutstanding *big.Int `json:"credits_outstanding"`
		ReserveBalance     *big.Int `json:"reserve_balance"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.CreditsOutstanding.Cmp(stats.ReserveBalance) != 0 {
		t.Fatalf("outstanding %s != reserve %s", stats.CreditsOutstanding, stats.ReserveBalance)
	}
}

func TestAuditTrailIsAuthorityOnly(t *testing.T) {
	env := newTestEnv(t)
	env.fundAndBuy(t, "alice", 1)

	if resp := env.request(t, "alice", http.MethodGet, "/admin/audit", nil); resp.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.Code)
	}

	resp := env.request(t, "admin", http.MethodGet, "/admin/audit", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var entries []auditEntry
	if err := json.Unmarshal(resp.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal audit: %v", err)
	}
	found := false
	for _, entry := range entries {
		if entry.Account == "alice" && entry.Path == "/accounts/alice/buy" {
			found = true
		}
	}
	if !found {
		t.Fatalf("buy not audited: %+v", entries)
	}
}
