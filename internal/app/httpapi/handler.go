// Package httpapi exposes the tunebank REST API. Reads on the song
// catalog are public; everything that touches an account or the
// treasury requires a bearer token whose subject is the acting account.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/blef1o/tunebank/internal/app/authority"
	"github.com/blef1o/tunebank/internal/app/domain/money"
	"github.com/blef1o/tunebank/internal/app/ledger"
	"github.com/blef1o/tunebank/internal/app/metrics"
	"github.com/blef1o/tunebank/internal/app/services/catalog"
	"github.com/blef1o/tunebank/internal/app/services/treasury"
	"github.com/blef1o/tunebank/internal/app/storage"
	"github.com/blef1o/tunebank/pkg/logger"
)

// Config carries the handler's HTTP-level knobs.
type Config struct {
	JWTSecret         []byte
	RequestsPerSecond int
	Burst             int
	AuditWindow       int
	AuditFile         string
}

// Handler bundles HTTP endpoints for the application services.
type Handler struct {
	treasury *treasury.Service
	catalog  *catalog.Service
	credits  ledger.Ledger
	journal  storage.JournalStore
	auth     authority.Authority
	audit    *auditLog
	log      *logger.Logger
}

// NewHandler wires the services into a routed, authenticated handler.
func NewHandler(cfg Config, tre *treasury.Service, cat *catalog.Service, credits ledger.Ledger, journal storage.JournalStore, auth authority.Authority, log *logger.Logger) (http.Handler, error) {
	if tre == nil || cat == nil || credits == nil || auth == nil {
		return nil, fmt.Errorf("treasury, catalog, ledger and authority are required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	sink, err := newFileAuditSink(cfg.AuditFile)
	if err != nil {
		return nil, fmt.Errorf("open audit sink: %w", err)
	}
	h := &Handler{
		treasury: tre,
		catalog:  cat,
		credits:  credits,
		journal:  journal,
		auth:     auth,
		audit:    newAuditLog(cfg.AuditWindow, sink),
		log:      log,
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond * 2
	}
	limiter := newRateLimiter(cfg.RequestsPerSecond, cfg.Burst)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/songs", h.listSongs).Methods(http.MethodGet)
	r.HandleFunc("/songs/{slot}", h.getSong).Methods(http.MethodGet)

	authed := r.PathPrefix("/").Subrouter()
	authed.Use(authMiddleware(cfg.JWTSecret, log), limiter.middleware, h.audit.middleware)
	authed.HandleFunc("/songs", h.addSong).Methods(http.MethodPost)
	authed.HandleFunc("/songs/{slot}", h.removeSong).Methods(http.MethodDelete)
	authed.HandleFunc("/accounts/{account}/buy", h.buy).Methods(http.MethodPost)
	authed.HandleFunc("/accounts/{account}/redeem", h.redeem).Methods(http.MethodPost)
	authed.HandleFunc("/accounts/{account}/listens", h.listen).Methods(http.MethodPost)
	authed.HandleFunc("/accounts/{account}/ratings", h.rate).Methods(http.MethodPost)
	authed.HandleFunc("/accounts/{account}/balance", h.balance).Methods(http.MethodGet)
	authed.HandleFunc("/accounts/{account}/history", h.history).Methods(http.MethodGet)
	authed.HandleFunc("/accounts/{account}/journal", h.accountJournal).Methods(http.MethodGet)
	authed.HandleFunc("/treasury", h.treasuryStats).Methods(http.MethodGet)
	authed.HandleFunc("/treasury/withdraw", h.withdraw).Methods(http.MethodPost)
	authed.HandleFunc("/admin/audit", h.auditTrail).Methods(http.MethodGet)

	return metrics.InstrumentHandler(r), nil
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Catalog ----------------------------------------------------------------

type songDetails struct {
	Slot          int      `json:"slot"`
	Name          string   `json:"name"`
	Text          string   `json:"text"`
	LengthSeconds int64    `json:"length_seconds"`
	TimesListened int64    `json:"times_listened"`
	AverageRating int64    `json:"average_rating"`
	Value         *big.Int `json:"value"`
}

func (h *Handler) listSongs(w http.ResponseWriter, _ *http.Request) {
	entries := h.catalog.List()
	details := make([]songDetails, 0, len(entries))
	for _, entry := range entries {
		value, err := h.catalog.Value(entry.Slot)
		if err != nil {
			continue
		}
		details = append(details, songDetails{
			Slot:          entry.Slot,
			Name:          entry.Song.Name,
			Text:          entry.Song.Text,
			LengthSeconds: entry.Song.LengthSeconds,
			TimesListened: entry.Song.TimesListened,
			AverageRating: entry.Song.AverageRating(),
			Value:         value,
		})
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) getSong(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotFrom(w, r)
	if !ok {
		return
	}
	sng, err := h.catalog.Get(slot)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	value, err := h.catalog.Value(slot)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, songDetails{
		Slot:          slot,
		Name:          sng.Name,
		Text:          sng.Text,
		LengthSeconds: sng.LengthSeconds,
		TimesListened: sng.TimesListened,
		AverageRating: sng.AverageRating(),
		Value:         value,
	})
}

func (h *Handler) addSong(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name          string `json:"name"`
		Text          string `json:"text"`
		LengthSeconds int64  `json:"length_seconds"`
		BaseValue     int64  `json:"base_value"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	slot, err := h.treasury.AddSong(callerFrom(r.Context()), payload.Name, payload.Text, payload.LengthSeconds, payload.BaseValue)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	metrics.SetCatalogSize(h.catalog.Count())
	writeJSON(w, http.StatusCreated, map[string]int{"slot": slot})
}

func (h *Handler) removeSong(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotFrom(w, r)
	if !ok {
		return
	}
	if err := h.treasury.RemoveSong(callerFrom(r.Context()), slot); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	metrics.SetCatalogSize(h.catalog.Count())
	w.WriteHeader(http.StatusNoContent)
}

// --- Accounts ---------------------------------------------------------------

func (h *Handler) buy(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	var payload struct {
		Credits string `json:"credits"`
		Payment string `json:"payment"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	credits, err := money.Parse(payload.Credits)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("credits: %w", err))
		return
	}
	payment, err := money.Parse(payload.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("payment: %w", err))
		return
	}

	if err := h.treasury.Buy(r.Context(), account, credits, payment); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*big.Int{"balance": h.credits.BalanceOf(account)})
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	var payload struct {
		Credits string `json:"credits"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	credits, err := money.Parse(payload.Credits)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("credits: %w", err))
		return
	}

	if err := h.treasury.Redeem(r.Context(), account, credits); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*big.Int{"balance": h.credits.BalanceOf(account)})
}

func (h *Handler) listen(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	var payload struct {
		Slot int `json:"slot"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.treasury.Listen(r.Context(), account, payload.Slot); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*big.Int{"balance": h.credits.BalanceOf(account)})
}

func (h *Handler) rate(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	var payload struct {
		Slot int   `json:"slot"`
		Rate int64 `json:"rate"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.treasury.Rate(r.Context(), account, payload.Slot, payload.Rate); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	profile := h.treasury.Profile(account)
	writeJSON(w, http.StatusOK, map[string]*big.Int{
		"balance":           h.credits.BalanceOf(account),
		"credits_purchased": profile.CreditsPurchased,
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"history": h.treasury.History(account)})
}

func (h *Handler) accountJournal(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	if h.journal == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("journal not configured"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	entries, err := h.journal.ListEntries(r.Context(), account, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Treasury ---------------------------------------------------------------

func (h *Handler) treasuryStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.treasury.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	paid, err := h.treasury.Withdraw(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*big.Int{"paid": paid})
}

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Require(callerFrom(r.Context())); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, h.audit.list(limit))
}

// --- Helpers ----------------------------------------------------------------

// authorizedAccount resolves the {account} path variable and checks the
// caller may act on it. The authority may act on any account.
func (h *Handler) authorizedAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	account := mux.Vars(r)["account"]
	if account == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("account is required"))
		return "", false
	}
	caller := callerFrom(r.Context())
	if caller != account && !h.auth.IsAuthority(caller) {
		writeError(w, http.StatusForbidden, fmt.Errorf("caller %s may not act on account %s", caller, account))
		return "", false
	}
	return account, true
}

func slotFrom(w http.ResponseWriter, r *http.Request) (int, bool) {
	slot, err := strconv.Atoi(mux.Vars(r)["slot"])
	if err != nil || slot < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("slot must be a non-negative integer"))
		return 0, false
	}
	return slot, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, treasury.ErrSongUnavailable), errors.Is(err, catalog.ErrSongNotFound):
		return http.StatusNotFound
	case errors.Is(err, authority.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, treasury.ErrAlreadyRated):
		return http.StatusConflict
	case errors.Is(err, treasury.ErrInsufficientBalance),
		errors.Is(err, treasury.ErrInsufficientSupply),
		errors.Is(err, treasury.ErrInsufficientReserve):
		return http.StatusConflict
	case errors.Is(err, treasury.ErrInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, treasury.ErrTransferFailed), errors.Is(err, treasury.ErrPayoutFailed):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
