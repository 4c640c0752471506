package app

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/blef1o/tunebank/internal/app/authority"
	"github.com/blef1o/tunebank/internal/app/httpapi"
	"github.com/blef1o/tunebank/internal/app/ledger"
	"github.com/blef1o/tunebank/internal/app/services/activity"
	"github.com/blef1o/tunebank/internal/app/services/catalog"
	"github.com/blef1o/tunebank/internal/app/services/exchange"
	"github.com/blef1o/tunebank/internal/app/services/treasury"
	"github.com/blef1o/tunebank/internal/app/storage"
	"github.com/blef1o/tunebank/internal/app/storage/memory"
	"github.com/blef1o/tunebank/internal/app/system"
	"github.com/blef1o/tunebank/pkg/logger"
)

// Config selects the economy's accounts and supply, plus the HTTP surface.
type Config struct {
	// SystemAccount holds unsold supply and receives listen payments.
	// Defaults to "system".
	SystemAccount string
	// AuthorityAccount curates the catalog and may withdraw surplus.
	// Defaults to "admin".
	AuthorityAccount string
	// InitialSupply is the total credit supply in whole credits.
	// Defaults to 1,000,000.
	InitialSupply *big.Int
	// ListenAddr is the HTTP listen address. Empty disables the server;
	// the handler is still built and exposed for tests and embedding.
	ListenAddr string
	API        httpapi.Config
}

// Stores encapsulates persistence dependencies. A nil journal defaults to
// the in-memory implementation.
type Stores struct {
	Journal storage.JournalStore
}

// Application ties the tunebank services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Authority authority.Authority
	Catalog   *catalog.Service
	Activity  *activity.Tracker
	Credits   *ledger.TokenLedger
	Reserve   *ledger.Vault
	Treasury  *treasury.Service
	Journal   storage.JournalStore
	Handler   http.Handler
}

// New builds a fully initialised application with the provided stores.
func New(cfg Config, stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if cfg.SystemAccount == "" {
		cfg.SystemAccount = "system"
	}
	if cfg.AuthorityAccount == "" {
		cfg.AuthorityAccount = "admin"
	}
	if cfg.InitialSupply == nil {
		cfg.InitialSupply = big.NewInt(1_000_000)
	}
	if stores.Journal == nil {
		stores.Journal = memory.New()
	}

	auth, err := authority.NewStatic(cfg.AuthorityAccount)
	if err != nil {
		return nil, fmt.Errorf("configure authority: %w", err)
	}

	supply, err := exchange.ToUnits(cfg.InitialSupply)
	if err != nil {
		return nil, fmt.Errorf("initial supply: %w", err)
	}
	credits, err := ledger.NewTokenLedger(cfg.SystemAccount, supply)
	if err != nil {
		return nil, fmt.Errorf("mint supply: %w", err)
	}
	reserve := ledger.NewVault()

	cat := catalog.New(auth, log.WithField("component", "catalog"))
	tracker := activity.New()

	tre, err := treasury.New(cfg.SystemAccount, cat, tracker, credits, reserve, auth, stores.Journal, log.WithField("component", "treasury"))
	if err != nil {
		return nil, fmt.Errorf("build treasury: %w", err)
	}

	handler, err := httpapi.NewHandler(cfg.API, tre, cat, credits, stores.Journal, auth, log.WithField("component", "httpapi"))
	if err != nil {
		return nil, fmt.Errorf("build handler: %w", err)
	}

	manager := system.NewManager()
	for _, name := range []string{"catalog", "treasury"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	if cfg.ListenAddr != "" {
		server := httpapi.NewServer(cfg.ListenAddr, handler, log.WithField("component", "httpapi"))
		if err := manager.Register(server); err != nil {
			return nil, fmt.Errorf("register httpapi: %w", err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Authority: auth,
		Catalog:   cat,
		Activity:  tracker,
		Credits:   credits,
		Reserve:   reserve,
		Treasury:  tre,
		Journal:   stores.Journal,
		Handler:   handler,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
