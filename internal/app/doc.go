// Package app composes the tunebank services into a running application.
//
// # Architecture Role
//
// The app package is the composition layer. It wires the credit economy
// together and manages its lifecycle; business rules live in the service
// packages below it.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── money/          # Bounded big.Int amounts
//	│   ├── song/           # Catalog entries and the valuation curve
//	│   ├── listener/       # Per-account profiles and listen history
//	│   └── journal/        # Reporting-only operation records
//	├── ledger/             # Credit balances and the external reserve
//	├── authority/          # Curator/authority checks
//	├── services/           # Business logic
//	│   ├── exchange/       # Credit/reserve unit conversion
//	│   ├── catalog/        # Song catalog with swap compaction
//	│   ├── activity/       # Write-once listened/rated flags
//	│   └── treasury/       # Buy, redeem, listen, rate, withdraw
//	├── storage/            # Journal store interface and implementations
//	│   ├── memory/         # In-memory journal
//	│   └── postgres/       # Persistent journal
//	├── httpapi/            # REST surface, auth, rate limiting, audit
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/tunebank/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      │           │
//	      │           └──► internal/app/domain/, ledger/, authority/
//	      │
//	      └──► internal/app/storage/ (journal persistence)
package app
