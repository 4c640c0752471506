// Package storage declares the persistence contracts for tunebank's
// reporting data. The economic core keeps its authoritative state in
// memory; only the append-only operation journal is persisted.
package storage

import (
	"context"

	"github.com/blef1o/tunebank/internal/app/domain/journal"
)

// JournalStore persists completed-operation records.
type JournalStore interface {
	AppendEntry(ctx context.Context, entry journal.Entry) (journal.Entry, error)
	// ListEntries returns entries newest first. account filters when
	// non-empty; limit caps the result when positive.
	ListEntries(ctx context.Context, account string, limit int) ([]journal.Entry, error)
}
