package memory

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blef1o/tunebank/internal/app/domain/journal"
	"github.com/blef1o/tunebank/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu      sync.RWMutex
	entries []journal.Entry
}

var _ storage.JournalStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) AppendEntry(_ context.Context, entry journal.Entry) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Credits = cloneAmount(entry.Credits)
	entry.Reserve = cloneAmount(entry.Reserve)

	s.entries = append(s.entries, entry)
	return cloneEntry(entry), nil
}

func (s *Store) ListEntries(_ context.Context, account string, limit int) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]journal.Entry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		entry := s.entries[i]
		if account == "" || entry.Account == account {
			result = append(result, cloneEntry(entry))
		}
	}
	return result, nil
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneEntry(entry journal.Entry) journal.Entry {
	entry.Credits = cloneAmount(entry.Credits)
	entry.Reserve = cloneAmount(entry.Reserve)
	return entry
}
