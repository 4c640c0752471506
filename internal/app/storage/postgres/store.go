package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/blef1o/tunebank/internal/app/domain/journal"
	"github.com/blef1o/tunebank/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
// Amounts are persisted as NUMERIC(78,0) so the full 256-bit range
// round-trips without loss.
type Store struct {
	db *sql.DB
}

var _ storage.JournalStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AppendEntry(ctx context.Context, entry journal.Entry) (journal.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, kind, account, song_slot, song_name, credits, reserve, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, string(entry.Kind), entry.Account, entry.SongSlot, entry.SongName, amountString(entry.Credits), amountString(entry.Reserve), entry.CreatedAt)
	if err != nil {
		return journal.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, account string, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, account, song_slot, song_name, credits, reserve, created_at
		FROM journal_entries
		WHERE $1 = '' OR account = $1
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($2, -1)
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []journal.Entry
	for rows.Next() {
		var (
			entry      journal.Entry
			kindRaw    string
			creditsRaw string
			reserveRaw string
		)
		if err := rows.Scan(&entry.ID, &kindRaw, &entry.Account, &entry.SongSlot, &entry.SongName, &creditsRaw, &reserveRaw, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Kind = journal.Kind(kindRaw)
		if entry.Credits, err = parseAmount(creditsRaw); err != nil {
			return nil, err
		}
		if entry.Reserve, err = parseAmount(reserveRaw); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", raw)
	}
	return v, nil
}
