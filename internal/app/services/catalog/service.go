// Package catalog owns the song arena: creation, valuation, activity
// counters and removal by swap-compaction.
package catalog

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/blef1o/tunebank/internal/app/authority"
	"github.com/blef1o/tunebank/internal/app/domain/money"
	"github.com/blef1o/tunebank/internal/app/domain/song"
	"github.com/blef1o/tunebank/pkg/logger"
)

var (
	// ErrSongNotFound is returned for slots that are out of range or were
	// cleared by compaction.
	ErrSongNotFound = errors.New("song not found")
	// ErrInvalidSong is returned when creation input fails validation.
	ErrInvalidSong = errors.New("invalid song")
	// ErrInvalidRating is returned for ratings outside [1,10].
	ErrInvalidRating = errors.New("rating must be between 1 and 10")
)

// Each distinct listener adds 5% of the base value to the price:
// base/incrementDivisor truncated, times valueStepFactor.
const (
	incrementDivisor = 100
	valueStepFactor  = 5
)

// Entry pairs a song snapshot with the slot it currently occupies.
type Entry struct {
	Slot int       `json:"slot"`
	Song song.Song `json:"song"`
}

// Service manages the song arena.
//
// Slots are dense: removing a song moves the song in the highest live slot
// into the hole and shrinks the arena. Slot numbers are therefore NOT
// stable across removals; callers caching a slot for the song that got
// moved must refresh it. This is a deliberate compaction trade-off carried
// over from the upstream storage layout, not a bug.
//
// AddSong and RemoveSong are reached through the treasury facade, which
// serializes curation with the economic operations. The lock here only
// keeps individual reads consistent.
type Service struct {
	auth authority.Authority
	log  *logger.Logger

	mu    sync.RWMutex
	songs []song.Song
}

// New constructs a catalog service.
func New(auth authority.Authority, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{auth: auth, log: log}
}

// AddSong validates and appends a new song, returning its slot. Restricted
// to the authority.
func (s *Service) AddSong(caller, name, text string, lengthSeconds, baseValue int64) (int, error) {
	if err := s.auth.Require(caller); err != nil {
		return 0, err
	}

	name = strings.TrimSpace(name)
	text = strings.TrimSpace(text)
	if name == "" || text == "" {
		return 0, fmt.Errorf("%w: name and text are required", ErrInvalidSong)
	}
	if lengthSeconds <= song.MinLengthSeconds {
		return 0, fmt.Errorf("%w: length must exceed %d seconds", ErrInvalidSong, song.MinLengthSeconds)
	}
	if baseValue < song.MinBaseValue {
		return 0, fmt.Errorf("%w: base value must be at least %d units", ErrInvalidSong, song.MinBaseValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := len(s.songs)
	s.songs = append(s.songs, song.Song{
		Name:          name,
		Text:          text,
		LengthSeconds: lengthSeconds,
		RatingSum:     5,
		RatingCount:   1,
		BaseValue:     baseValue,
		Active:        true,
	})

	s.log.WithField("slot", slot).WithField("name", name).Info("song added")
	return slot, nil
}

// RemoveSong deletes the song at the given slot by swap-compaction: the
// song in the highest live slot takes its place and the arena shrinks by
// one. Restricted to the authority.
func (s *Service) RemoveSong(caller string, slot int) error {
	if err := s.auth.Require(caller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slot < 0 || slot >= len(s.songs) {
		return fmt.Errorf("%w: slot %d", ErrSongNotFound, slot)
	}

	last := len(s.songs) - 1
	removed := s.songs[slot].Name
	s.songs[slot] = s.songs[last]
	s.songs[last] = song.Song{}
	s.songs = s.songs[:last]

	s.log.WithField("slot", slot).WithField("name", removed).Info("song removed")
	return nil
}

// Get returns a snapshot of the song at the slot.
func (s *Service) Get(slot int) (song.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(slot)
}

// List returns snapshots of every live song with its current slot.
func (s *Service) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, len(s.songs))
	for i, sng := range s.songs {
		entries[i] = Entry{Slot: i, Song: sng}
	}
	return entries
}

// Count returns the number of live songs.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.songs)
}

// Value returns the current listen price in smallest units:
// base + (base*timesListened/100)*5. The curve grows by 5% of the base
// value per distinct listener, linearly, and equals the base value while
// the song is unlistened.
func (s *Service) Value(slot int) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sng, err := s.getLocked(slot)
	if err != nil {
		return nil, err
	}
	return value(sng)
}

// RecordListen bumps the listen counter. Callers are responsible for
// invoking it at most once per distinct listener.
func (s *Service) RecordListen(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getLocked(slot); err != nil {
		return err
	}
	s.songs[slot].TimesListened++
	return nil
}

// RecordRating adds a rating in [1,10] to the song's aggregate.
func (s *Service) RecordRating(slot int, rate int64) error {
	if rate < 1 || rate > 10 {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, rate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getLocked(slot); err != nil {
		return err
	}
	s.songs[slot].RatingSum += rate
	s.songs[slot].RatingCount++
	return nil
}

// AverageRating returns the floored average rating for the slot.
func (s *Service) AverageRating(slot int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sng, err := s.getLocked(slot)
	if err != nil {
		return 0, err
	}
	return sng.AverageRating(), nil
}

func (s *Service) getLocked(slot int) (song.Song, error) {
	if slot < 0 || slot >= len(s.songs) || !s.songs[slot].Active {
		return song.Song{}, fmt.Errorf("%w: slot %d", ErrSongNotFound, slot)
	}
	return s.songs[slot], nil
}

func value(sng song.Song) (*big.Int, error) {
	base := big.NewInt(sng.BaseValue)
	increment, err := money.Mul(base, big.NewInt(sng.TimesListened))
	if err != nil {
		return nil, err
	}
	increment.Div(increment, big.NewInt(incrementDivisor))

	step, err := money.Mul(increment, big.NewInt(valueStepFactor))
	if err != nil {
		return nil, err
	}
	return money.Add(base, step)
}
