// Package habitstore loads and saves the habit document through a
// storage.Provider. Read failures never escape: a missing or malformed
// document yields the default state and a logged diagnostic.
package habitstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/habitflow/internal/apperr"
	"github.com/starford/habitflow/internal/checksum"
	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/metrics"
	"github.com/starford/habitflow/internal/models"
	"github.com/starford/habitflow/internal/storage"
)

// DefaultKey is the storage key of the habit document.
const DefaultKey = "habitflow_data"

// LoadResult is the outcome of Load. State is always usable.
type LoadResult struct {
	State    models.HabitState
	Found    bool   // a document existed under the key
	Corrupt  bool   // it existed but could not be read or parsed
	Checksum string // digest of the raw document, empty when not found
}

// Store is the persistence gateway for models.HabitState.
type Store struct {
	provider storage.Provider
	key      string
	logger   *slog.Logger
	defaults func() []models.Habit

	mu      sync.Mutex
	lastSum string
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaults replaces the habit catalog merged into every loaded state.
func WithDefaults(fn func() []models.Habit) Option {
	return func(s *Store) {
		if fn != nil {
			s.defaults = fn
		}
	}
}

// New creates a Store on top of provider.
func New(provider storage.Provider, opts ...Option) *Store {
	s := &Store{
		provider: provider,
		key:      DefaultKey,
		logger:   slog.Default(),
		defaults: ledger.DefaultHabits,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key in use.
func (s *Store) Key() string {
	return s.key
}

// DefaultState is the state of a first launch.
func (s *Store) DefaultState() models.HabitState {
	return models.HabitState{
		Habits: s.defaults(),
		Logs:   []models.HabitLog{},
		Streak: 0,
	}
}

// Load reads the document. Missing or malformed documents fall back to
// DefaultState; parsed ones get any missing default habits appended.
func (s *Store) Load(ctx context.Context) LoadResult {
	data, err := s.provider.Get(ctx, s.key)
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Info("habitstore: no saved state, using defaults", slog.String("key", s.key))
		metrics.RecordStore("load", "missing")
		return LoadResult{State: s.DefaultState()}
	}
	if err != nil {
		s.logger.Error("habitstore: failed to load habit state",
			slog.String("key", s.key), slog.String("error", err.Error()))
		metrics.RecordStore("load", "failed")
		return LoadResult{State: s.DefaultState(), Found: true, Corrupt: true}
	}

	sum := checksum.Sum(data)
	s.remember(sum)

	state, err := Decode(data)
	if err != nil {
		s.logger.Warn("habitstore: failed to parse habit state, using defaults",
			slog.String("key", s.key), slog.String("error", err.Error()))
		metrics.RecordStore("load", "corrupt")
		return LoadResult{State: s.DefaultState(), Found: true, Corrupt: true, Checksum: sum}
	}

	before := len(state.Habits)
	state.Habits = ledger.MergeDefaults(state.Habits, s.defaults())
	if added := len(state.Habits) - before; added > 0 {
		s.logger.Info("habitstore: merged missing default habits", slog.Int("added", added))
	}
	metrics.RecordStore("load", "ok")
	return LoadResult{State: state, Found: true, Checksum: sum}
}

// Save overwrites the whole document. The error is logged here as well so
// callers may treat persistence as best effort.
func (s *Store) Save(ctx context.Context, state models.HabitState) error {
	data, err := Encode(state)
	if err != nil {
		s.logger.Error("habitstore: failed to encode habit state", slog.String("error", err.Error()))
		metrics.RecordStore("save", "failed")
		return err
	}
	if err := s.provider.Set(ctx, s.key, data); err != nil {
		s.logger.Error("habitstore: failed to save habit state",
			slog.String("key", s.key), slog.String("error", err.Error()))
		metrics.RecordStore("save", "failed")
		return err
	}
	metrics.RecordStore("save", "ok")
	s.remember(checksum.Sum(data))
	return nil
}

// LastChecksum is the digest of the document most recently read or
// written by this Store. The watcher uses it to ignore its own writes.
func (s *Store) LastChecksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSum
}

func (s *Store) remember(sum string) {
	s.mu.Lock()
	s.lastSum = sum
	s.mu.Unlock()
}

// Encode serialises state in the persisted layout.
func Encode(state models.HabitState) ([]byte, error) {
	if state.Habits == nil {
		state.Habits = []models.Habit{}
	}
	logs := make([]models.HabitLog, len(state.Logs))
	for i, l := range state.Logs {
		if l.CompletedHabits == nil {
			l.CompletedHabits = []string{}
		}
		logs[i] = l
	}
	state.Logs = logs

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("habitstore: encode: %w", err)
	}
	return data, nil
}

// Decode parses a persisted document. Null collections become empty.
// Hand-edited documents may repeat a habit id within a day or repeat a
// date; both are collapsed so every date has one log holding a set.
func Decode(data []byte) (models.HabitState, error) {
	var state models.HabitState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.HabitState{}, fmt.Errorf("habitstore: decode: %w", err)
	}
	state.Logs = normalizeLogs(state.Logs)
	return state, nil
}

// normalizeLogs merges logs sharing a date into the first one, keeping the
// order ids were first seen, and drops repeated ids.
func normalizeLogs(logs []models.HabitLog) []models.HabitLog {
	out := make([]models.HabitLog, 0, len(logs))
	pos := make(map[string]int, len(logs))
	seen := make(map[string]map[string]struct{}, len(logs))

	for _, l := range logs {
		i, ok := pos[l.Date]
		if !ok {
			i = len(out)
			pos[l.Date] = i
			seen[l.Date] = make(map[string]struct{}, len(l.CompletedHabits))
			out = append(out, models.HabitLog{Date: l.Date, CompletedHabits: []string{}})
		}
		ids := seen[l.Date]
		for _, id := range l.CompletedHabits {
			if _, dup := ids[id]; dup {
				continue
			}
			ids[id] = struct{}{}
			out[i].CompletedHabits = append(out[i].CompletedHabits, id)
		}
	}
	return out
}
