// Package habitservice owns the in-memory habit state and exposes the
// operations every surface (HTTP, MCP, CLI, watcher) goes through.
package habitservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/habitflow/internal/apperr"
	"github.com/starford/habitflow/internal/catalog"
	"github.com/starford/habitflow/internal/habitstore"
	"github.com/starford/habitflow/internal/index"
	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/metrics"
	"github.com/starford/habitflow/internal/models"
	"github.com/starford/habitflow/internal/sse"
)

// Notifier receives every state change. *sse.Broker satisfies it.
type Notifier interface {
	PublishChange(sse.Change)
}

// Mirror receives the full state after every change. *index.DB satisfies it.
type Mirror interface {
	SyncState(ctx context.Context, state models.HabitState, sum string) error
}

var (
	_ Notifier = (*sse.Broker)(nil)
	_ Mirror   = (index.HabitIndex)(nil)
)

// ToggleResult describes the outcome of ToggleHabit.
type ToggleResult struct {
	HabitID   string `json:"habitId"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	TodayRate int    `json:"todayRate"`
	Streak    int    `json:"streak"`
}

// TodaySummary is the presentation view of the current local day.
type TodaySummary struct {
	Date            string   `json:"date"`
	CompletedHabits []string `json:"completedHabits"`
	Completed       int      `json:"completed"`
	Total           int      `json:"total"`
	Rate            int      `json:"rate"`
	Qualifying      bool     `json:"qualifying"`
	Streak          int      `json:"streak"`
}

// NewHabit is the input of AddHabit. The id is generated.
type NewHabit struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
	Category    models.Category `json:"category"`
}

// Service is the state container. All mutations are serialised; each one
// recomputes the streak, saves the document and notifies listeners.
type Service struct {
	store    *habitstore.Store
	mirror   Mirror
	notifier Notifier
	clock    ledger.Clock
	logger   *slog.Logger
	streak   []ledger.StreakOption

	// rules is resolved from streak so the qualifying flag and the streak
	// always use the same rule.
	rules ledger.StreakConfig

	mu    sync.RWMutex
	state models.HabitState
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the source of "now". Defaults to the local system clock.
func WithClock(c ledger.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMirror registers the SQLite mirror.
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithNotifier registers the change listener.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithThreshold sets the share of habits a day needs to count toward the
// streak. Values outside (0, 1] are ignored.
func WithThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 && t <= 1 {
			s.streak = append(s.streak, ledger.WithThreshold(t))
		}
	}
}

// WithStreakOptions tunes the streak computation further.
func WithStreakOptions(opts ...ledger.StreakOption) Option {
	return func(s *Service) { s.streak = append(s.streak, opts...) }
}

// New creates a Service and loads the persisted state.
func New(ctx context.Context, store *habitstore.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  ledger.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rules = ledger.ResolveStreakOptions(s.streak...)
	s.Reload(ctx)
	return s
}

// Reload replaces the in-memory state with the persisted document,
// following the load contract of habitstore.Store.
func (s *Service) Reload(ctx context.Context) habitstore.LoadResult {
	res := s.store.Load(ctx)

	s.mu.Lock()
	s.state = res.State
	s.recompute()
	s.mirrorLocked(ctx, res.Checksum)
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.afterChange(state, sse.Change{Kind: sse.KindReloaded})
	return res
}

// ReloadIfChanged reloads only when the persisted document differs from
// the one this process last read or wrote, and ignores documents that
// cannot be parsed so that a half-edited file does not wipe the state.
// It reports whether the state was replaced.
func (s *Service) ReloadIfChanged(ctx context.Context) bool {
	prev := s.store.LastChecksum()
	res := s.store.Load(ctx)
	if res.Corrupt {
		s.logger.Warn("habitservice: ignoring unreadable external change")
		return false
	}
	if res.Found && res.Checksum == prev {
		return false
	}

	s.mu.Lock()
	s.state = res.State
	s.recompute()
	s.mirrorLocked(ctx, res.Checksum)
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("habitservice: reloaded after external change", slog.Int("streak", state.Streak))
	s.afterChange(state, sse.Change{Kind: sse.KindReloaded})
	return true
}

// Rules returns the threshold and lookback the streak is computed with.
func (s *Service) Rules() ledger.StreakConfig {
	return s.rules
}

// StorageKey is the key the document is persisted under.
func (s *Service) StorageKey() string {
	return s.store.Key()
}

// Today returns the current local date key.
func (s *Service) Today() string {
	return ledger.FormatDate(s.clock.Now())
}

// Habits returns the catalog in order.
func (s *Service) Habits() []models.Habit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Habit(nil), s.state.Habits...)
}

// Habit looks up one habit by id.
func (s *Service) Habit(id string) (models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.state.Habits {
		if h.ID == id {
			return h, nil
		}
	}
	return models.Habit{}, fmt.Errorf("habitservice: habit %q: %w", id, apperr.ErrNotFound)
}

// Logs returns a copy of every log.
func (s *Service) Logs() []models.HabitLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLogs(s.state.Logs)
}

// Streak returns the cached streak.
func (s *Service) Streak() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Streak
}

// TodayLog returns today's log, or nil when nothing was toggled today.
func (s *Service) TodayLog() *models.HabitLog {
	today := s.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.FindLog(s.state.Logs, today)
}

// TodayCompletionRate is today's completion percentage over the catalog.
func (s *Service) TodayCompletionRate() int {
	today := s.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.CompletionRate(ledger.FindLog(s.state.Logs, today), len(s.state.Habits))
}

// TodaySummary gathers today's log, rate and streak under one read lock.
func (s *Service) TodaySummary() TodaySummary {
	today := s.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := ledger.FindLog(s.state.Logs, today)
	total := len(s.state.Habits)
	done := []string{}
	if log != nil {
		done = append(done, log.CompletedHabits...)
	}
	return TodaySummary{
		Date:            today,
		CompletedHabits: done,
		Completed:       log.Count(),
		Total:           total,
		Rate:            ledger.CompletionRate(log, total),
		Qualifying:      ledger.IsDayQualifying(log, total, s.rules.Threshold),
		Streak:          s.state.Streak,
	}
}

// IsHabitCompleted reports whether id is in today's log.
func (s *Service) IsHabitCompleted(id string) bool {
	return s.TodayLog().Has(id)
}

// HabitsByCategory filters the catalog, keeping order.
func (s *Service) HabitsByCategory(c models.Category) []models.Habit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.FilterByCategory(s.state.Habits, c)
}

// Snapshot returns a deep copy of the whole state.
func (s *Service) Snapshot() models.HabitState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// WeekStats returns the seven-day completion series ending today.
func (s *Service) WeekStats() []ledger.DayStat {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.WeekStats(s.state.Logs, len(s.state.Habits), now)
}

// WeeklyAverage averages WeekStats.
func (s *Service) WeeklyAverage() int {
	return ledger.WeeklyAverage(s.WeekStats())
}

// CategoryStats returns today's progress per category.
func (s *Service) CategoryStats() []ledger.CategoryStat {
	today := s.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.CategoryProgress(s.state.Habits, ledger.FindLog(s.state.Logs, today))
}

// ToggleHabit flips id in today's log. Ids outside the catalog are
// rejected with apperr.ErrNotFound.
func (s *Service) ToggleHabit(ctx context.Context, id string) (ToggleResult, error) {
	now := s.clock.Now()
	today := ledger.FormatDate(now)

	s.mu.Lock()
	if !s.hasHabitLocked(id) {
		s.mu.Unlock()
		return ToggleResult{}, fmt.Errorf("habitservice: toggle %q: %w", id, apperr.ErrNotFound)
	}
	s.state.Logs = ledger.Toggle(s.state.Logs, id, now)
	s.recompute()
	todayLog := ledger.FindLog(s.state.Logs, today)
	res := ToggleResult{
		HabitID:   id,
		Date:      today,
		Completed: todayLog.Has(id),
		TodayRate: ledger.CompletionRate(todayLog, len(s.state.Habits)),
		Streak:    s.state.Streak,
	}
	s.saveLocked(ctx)
	state := s.snapshotLocked()
	s.mu.Unlock()

	metrics.RecordToggle(id, res.Completed)
	s.logger.Debug("habitservice: toggled",
		slog.String("habit", id), slog.String("date", today), slog.Bool("completed", res.Completed))
	s.afterChange(state, sse.Change{
		Kind:      sse.KindToggled,
		HabitID:   id,
		Date:      today,
		Completed: res.Completed,
	})
	return res, nil
}

// AddHabit appends a user-defined habit with a generated id.
func (s *Service) AddHabit(ctx context.Context, in NewHabit) (models.Habit, error) {
	h := catalog.Normalize(models.Habit{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Icon:        in.Icon,
		Category:    in.Category,
	})
	if h.Icon == "" {
		h.Icon = models.DefaultGlyph
	}
	if err := catalog.Validate(h); err != nil {
		return models.Habit{}, fmt.Errorf("habitservice: add habit: %w", err)
	}

	s.mu.Lock()
	s.state.Habits = append(s.state.Habits, h)
	s.recompute()
	s.saveLocked(ctx)
	state := s.snapshotLocked()
	s.mu.Unlock()

	metrics.HabitsCreated.Inc()
	s.logger.Info("habitservice: habit added", slog.String("id", h.ID), slog.String("category", string(h.Category)))
	s.afterChange(state, sse.Change{Kind: sse.KindCreated, HabitID: h.ID})
	return h, nil
}

func (s *Service) hasHabitLocked(id string) bool {
	for _, h := range s.state.Habits {
		if h.ID == id {
			return true
		}
	}
	return false
}

// recompute refreshes the cached streak. Caller holds mu.
func (s *Service) recompute() {
	s.state.Streak = ledger.Streak(s.state.Logs, s.state.Habits, s.clock.Now(), s.streak...)
}

// saveLocked persists the state and refreshes the mirror. Save failures
// are logged by the store and otherwise ignored.
func (s *Service) saveLocked(ctx context.Context) {
	sum := ""
	if err := s.store.Save(ctx, s.state); err == nil {
		sum = s.store.LastChecksum()
	}
	s.mirrorLocked(ctx, sum)
}

// mirrorLocked syncs the SQLite mirror. An empty sum forces a full write.
func (s *Service) mirrorLocked(ctx context.Context, sum string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SyncState(ctx, s.state, sum); err != nil {
		s.logger.Warn("habitservice: index sync failed", slog.String("error", err.Error()))
	}
}

func (s *Service) snapshotLocked() models.HabitState {
	return models.HabitState{
		Habits: append([]models.Habit{}, s.state.Habits...),
		Logs:   cloneLogs(s.state.Logs),
		Streak: s.state.Streak,
	}
}

// afterChange publishes metrics and the change event. It runs outside the lock.
func (s *Service) afterChange(state models.HabitState, c sse.Change) {
	today := ledger.FormatDate(s.clock.Now())
	rate := ledger.CompletionRate(ledger.FindLog(state.Logs, today), len(state.Habits))
	metrics.SetProgress(state.Streak, rate)

	if s.notifier != nil {
		c.Streak = state.Streak
		c.TodayRate = rate
		s.notifier.PublishChange(c)
	}
}

func cloneLogs(logs []models.HabitLog) []models.HabitLog {
	out := make([]models.HabitLog, len(logs))
	for i, l := range logs {
		out[i] = models.HabitLog{
			Date:            l.Date,
			CompletedHabits: append([]string{}, l.CompletedHabits...),
		}
	}
	return out
}
