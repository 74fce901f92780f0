package habitservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/starford/habitflow/internal/apperr"
	"github.com/starford/habitflow/internal/habitstore"
	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/models"
	"github.com/starford/habitflow/internal/sse"
	"github.com/starford/habitflow/internal/storage"
)

var now = time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []sse.Change
}

func (r *recordingNotifier) PublishChange(c sse.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recordingNotifier) last() sse.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes[len(r.changes)-1]
}

type recordingMirror struct {
	mu    sync.Mutex
	syncs []models.HabitState
}

func (m *recordingMirror) SyncState(_ context.Context, state models.HabitState, _ string) error {
	m.mu.Lock()
	m.syncs = append(m.syncs, state)
	m.mu.Unlock()
	return nil
}

type env struct {
	dir      string
	fs       *storage.FS
	store    *habitstore.Store
	notifier *recordingNotifier
	mirror   *recordingMirror
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return &env{
		dir:      dir,
		fs:       fs,
		store:    habitstore.New(fs, habitstore.WithLogger(logger)),
		notifier: &recordingNotifier{},
		mirror:   &recordingMirror{},
	}
}

func (e *env) service(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithClock(ledger.FixedClock(now)),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		WithNotifier(e.notifier),
		WithMirror(e.mirror),
	}
	return New(context.Background(), e.store, append(base, opts...)...)
}

func (e *env) seed(t *testing.T, state models.HabitState) {
	t.Helper()
	if err := e.store.Save(context.Background(), state); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (e *env) writeRaw(t *testing.T, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(e.dir, "habitflow_data.json"), data, 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
}

func ids(n int) []string {
	all := ledger.DefaultHabits()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, all[i].ID)
	}
	return out
}

func mustToggle(t *testing.T, s *Service, id string) ToggleResult {
	t.Helper()
	res, err := s.ToggleHabit(context.Background(), id)
	if err != nil {
		t.Fatalf("toggle %s: %v", id, err)
	}
	return res
}

func TestNew_FirstLaunch(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)

	if n := len(s.Habits()); n != 12 {
		t.Errorf("habits = %d, want 12", n)
	}
	if n := len(s.Logs()); n != 0 {
		t.Errorf("logs = %d, want 0", n)
	}
	if s.Streak() != 0 {
		t.Errorf("streak = %d, want 0", s.Streak())
	}
	if s.TodayLog() != nil {
		t.Error("today log should be nil")
	}
	if s.TodayCompletionRate() != 0 {
		t.Errorf("rate = %d, want 0", s.TodayCompletionRate())
	}
	if s.Today() != "2026-01-07" {
		t.Errorf("today = %q", s.Today())
	}
	if k := e.notifier.last().Kind; k != sse.KindReloaded {
		t.Errorf("kind = %q, want %q", k, sse.KindReloaded)
	}
}

func TestToggleHabit_CompletesAndPersists(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)

	res := mustToggle(t, s, "reading")
	if !res.Completed || res.Date != "2026-01-07" || res.TodayRate != 8 {
		t.Errorf("result = %+v", res)
	}
	if !s.IsHabitCompleted("reading") {
		t.Error("reading should be completed")
	}

	// the document on disk reflects the toggle
	if !e.service(t).IsHabitCompleted("reading") {
		t.Error("toggle was not persisted")
	}

	c := e.notifier.changes[1]
	if c.Kind != sse.KindToggled || c.HabitID != "reading" || !c.Completed || c.TodayRate != 8 {
		t.Errorf("change = %+v", c)
	}
}

func TestToggleHabit_TwiceClears(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)

	mustToggle(t, s, "reading")
	if res := mustToggle(t, s, "reading"); res.Completed {
		t.Error("second toggle should clear")
	}

	log := s.TodayLog()
	if log == nil {
		t.Fatal("today log should still exist")
	}
	if len(log.CompletedHabits) != 0 {
		t.Errorf("completed = %v, want empty", log.CompletedHabits)
	}
	if n := len(s.Logs()); n != 1 {
		t.Errorf("logs = %d, want 1", n)
	}
}

func TestToggleHabit_UnknownID(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)

	if _, err := s.ToggleHabit(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if n := len(s.Logs()); n != 0 {
		t.Errorf("logs = %d, want 0", n)
	}
}

func TestToggleHabit_RecomputesStreak(t *testing.T) {
	e := newEnv(t)
	e.seed(t, models.HabitState{
		Habits: ledger.DefaultHabits(),
		Logs: []models.HabitLog{
			{Date: "2026-01-06", CompletedHabits: ids(6)},
			{Date: "2026-01-05", CompletedHabits: ids(6)},
		},
	})
	s := e.service(t)
	if s.Streak() != 2 {
		t.Fatalf("streak = %d, want 2", s.Streak())
	}

	for _, id := range ids(6) {
		mustToggle(t, s, id)
	}
	if s.Streak() != 3 {
		t.Errorf("streak = %d, want 3", s.Streak())
	}
	if s.TodayCompletionRate() != 50 {
		t.Errorf("rate = %d, want 50", s.TodayCompletionRate())
	}
}

func TestStreakOptions(t *testing.T) {
	e := newEnv(t)
	e.seed(t, models.HabitState{
		Habits: ledger.DefaultHabits(),
		Logs:   []models.HabitLog{{Date: "2026-01-06", CompletedHabits: ids(6)}},
	})

	if s := e.service(t, WithThreshold(0.75)); s.Streak() != 0 {
		t.Errorf("threshold 0.75: streak = %d, want 0", s.Streak())
	}
	if s := e.service(t, WithThreshold(0.5)); s.Streak() != 1 {
		t.Errorf("threshold 0.5: streak = %d, want 1", s.Streak())
	}
	// only today is inspected, and today has no log
	if s := e.service(t, WithStreakOptions(ledger.WithMaxLookback(1))); s.Streak() != 0 {
		t.Errorf("lookback 1: streak = %d, want 0", s.Streak())
	}
}

func TestTodaySummary_QualifyingFollowsStreakThreshold(t *testing.T) {
	e := newEnv(t)
	e.seed(t, models.HabitState{
		Habits: ledger.DefaultHabits(),
		Logs:   []models.HabitLog{{Date: "2026-01-07", CompletedHabits: ids(6)}},
	})

	tests := []struct {
		name string
		opt  Option
		want bool
	}{
		{"default", WithStreakOptions(), true},
		{"service option", WithThreshold(0.75), false},
		{"ledger option", WithStreakOptions(ledger.WithThreshold(0.75)), false},
		{"later option wins", WithStreakOptions(ledger.WithThreshold(0.75), ledger.WithThreshold(0.5)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.service(t, tt.opt)
			sum := s.TodaySummary()
			if sum.Qualifying != tt.want {
				t.Errorf("qualifying = %v, want %v", sum.Qualifying, tt.want)
			}
			if wantStreak := map[bool]int{true: 1, false: 0}[tt.want]; sum.Streak != wantStreak {
				t.Errorf("streak = %d, want %d", sum.Streak, wantStreak)
			}
		})
	}
}

func TestTodaySummary(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)
	for _, id := range ids(6) {
		mustToggle(t, s, id)
	}

	sum := s.TodaySummary()
	if sum.Date != "2026-01-07" {
		t.Errorf("date = %q", sum.Date)
	}
	if !reflect.DeepEqual(sum.CompletedHabits, ids(6)) {
		t.Errorf("completed = %v", sum.CompletedHabits)
	}
	if sum.Completed != 6 || sum.Total != 12 || sum.Rate != 50 {
		t.Errorf("summary = %+v", sum)
	}
	if !sum.Qualifying || sum.Streak != 1 {
		t.Errorf("qualifying = %v streak = %d, want true 1", sum.Qualifying, sum.Streak)
	}
}

func TestAddHabit(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)

	h, err := s.AddHabit(context.Background(), NewHabit{Name: " <i>Walk</i> ", Category: models.CategoryMind})
	if err != nil {
		t.Fatalf("AddHabit: %v", err)
	}
	if len(h.ID) != 36 {
		t.Errorf("id = %q, want a uuid", h.ID)
	}
	if h.Name != "Walk" || h.Icon != models.DefaultGlyph || h.IsDefault {
		t.Errorf("habit = %+v", h)
	}

	habits := s.Habits()
	if len(habits) != 13 {
		t.Fatalf("habits = %d, want 13", len(habits))
	}
	if habits[12].ID != h.ID {
		t.Errorf("new habit should be appended, last = %q", habits[12].ID)
	}
	if k := e.notifier.last().Kind; k != sse.KindCreated {
		t.Errorf("kind = %q, want %q", k, sse.KindCreated)
	}

	// survives a reload, and the new habit can be toggled
	reloaded := e.service(t)
	if n := len(reloaded.Habits()); n != 13 {
		t.Errorf("reloaded habits = %d, want 13", n)
	}
	mustToggle(t, reloaded, h.ID)
}

func TestAddHabit_Invalid(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)

	if _, err := s.AddHabit(context.Background(), NewHabit{Name: "Walk", Category: "sports"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad category: err = %v, want ErrInvalid", err)
	}
	if _, err := s.AddHabit(context.Background(), NewHabit{Name: "<script>x</script>", Category: models.CategoryMind}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("name empty after sanitising: err = %v, want ErrInvalid", err)
	}
	if n := len(s.Habits()); n != 12 {
		t.Errorf("habits = %d, want 12", n)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)
	mustToggle(t, s, "reading")

	snap := s.Snapshot()
	snap.Logs[0].CompletedHabits[0] = "mutated"
	snap.Habits[0].Name = "mutated"

	if !s.IsHabitCompleted("reading") {
		t.Error("log was shared with the snapshot")
	}
	if s.Habits()[0].Name == "mutated" {
		t.Error("habits were shared with the snapshot")
	}
}

func TestHabitsByCategory(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)

	mind := s.HabitsByCategory(models.CategoryMind)
	business := s.HabitsByCategory(models.CategoryBusiness)
	if len(mind) != 6 || len(business) != 6 {
		t.Fatalf("mind = %d business = %d, want 6 each", len(mind), len(business))
	}
	if mind[0].ID != "reading" || business[0].ID != "sales-check" {
		t.Errorf("first ids = %q, %q", mind[0].ID, business[0].ID)
	}
}

func TestHabit(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)

	h, err := s.Habit("strategy")
	if err != nil {
		t.Fatalf("Habit: %v", err)
	}
	if h.Category != models.CategoryBusiness {
		t.Errorf("category = %q", h.Category)
	}

	if _, err := s.Habit("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	e.seed(t, models.HabitState{
		Habits: ledger.DefaultHabits(),
		Logs: []models.HabitLog{
			{Date: "2026-01-07", CompletedHabits: []string{"reading", "sales-check", "customer"}},
			{Date: "2026-01-01", CompletedHabits: ids(12)},
		},
	})
	s := e.service(t)

	week := s.WeekStats()
	if len(week) != 7 {
		t.Fatalf("week = %d days, want 7", len(week))
	}
	if week[0].DateStr != "2026-01-01" || week[0].Rate != 100 || week[6].Rate != 25 {
		t.Errorf("week = %+v", week)
	}
	// (100 + 25) / 7 = 17.86
	if got := s.WeeklyAverage(); got != 18 {
		t.Errorf("weekly average = %d, want 18", got)
	}

	cats := s.CategoryStats()
	if len(cats) != 2 {
		t.Fatalf("categories = %d, want 2", len(cats))
	}
	if cats[0].Completed != 1 || cats[1].Completed != 2 {
		t.Errorf("categories = %+v", cats)
	}
}

func TestReloadIfChanged(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)
	ctx := context.Background()

	mustToggle(t, s, "reading")
	if s.ReloadIfChanged(ctx) {
		t.Error("own write must not trigger a reload")
	}

	data, err := habitstore.Encode(models.HabitState{
		Habits: ledger.DefaultHabits(),
		Logs:   []models.HabitLog{{Date: "2026-01-07", CompletedHabits: []string{"exercise"}}},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	e.writeRaw(t, data)

	if !s.ReloadIfChanged(ctx) {
		t.Fatal("external edit should reload")
	}
	if !s.IsHabitCompleted("exercise") || s.IsHabitCompleted("reading") {
		t.Error("state should match the edited document")
	}
	if s.ReloadIfChanged(ctx) {
		t.Error("unchanged document should not reload")
	}
}

func TestReloadIfChanged_IgnoresMalformed(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)
	mustToggle(t, s, "reading")

	e.writeRaw(t, []byte("{not json"))

	if s.ReloadIfChanged(context.Background()) {
		t.Error("malformed document should be ignored")
	}
	if !s.IsHabitCompleted("reading") {
		t.Error("state should be kept")
	}
}

func TestReload_MalformedFallsBackToDefaults(t *testing.T) {
	e := newEnv(t)
	e.writeRaw(t, []byte("[]oops"))

	s := e.service(t)
	res := s.Reload(context.Background())
	if !res.Corrupt {
		t.Error("load result should be flagged corrupt")
	}
	if len(s.Habits()) != 12 || len(s.Logs()) != 0 {
		t.Errorf("habits = %d logs = %d, want defaults", len(s.Habits()), len(s.Logs()))
	}
}

func TestMirrorReceivesEveryChange(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)
	mustToggle(t, s, "reading")

	e.mirror.mu.Lock()
	defer e.mirror.mu.Unlock()
	if len(e.mirror.syncs) != 2 {
		t.Fatalf("syncs = %d, want 2", len(e.mirror.syncs))
	}
	if got := e.mirror.syncs[1].Logs[0].CompletedHabits; !reflect.DeepEqual(got, []string{"reading"}) {
		t.Errorf("mirrored = %v", got)
	}
}

// failingProvider rejects writes but reads nothing.
type failingProvider struct{ storage.Provider }

func (failingProvider) Get(context.Context, string) ([]byte, error) {
	return nil, apperr.ErrNotFound
}

func (failingProvider) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestToggleHabit_SaveFailureIsNotReturned(t *testing.T) {
	store := habitstore.New(failingProvider{}, habitstore.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	s := New(context.Background(), store, WithClock(ledger.FixedClock(now)))

	if res := mustToggle(t, s, "reading"); !res.Completed {
		t.Error("toggle should complete")
	}
	if !s.IsHabitCompleted("reading") {
		t.Error("in-memory state should keep the toggle")
	}
}

func TestConcurrentToggles(t *testing.T) {
	e := newEnv(t)
	s := e.service(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range ids(12) {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = s.ToggleHabit(ctx, id)
		}(id)
	}
	wg.Wait()

	if s.TodayCompletionRate() != 100 {
		t.Errorf("rate = %d, want 100", s.TodayCompletionRate())
	}
	if n := len(s.Logs()); n != 1 {
		t.Fatalf("logs = %d, want 1", n)
	}
	if n := len(s.TodayLog().CompletedHabits); n != 12 {
		t.Errorf("completed = %d, want 12", n)
	}
}

func TestReload_RepeatedIDsDoNotCountTowardStreak(t *testing.T) {
	e := newEnv(t)
	e.writeRaw(t, []byte(`{"habits":[],"logs":[
		{"date":"2026-01-07","completedHabits":["reading","reading","reading","reading","reading","reading"]},
		{"date":"2026-01-06","completedHabits":["reading","reading","reading","reading","reading","reading"]}],"streak":2}`))

	s := e.service(t)
	sum := s.TodaySummary()
	if sum.Rate != 8 || sum.Completed != 1 {
		t.Errorf("rate = %d completed = %d, want 8 and 1", sum.Rate, sum.Completed)
	}
	if sum.Qualifying {
		t.Error("one distinct habit should not qualify")
	}
	if s.Streak() != 0 {
		t.Errorf("streak = %d, want 0", s.Streak())
	}
}
