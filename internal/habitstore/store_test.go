package habitstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/models"
	"github.com/starford/habitflow/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testStore(t *testing.T) (*Store, *storage.FS) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return New(fs, WithLogger(quietLogger())), fs
}

// failingProvider fails every call.
type failingProvider struct{}

var errBoom = errors.New("boom")

func (failingProvider) Get(context.Context, string) ([]byte, error) {
	return nil, errBoom
}

func (failingProvider) Set(context.Context, string, []byte) error {
	return errBoom
}

func (failingProvider) Delete(context.Context, string) error {
	return errBoom
}

func (failingProvider) Keys(context.Context) ([]string, error) {
	return nil, errBoom
}

func TestLoad_NoDocument(t *testing.T) {
	s, _ := testStore(t)
	res := s.Load(context.Background())
	if res.Found || res.Corrupt {
		t.Errorf("found=%v corrupt=%v, want false/false", res.Found, res.Corrupt)
	}
	if len(res.State.Habits) != 12 {
		t.Errorf("habits = %d, want 12", len(res.State.Habits))
	}
	if len(res.State.Logs) != 0 || res.State.Streak != 0 {
		t.Errorf("unexpected default state: %+v", res.State)
	}
}

func TestLoad_MalformedFallsBack(t *testing.T) {
	s, fs := testStore(t)
	_ = fs.Set(context.Background(), DefaultKey, []byte(`{"habits": [`))

	res := s.Load(context.Background())
	if !res.Corrupt {
		t.Error("expected corrupt flag")
	}
	if len(res.State.Habits) != 12 || len(res.State.Logs) != 0 {
		t.Errorf("expected default state, got %+v", res.State)
	}
	if res.Checksum == "" {
		t.Error("checksum of the raw document should be recorded")
	}
}

func TestLoad_ReadErrorFallsBack(t *testing.T) {
	s := New(failingProvider{}, WithLogger(quietLogger()))
	res := s.Load(context.Background())
	if !res.Corrupt || len(res.State.Habits) != 12 {
		t.Errorf("expected default state on read failure, got %+v", res)
	}
}

func TestLoad_MergesMissingDefaults(t *testing.T) {
	s, fs := testStore(t)
	doc := `{"habits":[{"id":"walk","name":"Walk","description":"","icon":"x","category":"mind","isDefault":false},
		{"id":"reading","name":"My reading","description":"","icon":"book","category":"mind","isDefault":true}],
		"logs":[{"date":"2026-01-07","completedHabits":["walk"]}],"streak":4}`
	_ = fs.Set(context.Background(), DefaultKey, []byte(doc))

	res := s.Load(context.Background())
	if res.Corrupt || !res.Found {
		t.Fatalf("unexpected flags: %+v", res)
	}
	habits := res.State.Habits
	if len(habits) != 13 {
		t.Fatalf("habits = %d, want 13", len(habits))
	}
	if habits[0].ID != "walk" || habits[1].Name != "My reading" {
		t.Errorf("stored habits must keep order and customisations: %+v", habits[:2])
	}
	if habits[2].ID != "meditation" {
		t.Errorf("first appended default = %q, want meditation", habits[2].ID)
	}
	if len(res.State.Logs) != 1 || res.State.Streak != 4 {
		t.Errorf("logs/streak not preserved: %+v", res.State)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	state := s.DefaultState()
	state.Logs = []models.HabitLog{{Date: "2026-01-07", CompletedHabits: []string{"reading"}}}
	state.Streak = 1
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	saved := s.LastChecksum()
	if saved == "" {
		t.Fatal("LastChecksum should be set after save")
	}

	res := s.Load(ctx)
	if len(res.State.Logs) != 1 || res.State.Logs[0].CompletedHabits[0] != "reading" {
		t.Errorf("logs not round-tripped: %+v", res.State.Logs)
	}
	if res.Checksum != saved {
		t.Errorf("checksum = %q, want %q", res.Checksum, saved)
	}
}

func TestSave_FailureReturnsError(t *testing.T) {
	s := New(failingProvider{}, WithLogger(quietLogger()))
	if err := s.Save(context.Background(), s.DefaultState()); !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestWithKeyAndDefaults(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	extra := models.Habit{ID: "walk", Name: "Walk", Category: models.CategoryMind}
	s := New(fs,
		WithKey("custom"),
		WithLogger(quietLogger()),
		WithDefaults(func() []models.Habit { return append(ledger.DefaultHabits(), extra) }),
	)
	if s.Key() != "custom" {
		t.Errorf("key = %q", s.Key())
	}
	if got := len(s.Load(context.Background()).State.Habits); got != 13 {
		t.Errorf("habits = %d, want 13", got)
	}
}

func TestEncode_NoNulls(t *testing.T) {
	data, err := Encode(models.HabitState{Logs: []models.HabitLog{{Date: "2026-01-07"}}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"habits":[],"logs":[{"date":"2026-01-07","completedHabits":[]}],"streak":0}`
	if string(data) != want {
		t.Errorf("encoded = %s", data)
	}
}

func TestDecode_CollapsesRepeatedIDsAndDates(t *testing.T) {
	doc := `{"habits":[],"logs":[
		{"date":"2026-01-07","completedHabits":["reading","reading","reading","reading","reading","reading"]},
		{"date":"2026-01-06","completedHabits":["exercise"]},
		{"date":"2026-01-07","completedHabits":["meditation","reading"]}],"streak":0}`

	state, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(state.Logs) != 2 {
		t.Fatalf("logs = %d, want 2 (one per date)", len(state.Logs))
	}
	today := state.Logs[0]
	if today.Date != "2026-01-07" {
		t.Errorf("first log date = %q, want 2026-01-07", today.Date)
	}
	if got := today.CompletedHabits; len(got) != 2 || got[0] != "reading" || got[1] != "meditation" {
		t.Errorf("completed = %v, want [reading meditation]", got)
	}
	if state.Logs[1].Date != "2026-01-06" {
		t.Errorf("second log date = %q", state.Logs[1].Date)
	}

	if rate := ledger.CompletionRate(&today, 12); rate != 17 {
		t.Errorf("rate = %d, want 17", rate)
	}
	if ledger.IsDayQualifying(&today, 12, ledger.DefaultThreshold) {
		t.Error("two distinct habits of twelve should not qualify")
	}
}

func TestLoad_RepeatedIDsDoNotInflateProgress(t *testing.T) {
	s, fs := testStore(t)
	doc := `{"habits":[],"logs":[{"date":"2026-01-07","completedHabits":["reading","reading","reading","reading","reading","reading"]}],"streak":0}`
	_ = fs.Set(context.Background(), DefaultKey, []byte(doc))

	res := s.Load(context.Background())
	if res.Corrupt {
		t.Fatal("document should parse")
	}
	log := res.State.Logs[0]
	if log.Count() != 1 {
		t.Errorf("count = %d, want 1", log.Count())
	}
	if rate := ledger.CompletionRate(&log, len(res.State.Habits)); rate != 8 {
		t.Errorf("rate = %d, want 8", rate)
	}
}

func TestDecode_NullLogs(t *testing.T) {
	state, err := Decode([]byte(`{"habits":[],"logs":null,"streak":0}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if state.Logs == nil || len(state.Logs) != 0 {
		t.Errorf("logs = %#v, want empty slice", state.Logs)
	}
}
