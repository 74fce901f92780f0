// Package ledger implements the pure habit computations: toggling
// completions, completion rates, the qualifying-day rule, streaks and the
// weekly window. Nothing here reads the wall clock; callers pass the
// reference date explicitly.
package ledger

import (
	"math"
	"time"

	"github.com/starford/habitflow/internal/models"
)

const (
	// DefaultThreshold is the fraction of habits a day needs to count
	// toward the streak.
	DefaultThreshold = 0.5
	// DefaultMaxLookback bounds the backward streak scan, in days.
	DefaultMaxLookback = 365
)

// Toggle flips habitID on the log for ref's calendar date and returns a new
// log slice. The input is never modified. A missing log is created with the
// single habit; an existing one has the habit added or removed.
func Toggle(logs []models.HabitLog, habitID string, ref time.Time) []models.HabitLog {
	date := FormatDate(ref)

	out := make([]models.HabitLog, len(logs), len(logs)+1)
	copy(out, logs)

	for i := range out {
		if out[i].Date != date {
			continue
		}
		out[i] = toggleIn(out[i], habitID)
		return out
	}

	return append(out, models.HabitLog{Date: date, CompletedHabits: []string{habitID}})
}

func toggleIn(log models.HabitLog, habitID string) models.HabitLog {
	completed := make([]string, 0, len(log.CompletedHabits)+1)
	found := false
	for _, id := range log.CompletedHabits {
		if id == habitID {
			found = true
			continue
		}
		completed = append(completed, id)
	}
	if !found {
		completed = append(completed, habitID)
	}
	return models.HabitLog{Date: log.Date, CompletedHabits: completed}
}

// CompletionRate returns the rounded percentage (0-100) of total habits
// completed in log. A nil log or zero total yields 0.
func CompletionRate(log *models.HabitLog, total int) int {
	if log == nil || total <= 0 {
		return 0
	}
	return roundPercent(len(log.CompletedHabits), total)
}

// roundPercent computes round(100*n/d) half-up using integer arithmetic.
func roundPercent(n, d int) int {
	return (200*n + d) / (2 * d)
}

// IsDayQualifying reports whether log meets the threshold. The required
// count is floor(total*threshold), so with 11 habits five completions
// already qualify.
func IsDayQualifying(log *models.HabitLog, total int, threshold float64) bool {
	if log == nil || total <= 0 {
		return false
	}
	need := int(math.Floor(float64(total) * threshold))
	return len(log.CompletedHabits) >= need
}

// StreakConfig is the rule Streak applies.
type StreakConfig struct {
	Threshold   float64
	MaxLookback int
}

// StreakOption adjusts how Streak scans the log history.
type StreakOption func(*StreakConfig)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(threshold float64) StreakOption {
	return func(o *StreakConfig) {
		o.Threshold = threshold
	}
}

// WithMaxLookback overrides DefaultMaxLookback. Non-positive values are ignored.
func WithMaxLookback(days int) StreakOption {
	return func(o *StreakConfig) {
		if days > 0 {
			o.MaxLookback = days
		}
	}
}

// ResolveStreakOptions applies opts over the defaults. Later options win.
func ResolveStreakOptions(opts ...StreakOption) StreakConfig {
	o := StreakConfig{Threshold: DefaultThreshold, MaxLookback: DefaultMaxLookback}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Streak counts consecutive qualifying days ending at ref. The reference
// day itself is a grace day: if it does not qualify the scan continues with
// the previous day, otherwise it counts. Any older non-qualifying day ends
// the scan.
func Streak(logs []models.HabitLog, habits []models.Habit, ref time.Time, opts ...StreakOption) int {
	if len(logs) == 0 {
		return 0
	}

	o := ResolveStreakOptions(opts...)

	byDate := IndexByDate(logs)
	total := len(habits)
	y, m, d := ref.Date()

	streak := 0
	for i := 0; i < o.MaxLookback; i++ {
		day := time.Date(y, m, d-i, 0, 0, 0, 0, ref.Location())
		log, ok := byDate[FormatDate(day)]
		var lp *models.HabitLog
		if ok {
			lp = &log
		}
		if IsDayQualifying(lp, total, o.Threshold) {
			streak++
		} else if i > 0 {
			break
		}
	}
	return streak
}

// IndexByDate maps each date string to its log. If the input holds more
// than one log for a date the first one wins, matching Toggle.
func IndexByDate(logs []models.HabitLog) map[string]models.HabitLog {
	out := make(map[string]models.HabitLog, len(logs))
	for _, l := range logs {
		if _, dup := out[l.Date]; dup {
			continue
		}
		out[l.Date] = l
	}
	return out
}

// FindLog returns a copy of the log for date, or nil.
func FindLog(logs []models.HabitLog, date string) *models.HabitLog {
	for i := range logs {
		if logs[i].Date == date {
			l := logs[i]
			return &l
		}
	}
	return nil
}
