package ledger

import (
	"time"

	"github.com/starford/habitflow/internal/models"
)

// DayStat is one cell of the weekly heatmap.
type DayStat struct {
	Date      time.Time `json:"-"`
	DateStr   string    `json:"date"`
	Rate      int       `json:"rate"`
	Completed int       `json:"completed"`
}

// CategoryStat summarises one category for a single day.
type CategoryStat struct {
	Category  models.Category `json:"category"`
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Rate      int             `json:"rate"`
}

// WeekStats computes per-day completion for the WeekWindow ending at ref.
func WeekStats(logs []models.HabitLog, total int, ref time.Time) []DayStat {
	byDate := IndexByDate(logs)
	window := WeekWindow(ref)
	out := make([]DayStat, 0, len(window))
	for _, day := range window {
		ds := FormatDate(day)
		stat := DayStat{Date: day, DateStr: ds}
		if log, ok := byDate[ds]; ok {
			stat.Rate = CompletionRate(&log, total)
			stat.Completed = len(log.CompletedHabits)
		}
		out = append(out, stat)
	}
	return out
}

// WeeklyAverage is the rounded mean rate across stats; 0 when empty.
func WeeklyAverage(stats []DayStat) int {
	if len(stats) == 0 {
		return 0
	}
	sum := 0
	for _, s := range stats {
		sum += s.Rate
	}
	n := len(stats)
	return (2*sum + n) / (2 * n)
}

// CategoryProgress reports, per category, how many of its habits are
// completed in log. Only habits in the catalog are counted, so stale ids in
// the log do not inflate a category.
func CategoryProgress(habits []models.Habit, log *models.HabitLog) []CategoryStat {
	out := make([]CategoryStat, 0, len(models.Categories))
	for _, c := range models.Categories {
		stat := CategoryStat{Category: c}
		for _, h := range FilterByCategory(habits, c) {
			stat.Total++
			if log.Has(h.ID) {
				stat.Completed++
			}
		}
		if stat.Total > 0 {
			stat.Rate = roundPercent(stat.Completed, stat.Total)
		}
		out = append(out, stat)
	}
	return out
}
