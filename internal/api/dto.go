package api

import (
	"github.com/starford/habitflow/internal/habitservice"
	"github.com/starford/habitflow/internal/index"
	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/models"
)

// CreateHabitRequest is the request body for adding a custom habit.
type CreateHabitRequest = habitservice.NewHabit

// HabitView is a catalog habit with today's completion flag.
type HabitView struct {
	models.Habit
	Glyph     string `json:"glyph" example:"menu-book"`
	Completed bool   `json:"completed"`
}

// HabitListResponse wraps the catalog.
type HabitListResponse struct {
	Habits []HabitView `json:"habits" validate:"required"`
	Total  int         `json:"total" example:"12"`
}

// ToggleResponse is returned by the toggle endpoint.
type ToggleResponse = habitservice.ToggleResult

// TodayResponse summarises the current local day.
type TodayResponse = habitservice.TodaySummary

// WeekStatsResponse is the seven-day series plus its average.
type WeekStatsResponse struct {
	Days          []ledger.DayStat `json:"days" validate:"required"`
	WeeklyAverage int              `json:"weeklyAverage" example:"42"`
	Streak        int              `json:"streak" example:"4"`
}

// CategoryStatsResponse wraps today's per-category progress.
type CategoryStatsResponse struct {
	Categories []ledger.CategoryStat `json:"categories" validate:"required"`
}

// HistoryResponse is the per-day completion history from the index.
type HistoryResponse struct {
	From   string             `json:"from" example:"2025-12-09"`
	To     string             `json:"to" example:"2026-01-07"`
	Days   []index.DayHistory `json:"days" validate:"required"`
	Totals []index.HabitTotal `json:"totals" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
