// Package models defines the domain types for HabitFlow.
package models

// Category groups habits on the home and stats screens.
type Category string

const (
	CategoryMind     Category = "mind"
	CategoryBusiness Category = "business"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryMind, CategoryBusiness}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryMind, CategoryBusiness:
		return true
	}
	return false
}

// Habit is the static definition of a trackable daily action.
type Habit struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Icon        string   `json:"icon" yaml:"icon"`
	Category    Category `json:"category" yaml:"category"`
	IsDefault   bool     `json:"isDefault" yaml:"-"`
}

// HabitLog records which habits were completed on one calendar date.
type HabitLog struct {
	Date            string   `json:"date"` // YYYY-MM-DD
	CompletedHabits []string `json:"completedHabits"`
}

// Has reports whether habitID is completed in this log.
func (l *HabitLog) Has(habitID string) bool {
	if l == nil {
		return false
	}
	for _, id := range l.CompletedHabits {
		if id == habitID {
			return true
		}
	}
	return false
}

// Count returns the number of completed habits, 0 for a nil log.
func (l *HabitLog) Count() int {
	if l == nil {
		return 0
	}
	return len(l.CompletedHabits)
}

// HabitState is the persisted aggregate. Streak is a cache and is always
// recomputed from Logs and Habits after load and after every mutation.
type HabitState struct {
	Habits []Habit    `json:"habits"`
	Logs   []HabitLog `json:"logs"`
	Streak int        `json:"streak"`
}
