package ledger

import "github.com/starford/habitflow/internal/models"

var defaultHabits = []models.Habit{
	{ID: "reading", Name: "Read 30 minutes", Description: "Read a business or self-development book for 30 minutes", Icon: "book", Category: models.CategoryMind},
	{ID: "meditation", Name: "Meditate 10 minutes", Description: "Mindfulness meditation to sharpen focus", Icon: "self-improvement", Category: models.CategoryMind},
	{ID: "exercise", Name: "Exercise", Description: "Jogging, gym or stretching", Icon: "fitness-center", Category: models.CategoryMind},
	{ID: "learning", Name: "Learning", Description: "Pick up a new skill or follow an online course", Icon: "school", Category: models.CategoryMind},
	{ID: "gratitude", Name: "Gratitude journal", Description: "Write down three things you are grateful for", Icon: "edit", Category: models.CategoryMind},
	{ID: "early-rise", Name: "Early rise", Description: "Get up before 6am", Icon: "alarm", Category: models.CategoryMind},
	{ID: "sales-check", Name: "Sales check", Description: "Review daily sales and KPIs", Icon: "trending-up", Category: models.CategoryBusiness},
	{ID: "team-1on1", Name: "Team 1on1", Description: "Make time to talk with team members", Icon: "groups", Category: models.CategoryBusiness},
	{ID: "strategy", Name: "Strategic thinking", Description: "30 minutes of strategy and planning", Icon: "lightbulb", Category: models.CategoryBusiness},
	{ID: "customer", Name: "Customer contact", Description: "Talk to customers directly", Icon: "support-agent", Category: models.CategoryBusiness},
	{ID: "task-review", Name: "Task review", Description: "Re-prioritise and tidy up the task list", Icon: "checklist", Category: models.CategoryBusiness},
	{ID: "reflection", Name: "Reflection", Description: "Look back on the day and note improvements", Icon: "rate-review", Category: models.CategoryBusiness},
}

// DefaultHabits returns a fresh copy of the seeded catalog: six mind and six
// business habits, all flagged IsDefault.
func DefaultHabits() []models.Habit {
	out := make([]models.Habit, len(defaultHabits))
	for i, h := range defaultHabits {
		h.IsDefault = true
		out[i] = h
	}
	return out
}

// MergeDefaults appends every default whose ID is absent from stored,
// keeping stored's order. Applying it twice is the same as applying it once.
func MergeDefaults(stored, defaults []models.Habit) []models.Habit {
	seen := make(map[string]struct{}, len(stored))
	out := make([]models.Habit, 0, len(stored)+len(defaults))
	for _, h := range stored {
		seen[h.ID] = struct{}{}
		out = append(out, h)
	}
	for _, h := range defaults {
		if _, ok := seen[h.ID]; ok {
			continue
		}
		seen[h.ID] = struct{}{}
		out = append(out, h)
	}
	return out
}

// FilterByCategory returns the habits in c, preserving order.
func FilterByCategory(habits []models.Habit, c models.Category) []models.Habit {
	out := make([]models.Habit, 0, len(habits))
	for _, h := range habits {
		if h.Category == c {
			out = append(out, h)
		}
	}
	return out
}
