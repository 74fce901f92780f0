package mcpserver

import (
	"fmt"
	"strconv"

	"github.com/starford/habitflow/internal/ledger"
)

// DataFormatContract describes the persisted habit document stored under
// key and the rules that derive rates and streaks from it.
func DataFormatContract(key string, rules ledger.StreakConfig) string {
	return fmt.Sprintf(dataFormatTemplate,
		key,
		strconv.FormatFloat(rules.Threshold, 'f', -1, 64),
		rules.MaxLookback,
	)
}

const dataFormatTemplate = `# habitflow Data Format Contract

The whole state is one JSON document stored under the key ` + "`" + `%s` + "`" + `.

## Structure

` + "```" + `json
{
  "habits": [
    {
      "id": "reading",
      "name": "Read 30 minutes",
      "description": "Read a business or self-development book for 30 minutes",
      "icon": "book",
      "category": "mind",
      "isDefault": true
    }
  ],
  "logs": [
    { "date": "2026-01-07", "completedHabits": ["reading", "sales-check"] }
  ],
  "streak": 4
}
` + "```" + `

## Rules

1. **Categories** are ` + "`" + `mind` + "`" + ` or ` + "`" + `business` + "`" + `.
2. **Habit ids** are unique, lowercase, and may contain digits and dashes. Custom
   habits get a generated UUID.
3. **Dates** are local calendar days formatted ` + "`" + `YYYY-MM-DD` + "`" + `. There is at most one
   log per date; ` + "`" + `completedHabits` + "`" + ` keeps the order in which habits were checked.
4. **Completion rate** is ` + "`" + `round(100 * completed / habits)` + "`" + `, rounded half up.
5. **A day qualifies** for the streak when ` + "`" + `completed >= floor(habits * %s)` + "`" + `.
6. **Streak** counts consecutive qualifying days ending today. An unfinished today
   does not break it; the first non-qualifying earlier day does. At most %d days
   are inspected.
7. **Default habits** (12, six per category) are always present; missing ones are
   re-added on load.
8. **Text** is plain text. Markup in names and descriptions is stripped.
`
