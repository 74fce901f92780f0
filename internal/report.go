package internal

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/starford/habitflow/internal/habitservice"
)

func printStats(app *application, svc *habitservice.Service) error {
	today := svc.TodaySummary()
	w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Today\t%s\n", today.Date)
	fmt.Fprintf(w, "Completed\t%d/%d (%d%%)\n", today.Completed, today.Total, today.Rate)
	fmt.Fprintf(w, "Streak\t%d days\n", today.Streak)
	for _, c := range svc.CategoryStats() {
		fmt.Fprintf(w, "%s\t%d/%d (%d%%)\n", c.Category, c.Completed, c.Total, c.Rate)
	}
	fmt.Fprintln(w)

	week := svc.WeekStats()
	for _, d := range week {
		fmt.Fprintf(w, "%s\t%-10s %3d%%\n", d.DateStr, strings.Repeat("#", d.Rate/10), d.Rate)
	}
	fmt.Fprintf(w, "Weekly average\t%d%%\n", svc.WeeklyAverage())
	return w.Flush()
}
