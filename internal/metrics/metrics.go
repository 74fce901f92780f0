// Package metrics exposes the Prometheus collectors used by habitflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HabitToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitflow_habit_toggles_total",
			Help: "Total number of habit toggles",
		},
		[]string{"habit", "state"}, // state: completed, cleared
	)

	HabitsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "habitflow_habits_created_total",
			Help: "Total number of habits added at runtime",
		},
	)

	CurrentStreak = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "habitflow_current_streak_days",
			Help: "Current consecutive-day streak",
		},
	)

	TodayCompletion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "habitflow_today_completion_percent",
			Help: "Completion percentage for the current local day",
		},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitflow_store_operations_total",
			Help: "Persistence gateway operations",
		},
		[]string{"op", "status"}, // op: load, save; status: ok, missing, corrupt, failed
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habitflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordToggle counts a toggle and whether it completed or cleared the habit.
func RecordToggle(habitID string, completed bool) {
	state := "cleared"
	if completed {
		state = "completed"
	}
	HabitToggles.WithLabelValues(habitID, state).Inc()
}

// SetProgress publishes the derived streak and today's completion rate.
func SetProgress(streak, todayRate int) {
	CurrentStreak.Set(float64(streak))
	TodayCompletion.Set(float64(todayRate))
}

// RecordStore counts a persistence gateway operation.
func RecordStore(op, status string) {
	StoreOperations.WithLabelValues(op, status).Inc()
}

// Middleware observes request latency labelled by the matched chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.WithLabelValues(r.Method, path, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
