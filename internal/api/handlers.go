package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/habitflow/internal/apperr"
	"github.com/starford/habitflow/internal/checksum"
	"github.com/starford/habitflow/internal/habitservice"
	"github.com/starford/habitflow/internal/habitstore"
	"github.com/starford/habitflow/internal/index"
	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/models"
)

// defaultHistoryDays is the history window when no bounds are given.
const defaultHistoryDays = 30

// Handler holds API route handlers.
type Handler struct {
	svc *habitservice.Service
	idx index.HabitIndex
}

// NewHandler creates a new Handler. idx may be nil, in which case history
// and search answer 503.
func NewHandler(svc *habitservice.Service, idx index.HabitIndex) *Handler {
	return &Handler{svc: svc, idx: idx}
}

// ListHabits handles GET /api/habits.
//
//	@Summary		List habits, optionally filtered by category
//	@Tags			habits
//	@Produce		json
//	@Param			category	query		string	false	"Category"	Enums(mind, business)
//	@Success		200			{object}	HabitListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits [get]
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	var habits []models.Habit
	if c := r.URL.Query().Get("category"); c != "" {
		cat := models.Category(c)
		if !cat.Valid() {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown category"))
			return
		}
		habits = h.svc.HabitsByCategory(cat)
	} else {
		habits = h.svc.Habits()
	}

	today := h.svc.TodayLog()
	views := make([]HabitView, len(habits))
	for i, hb := range habits {
		views[i] = HabitView{Habit: hb, Glyph: models.IconGlyph(hb.Icon), Completed: today.Has(hb.ID)}
	}
	writeJSON(w, http.StatusOK, HabitListResponse{Habits: views, Total: len(views)})
}

// CreateHabit handles POST /api/habits.
//
//	@Summary		Add a custom habit
//	@Tags			habits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateHabitRequest	true	"Habit to create"
//	@Success		201		{object}	models.Habit
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits [post]
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req CreateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	habit, err := h.svc.AddHabit(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalid) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		} else {
			internalError(w, "create habit", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

// ToggleHabit handles POST /api/habits/{id}/toggle.
//
//	@Summary		Toggle a habit for today
//	@Tags			habits
//	@Produce		json
//	@Param			id	path		string	true	"Habit id"
//	@Success		200	{object}	ToggleResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits/{id}/toggle [post]
func (h *Handler) ToggleHabit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.svc.ToggleHabit(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("habit not found"))
		} else {
			internalError(w, "toggle habit", err, slog.String("habit", id))
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Today handles GET /api/today.
//
//	@Summary		Today's log, rate and streak
//	@Tags			progress
//	@Produce		json
//	@Success		200	{object}	TodayResponse
//	@Security		BearerAuth
//	@Router			/today [get]
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.TodaySummary())
}

// State handles GET /api/state.
//
//	@Summary		The full persisted document
//	@Tags			progress
//	@Produce		json
//	@Param			If-None-Match	header	string	false	"ETag from a previous response"
//	@Success		200	{object}	models.HabitState
//	@Success		304	"Not modified"
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	data, err := habitstore.Encode(h.svc.Snapshot())
	if err != nil {
		internalError(w, "encode state", err)
		return
	}
	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	if checksum.MatchesETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// WeekStats handles GET /api/stats/week.
//
//	@Summary		Completion rate for the last seven days
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	WeekStatsResponse
//	@Security		BearerAuth
//	@Router			/stats/week [get]
func (h *Handler) WeekStats(w http.ResponseWriter, r *http.Request) {
	days := h.svc.WeekStats()
	writeJSON(w, http.StatusOK, WeekStatsResponse{
		Days:          days,
		WeeklyAverage: ledger.WeeklyAverage(days),
		Streak:        h.svc.Streak(),
	})
}

// CategoryStats handles GET /api/stats/categories.
//
//	@Summary		Today's progress per category
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	CategoryStatsResponse
//	@Security		BearerAuth
//	@Router			/stats/categories [get]
func (h *Handler) CategoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CategoryStatsResponse{Categories: h.svc.CategoryStats()})
}

// History handles GET /api/history.
//
//	@Summary		Per-day completion history
//	@Tags			stats
//	@Produce		json
//	@Param			from	query		string	false	"First day, YYYY-MM-DD"
//	@Param			to		query		string	false	"Last day, YYYY-MM-DD"
//	@Success		200		{object}	HistoryResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.idx == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("history index disabled"))
		return
	}
	from, to, err := historyRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"), h.svc.Today())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	days, err := h.idx.History(r.Context(), from, to)
	if err != nil {
		internalError(w, "history", err)
		return
	}
	totals, err := h.idx.HabitTotals(r.Context(), from, to)
	if err != nil {
		internalError(w, "habit totals", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		From:   from,
		To:     to,
		Days:   nonNilSlice(days),
		Totals: nonNilSlice(totals),
	})
}

// historyRange validates the bounds and fills in defaults: to defaults to
// today, from to defaultHistoryDays days before to.
func historyRange(from, to, today string) (string, string, error) {
	if to == "" {
		to = today
	}
	end, err := ledger.ParseDate(to, time.UTC)
	if err != nil {
		return "", "", errors.New("invalid 'to' date, want YYYY-MM-DD")
	}
	if from == "" {
		from = ledger.FormatDate(end.AddDate(0, 0, -(defaultHistoryDays - 1)))
	}
	start, err := ledger.ParseDate(from, time.UTC)
	if err != nil {
		return "", "", errors.New("invalid 'from' date, want YYYY-MM-DD")
	}
	if start.After(end) {
		return "", "", errors.New("'from' is after 'to'")
	}
	return from, to, nil
}

// Search handles GET /api/search.
//
//	@Summary		Search habits by name and description
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.idx == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("search index disabled"))
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.idx.Search(r.Context(), q, limit)
	if err != nil {
		internalError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNilSlice(results)})
}
