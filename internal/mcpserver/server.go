// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes habitflow tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/habitflow/internal/apperr"
	"github.com/starford/habitflow/internal/habitservice"
	"github.com/starford/habitflow/internal/index"
	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/models"
)

// DataFormatURI identifies the persisted document contract resource.
const DataFormatURI = "habitflow://data-format"

// Server wraps the MCP server with habitflow tools.
type Server struct {
	mcp *server.MCPServer
	svc *habitservice.Service
	idx index.HabitIndex
}

// New creates a new MCP server with all tools registered. idx may be nil,
// in which case search_habits reports that the index is disabled.
func New(svc *habitservice.Service, idx index.HabitIndex, version string) *Server {
	s := &Server{svc: svc, idx: idx}

	s.mcp = server.NewMCPServer(
		"habitflow",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_habits",
		mcp.WithDescription("List tracked habits with today's completion flag."),
		mcp.WithString("category", mcp.Description("Optional category filter"), mcp.Enum("mind", "business")),
	), s.listHabits)

	s.mcp.AddTool(mcp.NewTool("toggle_habit",
		mcp.WithDescription("Mark a habit done for today, or undo it if it was already done."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Habit id as returned by list_habits")),
	), s.toggleHabit)

	s.mcp.AddTool(mcp.NewTool("get_today",
		mcp.WithDescription("Today's completed habits, completion rate and current streak."),
	), s.getToday)

	s.mcp.AddTool(mcp.NewTool("get_week_stats",
		mcp.WithDescription("Completion rate for each of the last seven days and their average."),
	), s.getWeekStats)

	s.mcp.AddTool(mcp.NewTool("get_category_stats",
		mcp.WithDescription("Today's progress per habit category."),
	), s.getCategoryStats)

	s.mcp.AddTool(mcp.NewTool("create_habit",
		mcp.WithDescription("Add a custom habit. Read "+DataFormatURI+" for field rules."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Short display name")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Habit category"), mcp.Enum("mind", "business")),
		mcp.WithString("description", mcp.Description("One sentence describing the habit")),
		mcp.WithString("icon", mcp.Description("Icon name, e.g. book or fitness-center")),
	), s.createHabit)

	s.mcp.AddTool(mcp.NewTool("search_habits",
		mcp.WithDescription("Search habits by name and description."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchHabits)

	s.mcp.AddTool(mcp.NewTool("get_data_format",
		mcp.WithDescription("Returns the habitflow data format contract."),
	), s.getDataFormat)

	s.mcp.AddResource(
		mcp.NewResource(DataFormatURI, "Data Format Contract",
			mcp.WithResourceDescription("Layout of the persisted habit document and the rules behind rates and streaks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDataFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type habitItem struct {
	models.Habit
	Completed bool `json:"completed"`
}

func (s *Server) listHabits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	habits := s.svc.Habits()
	if c := req.GetString("category", ""); c != "" {
		cat := models.Category(c)
		if !cat.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown category: %s", c)), nil
		}
		habits = s.svc.HabitsByCategory(cat)
	}
	today := s.svc.TodayLog()
	items := make([]habitItem, len(habits))
	for i, h := range habits {
		items[i] = habitItem{Habit: h, Completed: today.Has(h.ID)}
	}
	return jsonResult(items)
}

func (s *Server) toggleHabit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.ToggleHabit(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("habit not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getToday(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.TodaySummary())
}

func (s *Server) getWeekStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := s.svc.WeekStats()
	return jsonResult(map[string]any{
		"days":          days,
		"weeklyAverage": ledger.WeeklyAverage(days),
		"streak":        s.svc.Streak(),
	})
}

func (s *Server) getCategoryStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.CategoryStats())
}

func (s *Server) createHabit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h, err := s.svc.AddHabit(ctx, habitservice.NewHabit{
		Name:        name,
		Description: req.GetString("description", ""),
		Icon:        req.GetString("icon", ""),
		Category:    models.Category(category),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(h)
}

func (s *Server) searchHabits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.idx == nil {
		return mcp.NewToolResultError("search index disabled"), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.idx.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no habits found"), nil
	}
	return jsonResult(results)
}

func (s *Server) dataFormat() string {
	return DataFormatContract(s.svc.StorageKey(), s.svc.Rules())
}

func (s *Server) getDataFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.dataFormat()), nil
}

func (s *Server) readDataFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DataFormatURI,
			MIMEType: "text/markdown",
			Text:     s.dataFormat(),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
