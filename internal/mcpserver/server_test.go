package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/habitflow/internal/habitservice"
	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/testutil"
)

func testServer(t *testing.T) (*Server, *habitservice.Service) {
	t.Helper()
	svc, db := testutil.TestService(t)
	return New(svc, db, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_habits":
		result, err = srv.listHabits(ctx, req)
	case "toggle_habit":
		result, err = srv.toggleHabit(ctx, req)
	case "get_today":
		result, err = srv.getToday(ctx, req)
	case "get_week_stats":
		result, err = srv.getWeekStats(ctx, req)
	case "get_category_stats":
		result, err = srv.getCategoryStats(ctx, req)
	case "create_habit":
		result, err = srv.createHabit(ctx, req)
	case "search_habits":
		result, err = srv.searchHabits(ctx, req)
	case "get_data_format":
		result, err = srv.getDataFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListHabits(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_habits", map[string]interface{}{})
	var items []habitItem
	if err := json.Unmarshal([]byte(resultText(r)), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 12 {
		t.Errorf("habits = %d, want 12", len(items))
	}

	r = callTool(t, srv, "list_habits", map[string]interface{}{"category": "mind"})
	items = nil
	_ = json.Unmarshal([]byte(resultText(r)), &items)
	if len(items) != 6 {
		t.Errorf("mind habits = %d, want 6", len(items))
	}

	r = callTool(t, srv, "list_habits", map[string]interface{}{"category": "health"})
	if !r.IsError {
		t.Error("expected error for unknown category")
	}
}

func TestToggleHabit(t *testing.T) {
	srv, svc := testServer(t)

	r := callTool(t, srv, "toggle_habit", map[string]interface{}{"id": "gratitude"})
	if r.IsError {
		t.Fatalf("toggle failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"completed": true`) {
		t.Errorf("toggle result = %s", resultText(r))
	}
	if !svc.IsHabitCompleted("gratitude") {
		t.Error("service state not updated")
	}

	r = callTool(t, srv, "list_habits", map[string]interface{}{"category": "mind"})
	if !strings.Contains(resultText(r), `"completed": true`) {
		t.Error("list_habits should report the toggled habit as completed")
	}
}

func TestToggleHabit_Errors(t *testing.T) {
	srv, _ := testServer(t)

	if r := callTool(t, srv, "toggle_habit", map[string]interface{}{"id": "nope"}); !r.IsError {
		t.Error("expected error for unknown habit")
	}
	if r := callTool(t, srv, "toggle_habit", map[string]interface{}{}); !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestGetToday(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "toggle_habit", map[string]interface{}{"id": "reading"})

	var today habitservice.TodaySummary
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "get_today", nil))), &today); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if today.Date != "2026-01-07" || today.Completed != 1 || today.Rate != 8 {
		t.Errorf("today = %+v", today)
	}
}

func TestStatsTools(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "toggle_habit", map[string]interface{}{"id": "customer"})

	week := resultText(callTool(t, srv, "get_week_stats", nil))
	if !strings.Contains(week, `"weeklyAverage": 1`) {
		t.Errorf("week stats = %s", week)
	}
	cats := resultText(callTool(t, srv, "get_category_stats", nil))
	if !strings.Contains(cats, `"category": "business"`) {
		t.Errorf("category stats = %s", cats)
	}
}

func TestCreateHabit(t *testing.T) {
	srv, svc := testServer(t)

	r := callTool(t, srv, "create_habit", map[string]interface{}{
		"name":        "Inbox zero",
		"category":    "business",
		"description": "Clear the inbox before noon",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	if got := len(svc.Habits()); got != 13 {
		t.Errorf("habits = %d, want 13", got)
	}

	r = callTool(t, srv, "create_habit", map[string]interface{}{"name": "x", "category": "fun"})
	if !r.IsError {
		t.Error("expected validation error")
	}
}

func TestSearchHabits(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "search_habits", map[string]interface{}{"query": "journal"})
	if !strings.Contains(resultText(r), `"habitId": "gratitude"`) {
		t.Errorf("search result = %s", resultText(r))
	}

	r = callTool(t, srv, "search_habits", map[string]interface{}{"query": "zzzz"})
	if resultText(r) != "no habits found" {
		t.Errorf("empty search = %q", resultText(r))
	}
}

func TestSearchHabits_NoIndex(t *testing.T) {
	svc, _ := testutil.TestService(t)
	srv := New(svc, nil, "test")
	if r := callTool(t, srv, "search_habits", map[string]interface{}{"query": "x"}); !r.IsError {
		t.Error("expected error without index")
	}
}

func TestDataFormat(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_data_format", nil))
	for _, want := range []string{"habitflow_data", "floor(habits * 0.5)", "At most 365 days"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract should contain %q", want)
		}
	}

	contents, err := srv.readDataFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != DataFormatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}

func TestDataFormat_ReflectsConfiguredRules(t *testing.T) {
	svc, db := testutil.TestService(t,
		habitservice.WithThreshold(0.75),
		habitservice.WithStreakOptions(ledger.WithMaxLookback(30)),
	)
	srv := New(svc, db, "test")

	text := resultText(callTool(t, srv, "get_data_format", nil))
	for _, want := range []string{"floor(habits * 0.75)", "At most 30 days"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract should contain %q", want)
		}
	}
	if strings.Contains(text, "habits * 0.5)") || strings.Contains(text, "365") {
		t.Error("contract still shows the default rules")
	}
	if strings.Contains(text, "%!") {
		t.Errorf("contract has formatting errors:\n%s", text)
	}
}
