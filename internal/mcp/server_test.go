package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/morepork/factfill/internal/engine"
	"github.com/morepork/factfill/internal/match"
	"github.com/morepork/factfill/internal/store"
)

func setupTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	eng, err := engine.New(context.Background(), s, engine.Options{})
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	return eng
}

func TestNewServer(t *testing.T) {
	srv := NewServer(ServerConfig{Engine: setupTestEngine(t)})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool invokes an MCP tool through the server's JSON-RPC entry point.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	raw := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	result := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			result.Content = append(result.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return result
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func TestIngestAndSuggestTools(t *testing.T) {
	srv := NewServer(ServerConfig{Engine: setupTestEngine(t)})

	result := callTool(t, srv, "factfill_ingest", map[string]interface{}{
		"subject_id": "acme",
		"text":       "NZBN: 9429 041 398 978\nAnnual Turnover: $5,500,000",
	})
	if result.IsError {
		t.Fatalf("ingest failed: %s", getTextContent(t, result))
	}

	var report store.OutcomeReport
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &report); err != nil {
		t.Fatalf("parsing outcome report: %v", err)
	}
	if report.Added != 2 {
		t.Errorf("report = %+v, want 2 added", report)
	}

	result = callTool(t, srv, "factfill_suggest", map[string]interface{}{
		"subject_id": "acme",
		"label":      "Annual Turnover",
	})
	if result.IsError {
		t.Fatalf("suggest failed: %s", getTextContent(t, result))
	}

	var suggestions []match.Suggestion
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &suggestions); err != nil {
		t.Fatalf("parsing suggestions: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].Value != "5500000" {
		t.Errorf("suggestions = %+v, want 5500000", suggestions)
	}
}

func TestSuggestBatchTool(t *testing.T) {
	srv := NewServer(ServerConfig{Engine: setupTestEngine(t)})

	callTool(t, srv, "factfill_ingest", map[string]interface{}{
		"subject_id": "acme",
		"text":       "Email: office@acme.nz",
	})

	result := callTool(t, srv, "factfill_suggest_batch", map[string]interface{}{
		"subject_id": "acme",
		"fields":     `[{"label":"Email Address"},{"label":"Favorite Color"}]`,
	})
	if result.IsError {
		t.Fatalf("suggest batch failed: %s", getTextContent(t, result))
	}

	var lists [][]match.Suggestion
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &lists); err != nil {
		t.Fatalf("parsing batch result: %v", err)
	}
	if len(lists) != 2 {
		t.Fatalf("lists = %d, want one per field", len(lists))
	}
	if len(lists[0]) != 1 || lists[0][0].Value != "office@acme.nz" {
		t.Errorf("email suggestions = %+v", lists[0])
	}
	if len(lists[1]) != 0 {
		t.Errorf("unmatchable field suggestions = %+v, want empty list", lists[1])
	}
}

func TestSuggestBatchToolRejectsBadJSON(t *testing.T) {
	srv := NewServer(ServerConfig{Engine: setupTestEngine(t)})

	result := callTool(t, srv, "factfill_suggest_batch", map[string]interface{}{
		"subject_id": "acme",
		"fields":     "not json",
	})
	if !result.IsError {
		t.Fatal("expected an error result for malformed fields JSON")
	}
}

func TestFactsTool(t *testing.T) {
	srv := NewServer(ServerConfig{Engine: setupTestEngine(t)})

	callTool(t, srv, "factfill_ingest", map[string]interface{}{
		"subject_id": "acme",
		"text":       "Phone: 021 555 000\n- Site Safe Certification",
	})

	result := callTool(t, srv, "factfill_facts", map[string]interface{}{
		"subject_id": "acme",
	})
	if result.IsError {
		t.Fatalf("facts failed: %s", getTextContent(t, result))
	}

	text := getTextContent(t, result)
	if !strings.Contains(text, "021555000") || !strings.Contains(text, "Site Safe Certification") {
		t.Errorf("profile = %s, want phone and certification", text)
	}
}

func TestStatsTool(t *testing.T) {
	srv := NewServer(ServerConfig{Engine: setupTestEngine(t)})

	callTool(t, srv, "factfill_ingest", map[string]interface{}{
		"subject_id": "acme",
		"text":       "Email: a@b.nz",
	})

	result := callTool(t, srv, "factfill_stats", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("stats failed: %s", getTextContent(t, result))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &payload); err != nil {
		t.Fatalf("parsing stats: %v", err)
	}
	if payload["subjects"].(float64) != 1 || payload["facts"].(float64) != 1 {
		t.Errorf("stats = %+v", payload)
	}
}
