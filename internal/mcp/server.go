// Package mcp provides a Model Context Protocol server for factfill.
//
// It exposes the engine to automation collaborators (form fillers) as MCP
// tools: ingest a document, suggest values for one field or a whole form,
// read a subject's facts, and report store stats. Stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/morepork/factfill/internal/engine"
	"github.com/morepork/factfill/internal/facttype"
	"github.com/morepork/factfill/internal/match"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Engine  *engine.Engine
	Version string
}

// dbMu serializes MCP tool calls. The mcp-go library dispatches handlers
// concurrently via goroutines; SQLite supports one writer at a time, and a
// form filler expects its ingest to be visible to the suggest call it makes
// next.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all factfill tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"factfill",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerIngestTool(s, cfg.Engine)
	registerSuggestTool(s, cfg.Engine)
	registerSuggestBatchTool(s, cfg.Engine)
	registerFactsTool(s, cfg.Engine)
	registerStatsTool(s, cfg.Engine)

	registerSubjectsResource(s, cfg.Engine)

	return s
}

func registerIngestTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("factfill_ingest",
		mcp.WithDescription("Ingest a document for a subject: extract typed facts from the text and merge them into the subject's profile. Returns the per-field outcome report (added/updated/unchanged/skipped/cleared)."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("subject_id",
			mcp.Required(),
			mcp.Description("Subject (company profile) identifier"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Full document text to extract facts from"),
		),
		mcp.WithString("doc_id",
			mcp.Description("Document identifier; generated when omitted"),
		),
		mcp.WithBoolean("clear_missing",
			mcp.Description("Clear stored singular facts absent from this document (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		subjectID, err := req.RequireString("subject_id")
		if err != nil {
			return mcp.NewToolResultError("subject_id is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		docID := ""
		if v, err := req.RequireString("doc_id"); err == nil {
			docID = v
		}
		clearMissing := false
		if v, err := req.RequireBool("clear_missing"); err == nil {
			clearMissing = v
		}

		report, err := eng.ExtractAndMerge(ctx, subjectID, docID, text, clearMissing)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ingest error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(report, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSuggestTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("factfill_suggest",
		mcp.WithDescription("Suggest values for one form field from a subject's stored facts. Returns ranked suggestions with confidence and rationale; an empty list means no suggestion is available."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("subject_id",
			mcp.Required(),
			mcp.Description("Subject identifier"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("The field's visible label or question text"),
		),
		mcp.WithString("context_hint",
			mcp.Description("Optional context such as the form's domain (used to prefer the right jurisdiction's identifiers)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		subjectID, err := req.RequireString("subject_id")
		if err != nil {
			return mcp.NewToolResultError("subject_id is required"), nil
		}
		label, err := req.RequireString("label")
		if err != nil {
			return mcp.NewToolResultError("label is required"), nil
		}
		hint := ""
		if v, err := req.RequireString("context_hint"); err == nil {
			hint = v
		}

		suggestions, err := eng.Suggest(ctx, subjectID, match.Field{Label: label, ContextHint: hint})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("suggest error: %v", err)), nil
		}
		if suggestions == nil {
			suggestions = []match.Suggestion{}
		}

		data, _ := json.MarshalIndent(suggestions, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSuggestBatchTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("factfill_suggest_batch",
		mcp.WithDescription("Suggest values for a whole detected form in one call. Takes a JSON array of fields ([{\"label\": ..., \"context_hint\": ...}]) and returns one suggestion list per field, in order."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("subject_id",
			mcp.Required(),
			mcp.Description("Subject identifier"),
		),
		mcp.WithString("fields",
			mcp.Required(),
			mcp.Description("JSON array of field descriptors, each with a label and optional context_hint"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		subjectID, err := req.RequireString("subject_id")
		if err != nil {
			return mcp.NewToolResultError("subject_id is required"), nil
		}
		fieldsJSON, err := req.RequireString("fields")
		if err != nil {
			return mcp.NewToolResultError("fields is required"), nil
		}

		var fields []match.Field
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid fields JSON: %v", err)), nil
		}

		lists, err := eng.SuggestBatch(ctx, subjectID, fields)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("suggest error: %v", err)), nil
		}
		for i := range lists {
			if lists[i] == nil {
				lists[i] = []match.Suggestion{}
			}
		}

		data, _ := json.MarshalIndent(lists, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerFactsTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("factfill_facts",
		mcp.WithDescription("Read a subject's profile: one value per singular fact type, a collection per multi-valued type."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("subject_id",
			mcp.Required(),
			mcp.Description("Subject identifier"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		subjectID, err := req.RequireString("subject_id")
		if err != nil {
			return mcp.NewToolResultError("subject_id is required"), nil
		}

		profile, err := eng.GetFacts(ctx, subjectID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("facts error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(profile, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("factfill_stats",
		mcp.WithDescription("Store statistics: subject, fact, document and merge-event counts plus database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := eng.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		payload := map[string]interface{}{
			"subjects":      stats.SubjectCount,
			"facts":         stats.FactCount,
			"documents":     stats.DocumentCount,
			"merge_events":  stats.EventCount,
			"db_size_bytes": stats.DBSizeBytes,
			"fact_types":    len(facttype.All()),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSubjectsResource(s *server.MCPServer, eng *engine.Engine) {
	resource := mcp.NewResource(
		"factfill://subjects",
		"Subjects",
		mcp.WithResourceDescription("All known subject identifiers."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		subjects, err := eng.ListSubjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing subjects: %w", err)
		}
		if subjects == nil {
			subjects = []string{}
		}

		payload := map[string]interface{}{
			"subjects": subjects,
			"count":    len(subjects),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
