// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Munin tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/mutate"
	"github.com/starford/munin/internal/queryservice"
)

// Server wraps the MCP server with Munin tools.
type Server struct {
	mcp *server.MCPServer
	svc *queryservice.Service
}

// New creates a new MCP server with all Munin tools registered.
func New(svc *queryservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Munin",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query_plans",
		mcp.WithDescription("List plans with optional filters. All filters combine with AND."),
		mcp.WithString("status", mcp.Description("Plan status: ACTIVE, PAUSED, PLANNED, COMPLETE, or CANCELLED")),
		mcp.WithString("author", mcp.Description("Author substring (case-insensitive)")),
		mcp.WithString("topic", mcp.Description("Topic substring (case-insensitive)")),
		mcp.WithString("updated_after", mcp.Description("Inclusive lower bound, YYYY-MM-DD")),
		mcp.WithString("updated_before", mcp.Description("Inclusive upper bound, YYYY-MM-DD")),
	), s.queryPlans)

	s.mcp.AddTool(mcp.NewTool("query_sessions",
		mcp.WithDescription("List work sessions. With no date filter the last seven days are returned."),
		mcp.WithString("date", mcp.Description("Exact date, YYYY-MM-DD")),
		mcp.WithString("after", mcp.Description("Inclusive lower bound, YYYY-MM-DD")),
		mcp.WithString("before", mcp.Description("Inclusive upper bound, YYYY-MM-DD")),
		mcp.WithString("topic", mcp.Description("Topic substring (case-insensitive)")),
		mcp.WithString("plan", mcp.Description("Associated plan id")),
		mcp.WithNumber("days", mcp.Description("Shorthand for after = today minus N days")),
	), s.querySessions)

	s.mcp.AddTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Relevance-ranked search across the knowledge root. "+
			"Exact phrase matches rank above all-words matches, which rank above any-word matches."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("scope", mcp.Description("Search scope: all, plans, sessions, or learned (default all)")),
	), s.searchKnowledge)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full content of a knowledge document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Root-relative path (e.g. sessions/2026-08-10-session.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("update_session",
		mcp.WithDescription("Apply a structured mutation to a session: add topics or file references, "+
			"set status, or insert body content. Content requires a placement; 'after'/'before' placements "+
			"additionally require an anchor pattern. Read the contract first via the get_document_contract "+
			"tool or the munin://document-format resource."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Session date, YYYY-MM-DD")),
		mcp.WithString("add_topics", mcp.Description("Comma-separated topics to add (idempotent)")),
		mcp.WithString("add_files", mcp.Description("Comma-separated file references to add (idempotent)")),
		mcp.WithString("set_status", mcp.Description("New status value")),
		mcp.WithString("content", mcp.Description("Markdown content to insert")),
		mcp.WithString("placement", mcp.Description("Where to insert: append, prepend, after, or before")),
		mcp.WithString("section", mcp.Description("Heading for appended content")),
		mcp.WithString("pattern", mcp.Description("Anchor line for after/before placements")),
		mcp.WithString("shortcut", mcp.Description("Shorthand operation: done, wip, or append")),
	), s.updateSession)

	s.mcp.AddTool(mcp.NewTool("update_plan",
		mcp.WithDescription("Apply a structured mutation to a plan. Same operations as update_session, "+
			"targeted by plan id instead of date."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Plan id (the PLAN_<id>.md filename stem)")),
		mcp.WithString("add_topics", mcp.Description("Comma-separated topics to add (idempotent)")),
		mcp.WithString("add_files", mcp.Description("Comma-separated file references to add (idempotent)")),
		mcp.WithString("set_status", mcp.Description("New status value")),
		mcp.WithString("content", mcp.Description("Markdown content to insert")),
		mcp.WithString("placement", mcp.Description("Where to insert: append, prepend, after, or before")),
		mcp.WithString("section", mcp.Description("Heading for appended content")),
		mcp.WithString("pattern", mcp.Description("Anchor line for after/before placements")),
		mcp.WithString("shortcut", mcp.Description("Shorthand operation: done, wip, or append")),
	), s.updatePlan)

	s.mcp.AddTool(mcp.NewTool("scan_knowledge",
		mcp.WithDescription("Classified inventory of the knowledge root: sessions, plans, and learned "+
			"patterns, with per-file errors for anything unreadable."),
	), s.scanKnowledge)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the canonical Munin document format contract. "+
			"Call this before creating or updating documents to ensure correct structure."),
	), s.getDocumentContract)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource("munin://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical Markdown document format for the knowledge root."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
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

func (s *Server) queryPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plans, err := s.svc.Plans(queryservice.PlansQuery{
		Status:        req.GetString("status", ""),
		Author:        req.GetString("author", ""),
		Topic:         req.GetString("topic", ""),
		UpdatedAfter:  req.GetString("updated_after", ""),
		UpdatedBefore: req.GetString("updated_before", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(plans, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) querySessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.svc.Sessions(queryservice.SessionsQuery{
		Date:     req.GetString("date", ""),
		After:    req.GetString("after", ""),
		Before:   req.GetString("before", ""),
		Topic:    req.GetString("topic", ""),
		PlanID:   req.GetString("plan", ""),
		DaysBack: req.GetInt("days", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(sessions, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(query, req.GetString("scope", ""), 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) updateSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applyMutation(mutate.Target{Kind: models.KindSession, Key: date}, req)
}

func (s *Server) updatePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applyMutation(mutate.Target{Kind: models.KindPlan, Key: id}, req)
}

func (s *Server) applyMutation(target mutate.Target, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Mutate(mutate.Request{
		Target:    target,
		AddTopics: splitList(req.GetString("add_topics", "")),
		AddFiles:  splitList(req.GetString("add_files", "")),
		SetStatus: req.GetString("set_status", ""),
		Content:   req.GetString("content", ""),
		Placement: mutate.Placement(req.GetString("placement", "")),
		Section:   req.GetString("section", ""),
		Pattern:   req.GetString("pattern", ""),
		Shortcut:  req.GetString("shortcut", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (s *Server) scanKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.Scan(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "munin://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
