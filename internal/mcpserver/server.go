// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the knowledge base operations to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/brain/internal/docstore"
	"github.com/starford/brain/internal/document"
	"github.com/starford/brain/internal/index"
	"github.com/starford/brain/internal/regen"
	"github.com/starford/brain/internal/validate"
	"github.com/starford/brain/internal/views"
)

// Deps are the services the tools call into. Catalog may be nil, in which
// case the search tool reports that search is unavailable.
type Deps struct {
	Store     *docstore.Store
	Regen     *regen.Regenerator
	Validator *validate.Validator
	Catalog   index.Catalog
	Logger    *slog.Logger
}

// Server wraps the MCP server with the knowledge base tools.
type Server struct {
	mcp *server.MCPServer
	Deps
}

// DocSummary is the compact form of a document in list results.
type DocSummary struct {
	Path       string   `json:"path"`
	Title      string   `json:"title"`
	Type       string   `json:"type,omitempty"`
	ShipFactor int      `json:"ship_factor"`
	Deprecated bool     `json:"deprecated,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// New creates a new MCP server with all tools registered.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{Deps: deps}

	s.mcp = server.NewMCPServer(
		"Brain",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document with complete frontmatter. The path is derived "+
			"from category (or type), subtype and a slug of the title. Read the frontmatter schema "+
			"first via get_frontmatter_schema or the "+SchemaURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Document title")),
		mcp.WithString("content", mcp.Description("Markdown body")),
		mcp.WithString("type", mcp.Description("knowledge, behavior, system, tool or general")),
		mcp.WithString("subtype", mcp.Description("Free-form subtype, e.g. decisions")),
		mcp.WithArray("tags", mcp.Description("Tags"), stringItems),
		mcp.WithNumber("ship_factor", mcp.Description("Priority from 1 to 10, default 5")),
		mcp.WithArray("references", mcp.Description("Root-relative paths of related documents"), stringItems),
		mcp.WithString("category", mcp.Description("Top-level directory override")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full content of a document, frontmatter included."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Root-relative path (e.g. knowledge/decisions/use-redis.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("update_document",
		mcp.WithDescription("Update a document's body and/or metadata. Version and modified are maintained automatically."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Root-relative path")),
		mcp.WithString("content", mcp.Description("New Markdown body; omit to keep the current body")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("type", mcp.Description("New type")),
		mcp.WithString("subtype", mcp.Description("New subtype")),
		mcp.WithArray("tags", mcp.Description("Replacement tag list"), stringItems),
		mcp.WithNumber("ship_factor", mcp.Description("New priority from 1 to 10")),
		mcp.WithArray("references", mcp.Description("Replacement reference list"), stringItems),
		mcp.WithString("supersedes", mcp.Description("Path of the document this one replaces")),
	), s.updateDocument)

	s.mcp.AddTool(mcp.NewTool("deprecate_document",
		mcp.WithDescription("Mark a document as deprecated. The file is kept."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Root-relative path")),
		mcp.WithString("reason", mcp.Required(), mcp.Description("Why the document is deprecated")),
	), s.deprecateDocument)

	s.mcp.AddTool(mcp.NewTool("get_statistics",
		mcp.WithDescription("Counts of documents per category, type and subtype, plus deprecated and high-priority totals."),
	), s.getStatistics)

	s.mcp.AddTool(mcp.NewTool("high_priority",
		mcp.WithDescription("Non-deprecated documents at or above a ship factor, highest first."),
		mcp.WithNumber("min_ship_factor", mcp.Description("Minimum ship factor, default 8")),
	), s.highPriority)

	s.mcp.AddTool(mcp.NewTool("find_by_tags",
		mcp.WithDescription("Documents carrying at least one of the given tags."),
		mcp.WithArray("tags", mcp.Required(), mcp.Description("Tags to match"), stringItems),
	), s.findByTags)

	s.mcp.AddTool(mcp.NewTool("list_category",
		mcp.WithDescription("Documents under a category path prefix, e.g. knowledge or knowledge/decisions."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category path prefix")),
	), s.listCategory)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Regenerate the index document from the current document set."),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("validate_documents",
		mcp.WithDescription("Check every document against the frontmatter schema, optionally filling missing fields first."),
		mcp.WithBoolean("repair", mcp.Description("Fill missing required fields before validating")),
	), s.validateDocuments)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document titles, bodies and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits, default 20")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("get_frontmatter_schema",
		mcp.WithDescription("Returns the frontmatter schema. Call this before creating or updating documents."),
	), s.getFrontmatterSchema)

	s.mcp.AddResource(
		mcp.NewResource(SchemaURI, "Frontmatter Schema",
			mcp.WithResourceDescription("Metadata fields and rules every document follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSchemaResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func summaries(docs []document.Document) []DocSummary {
	out := make([]DocSummary, 0, len(docs))
	for _, d := range docs {
		sum := DocSummary{
			Path:       d.Path,
			Title:      d.DisplayTitle(),
			ShipFactor: d.Meta.ShipFactorValue(),
			Deprecated: d.Meta.IsDeprecated(),
			Tags:       d.Meta.Tags,
		}
		if d.Meta.Type != nil {
			sum.Type = string(*d.Meta.Type)
		}
		out = append(out, sum)
	}
	return out
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.Store.Create(ctx, docstore.NewDocument{
		Title:      title,
		Content:    req.GetString("content", ""),
		Type:       document.Type(req.GetString("type", "")),
		Subtype:    req.GetString("subtype", ""),
		Tags:       stringsArg(req, "tags", nil),
		ShipFactor: intArg(req, "ship_factor", 0),
		References: stringsArg(req, "references", nil),
		Category:   req.GetString("category", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", p)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.Store.Provider().Read(p)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", p)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) updateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var content *string
	if hasArg(req, "content") {
		content = document.Ptr(req.GetString("content", ""))
	}
	var patch document.Metadata
	if hasArg(req, "title") {
		patch.Title = document.Ptr(req.GetString("title", ""))
	}
	if hasArg(req, "type") {
		patch.Type = document.Ptr(document.Type(req.GetString("type", "")))
	}
	if hasArg(req, "subtype") {
		patch.Subtype = document.Ptr(req.GetString("subtype", ""))
	}
	if hasArg(req, "tags") {
		patch.Tags = stringsArg(req, "tags", []string{})
	}
	if hasArg(req, "ship_factor") {
		patch.ShipFactor = document.Ptr(intArg(req, "ship_factor", document.DefaultShipFactor))
	}
	if hasArg(req, "references") {
		patch.References = stringsArg(req, "references", []string{})
	}
	if hasArg(req, "supersedes") {
		patch.Supersedes = document.Ptr(req.GetString("supersedes", ""))
	}

	d, err := s.Store.Update(ctx, p, content, &patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (version %d)", d.Path, d.Meta.VersionValue())), nil
}

func (s *Server) deprecateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reason, err := req.RequireString("reason")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.Store.Deprecate(ctx, p, reason); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deprecated: %s", p)), nil
}

func (s *Server) getStatistics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.Regen.Statistics(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) highPriority(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.Regen.HighPriority(ctx, intArg(req, "min_ship_factor", views.HighPriorityThreshold))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summaries(docs))
}

func (s *Server) findByTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags := stringsArg(req, "tags", nil)
	if len(tags) == 0 {
		return mcp.NewToolResultError("at least one tag is required"), nil
	}
	docs, err := s.Regen.ByTag(ctx, tags)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summaries(docs))
}

func (s *Server) listCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := s.Regen.ByCategory(ctx, category)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summaries(docs))
}

func (s *Server) rebuildIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.Regen.RebuildIndex(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("rebuilt: %s", s.Regen.Paths().Index)), nil
}

type validateResult struct {
	Repair *validate.RepairResult `json:"repair,omitempty"`
	Report validate.Report        `json:"report"`
}

func (s *Server) validateDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var res validateResult
	if boolArg(req, "repair", false) {
		rr, err := s.Validator.RepairAll(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res.Repair = &rr
	}
	report, err := s.Validator.Validate(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res.Report = report
	return jsonResult(res)
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.Catalog == nil {
		return mcp.NewToolResultError("search is unavailable: no catalog configured"), nil
	}
	if _, err := index.Sync(ctx, s.Catalog, s.Store.Provider(), s.Logger); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.Catalog.Search(query, intArg(req, "limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getFrontmatterSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontmatterSchema), nil
}

func (s *Server) readSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SchemaURI,
			MIMEType: "text/markdown",
			Text:     FrontmatterSchema,
		},
	}, nil
}
