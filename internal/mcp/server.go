// Package mcp exposes Lectern over the Model Context Protocol so other
// tools can search the corpus and read or write study memory without
// going through the CLI.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	appctx "github.com/lectern/lectern/internal/context"
	"github.com/lectern/lectern/internal/engine"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/memory"
)

// defaultOwner is used when a tool call does not name a student.
const defaultOwner = "student"

// Server wires the shared engine and memory manager into MCP tools.
type Server struct {
	engine    *engine.Engine
	manager   *memory.Manager
	store     *index.Store
	builder   *appctx.Builder
	formatter *appctx.Formatter
	buildOpts appctx.BuildOptions
	version   string
	logger    *zap.Logger
}

// NewServer creates an MCP server over an already-constructed application.
func NewServer(eng *engine.Engine, manager *memory.Manager, store *index.Store, builder *appctx.Builder, buildOpts appctx.BuildOptions, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:    eng,
		manager:   manager,
		store:     store,
		builder:   builder,
		formatter: appctx.NewFormatter(),
		buildOpts: buildOpts,
		version:   version,
		logger:    logger,
	}
}

// Serve registers the tools and blocks serving MCP over stdio.
func (s *Server) Serve() error {
	srv := server.NewMCPServer("lectern", s.version)

	srv.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search the ingested course material. Returns the confidence verdict (teach or guide) and the ranked passages behind it."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to look for")),
		mcp.WithString("course", mcp.Description("Restrict to one course")),
		mcp.WithNumber("top_k", mcp.Description("How many passages to return")),
	), s.handleSearch)

	srv.AddTool(mcp.NewTool("memory_context",
		mcp.WithDescription("Assemble the student's memory context for a question: profile, durable facts, weak topics, and deep recall, within the configured token budget."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question the context is for")),
		mcp.WithString("owner", mcp.Description("Student identifier (default: student)")),
	), s.handleContext)

	srv.AddTool(mcp.NewTool("remember",
		mcp.WithDescription("Store a durable fact about the student. Re-remembering the same kind and key overwrites the value."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Stable identifier for the fact, e.g. exam_biology")),
		mcp.WithString("value", mcp.Required(), mcp.Description("The fact itself")),
		mcp.WithString("kind", mcp.Description("One of: preference, fact, goal, struggle, insight, exam (default: fact)")),
		mcp.WithString("owner", mcp.Description("Student identifier (default: student)")),
	), s.handleRemember)

	srv.AddTool(mcp.NewTool("forget",
		mcp.WithDescription("Delete a durable fact by kind and key."),
		mcp.WithString("key", mcp.Required(), mcp.Description("The fact's key")),
		mcp.WithString("kind", mcp.Description("The fact's kind (default: fact)")),
		mcp.WithString("owner", mcp.Description("Student identifier (default: student)")),
	), s.handleForget)

	srv.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Summarize the corpus and the student's memory: ingested sources, fact counts, sessions answered, and weak topics."),
		mcp.WithString("owner", mcp.Description("Student identifier (default: student)")),
	), s.handleStatus)

	s.logger.Info("mcp server starting", zap.String("version", s.version))
	return server.ServeStdio(srv)
}
