package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/memory"
)

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	course := req.GetString("course", "")
	topK := req.GetInt("top_k", 0)

	res, err := s.engine.Search(ctx, query, index.QueryOptions{Course: course, TopK: topK})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Verdict: %s (top %.4f, cutoff %.4f, %d supporting)\n",
		res.Decision.Mode, res.Decision.TopScore, res.Decision.Cutoff, res.Decision.Supporting)
	if res.Degraded {
		sb.WriteString("Note: embedding unavailable, lexical ranking only.\n")
	}
	if res.Broadened {
		sb.WriteString("Note: course filter produced too little, search was broadened.\n")
	}
	sb.WriteString("\n")

	if len(res.Results) == 0 {
		sb.WriteString("No passages matched.\n")
		if stats := s.store.Stats(); len(stats) > 0 {
			sb.WriteString("\nAvailable material:\n")
			sb.WriteString(s.formatter.FormatSourceList(stats))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}

	for i, r := range res.Results {
		fmt.Fprintf(&sb, "### %d. %s / %s (score %.4f)\n%s\n\n",
			i+1, r.Chunk.Course, r.Chunk.SourceID, r.Fused, r.Chunk.Text)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	owner := req.GetString("owner", defaultOwner)

	built := s.builder.Build(ctx, owner, question, s.buildOpts)

	var sb strings.Builder
	if built.MemoryText != "" {
		sb.WriteString(built.MemoryText)
	}
	if len(built.History) > 0 {
		sb.WriteString("\n## Recent Conversation\n\n")
		for _, t := range built.History {
			fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
		}
	}
	if sb.Len() == 0 {
		return mcp.NewToolResultText("No memory recorded for this student yet."), nil
	}
	fmt.Fprintf(&sb, "\n(%d tokens, sections: %s)\n", built.TokensUsed, strings.Join(built.Sections, ", "))
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleRemember(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: key"), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: value"), nil
	}
	owner := req.GetString("owner", defaultOwner)

	kind := memory.FactKind(req.GetString("kind", string(memory.KindFact)))
	if !memory.ValidFactKind(kind) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid kind %q (valid: preference, fact, goal, struggle, insight, exam)", kind)), nil
	}

	id, insertErr := s.manager.Store().UpsertFact(memory.Fact{
		Owner: owner,
		Kind:  kind,
		Key:   key,
		Value: value,
	})
	if insertErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store fact: %v", insertErr)), nil
	}

	s.manager.Profiles().Invalidate(owner)
	return mcp.NewToolResultText(fmt.Sprintf("Remembered %s/%s for %s (id: %s)", kind, key, owner, id)), nil
}

func (s *Server) handleForget(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: key"), nil
	}
	owner := req.GetString("owner", defaultOwner)
	kind := memory.FactKind(req.GetString("kind", string(memory.KindFact)))

	deleted, delErr := s.manager.Store().DeleteFact(owner, kind, key)
	if delErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete fact: %v", delErr)), nil
	}
	if !deleted {
		return mcp.NewToolResultText(fmt.Sprintf("No fact %s/%s stored for %s.", kind, key, owner)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Forgot %s/%s for %s.", kind, key, owner)), nil
}

func (s *Server) handleStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := req.GetString("owner", defaultOwner)

	stats := s.store.Stats()
	sessions, _ := s.manager.Store().SessionCount(owner)
	facts, _ := s.manager.Store().ListFacts(owner, 0)
	weak := s.manager.WeakTopics(owner, 5)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Corpus:   %d chunks across %d sources\n", s.store.Len(), len(stats))
	fmt.Fprintf(&sb, "Student:  %s\n", owner)
	fmt.Fprintf(&sb, "Facts:    %d stored", len(facts))
	if counts := countByKind(facts); counts != "" {
		fmt.Fprintf(&sb, " (%s)", counts)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Sessions: %d answered\n", sessions)

	if len(weak) > 0 {
		sb.WriteString("\nWeak topics:\n")
		for _, m := range weak {
			fmt.Fprintf(&sb, "- %s (mastery %.0f%%)\n", m.Topic, m.Level*100)
		}
	}
	if len(stats) > 0 {
		sb.WriteString("\nSources:\n")
		sb.WriteString(s.formatter.FormatSourceList(stats))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func countByKind(facts []memory.Fact) string {
	counts := map[memory.FactKind]int{}
	for _, f := range facts {
		counts[f.Kind]++
	}
	parts := []string{}
	for _, k := range []memory.FactKind{memory.KindPreference, memory.KindFact, memory.KindGoal, memory.KindStruggle, memory.KindInsight, memory.KindExam} {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	return strings.Join(parts, ", ")
}
