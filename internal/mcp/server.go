// Package mcp exposes cr's review machinery as MCP tools, so other
// agents can request reviews and query run history over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/review"
	"github.com/joescharf/cr/internal/store"
)

// ReviewFunc runs one review against repo. Swapped out in tests.
type ReviewFunc func(ctx context.Context, repo string, req review.Request) (*models.AggregateReview, error)

// Server wraps the cr core and exposes it as MCP tools.
type Server struct {
	store  store.Store
	cfg    agent.Config
	git    git.Client
	review ReviewFunc
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, cfg agent.Config, gc git.Client) *Server {
	srv := &Server{store: s, cfg: cfg, git: gc}
	srv.review = srv.runReview
	return srv
}

func (s *Server) runReview(ctx context.Context, repo string, req review.Request) (*models.AggregateReview, error) {
	orch := review.NewOrchestrator(s.cfg, repo, s.git, nil)
	return orch.Run(ctx, req)
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("cr", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.reviewTool())
	srv.AddTool(s.listAgentsTool())
	srv.AddTool(s.historyTool())
	srv.AddTool(s.getRunTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// cr_review
func (s *Server) reviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cr_review",
		mcp.WithDescription("Run a multi-agent code review over a repository's staged changes or a branch. Returns the aggregate gate, disagreements, and agent failures as JSON."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Path to the git repository to review")),
		mcp.WithString("branch", mcp.Description("Branch to review against its base; empty reviews staged changes")),
		mcp.WithString("base", mcp.Description("Base ref for branch review (default origin/main, then main)")),
		mcp.WithString("spec_file", mcp.Description("Path to a specification file to review against")),
		mcp.WithString("agents", mcp.Description("Comma-separated agent names (default: configured set)")),
	)
	return tool, s.handleReview
}

func (s *Server) handleReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repo"), nil
	}
	branch := request.GetString("branch", "")
	base := request.GetString("base", "")
	specFile := request.GetString("spec_file", "")
	agentsCSV := request.GetString("agents", "")

	var diff, subject string
	if branch == "" {
		subject = "staged"
		diff, err = s.git.StagedDiff(ctx, repo, 0)
	} else {
		resolved := git.ResolveBase(ctx, s.git, repo, base)
		subject = resolved + "..." + branch
		diff, err = s.git.BranchDiff(ctx, repo, resolved, branch, 0)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get diff: %v", err)), nil
	}
	if strings.TrimSpace(diff) == "" {
		return mcp.NewToolResultError("no changes to review"), nil
	}

	var spec string
	if specFile != "" {
		data, err := os.ReadFile(specFile)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read spec: %v", err)), nil
		}
		spec = string(data)
	}

	var agents []string
	if agentsCSV != "" {
		for _, a := range strings.Split(agentsCSV, ",") {
			if a = strings.TrimSpace(a); a != "" {
				agents = append(agents, a)
			}
		}
	}

	run, err := s.review(ctx, repo, review.Request{
		Subject: subject,
		SpecRef: specFile,
		Diff:    diff,
		Spec:    spec,
		Agents:  agents,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save run: %v", err)), nil
		}
	}

	out := map[string]any{
		"run_id":        run.ID,
		"gate":          run.Gate.String(),
		"exit_code":     run.Gate.ExitCode(),
		"agents":        run.Agents,
		"disagreements": disagreementsOut(run.Disagreements),
		"failures":      failuresOut(run.Failures),
	}
	return jsonResult(out)
}

// cr_list_agents
func (s *Server) listAgentsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cr_list_agents",
		mcp.WithDescription("List the configured review agents with their kind, command, and current availability."),
	)
	return tool, s.handleListAgents
}

func (s *Server) handleListAgents(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type agentOut struct {
		Name      string `json:"name"`
		Kind      string `json:"kind"`
		Command   string `json:"command,omitempty"`
		Model     string `json:"model,omitempty"`
		Available bool   `json:"available"`
	}

	out := make([]agentOut, 0, len(s.cfg.Order))
	for _, name := range s.cfg.Order {
		def, ok := s.cfg.Agents[name]
		if !ok {
			out = append(out, agentOut{Name: name})
			continue
		}
		out = append(out, agentOut{
			Name:      def.Name,
			Kind:      string(def.Kind),
			Command:   strings.Join(def.Command, " "),
			Model:     def.Model,
			Available: agent.Available(def),
		})
	}
	return jsonResult(out)
}

// cr_review_history
func (s *Server) historyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cr_review_history",
		mcp.WithDescription("List recent review runs: id, subject, gate, agents, disagreement and failure counts."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (default 20)")),
	)
	return tool, s.handleHistory
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	type runOut struct {
		ID            string   `json:"id"`
		Subject       string   `json:"subject"`
		Gate          string   `json:"gate"`
		Agents        []string `json:"agents"`
		Disagreements int      `json:"disagreements"`
		Failures      int      `json:"failures"`
		CreatedAt     string   `json:"created_at"`
	}

	out := make([]runOut, len(runs))
	for i, r := range runs {
		out[i] = runOut{
			ID:            r.ID,
			Subject:       r.Subject,
			Gate:          r.Gate.String(),
			Agents:        r.Agents,
			Disagreements: r.Disagreements,
			Failures:      r.Failures,
			CreatedAt:     r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
	}
	return jsonResult(out)
}

// cr_get_run
func (s *Server) getRunTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cr_get_run",
		mcp.WithDescription("Get one review run in full: per-agent verdicts, disagreements, and failures."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run id from cr_review_history")),
	)
	return tool, s.handleGetRun
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: run_id"), nil
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", runID)), nil
	}

	type changeOut struct {
		ChangeID  string `json:"change_id"`
		Verdict   string `json:"verdict"`
		Reasoning string `json:"reasoning,omitempty"`
	}
	type reviewOut struct {
		Agent   string      `json:"agent"`
		Gate    string      `json:"gate"`
		Changes []changeOut `json:"changes"`
	}

	reviews := make([]reviewOut, len(run.Reviews))
	for i, r := range run.Reviews {
		ro := reviewOut{Agent: r.Agent, Gate: r.Gate.String()}
		for _, cv := range r.Changes {
			ro.Changes = append(ro.Changes, changeOut{
				ChangeID:  cv.ChangeID,
				Verdict:   cv.Verdict.String(),
				Reasoning: cv.Reasoning,
			})
		}
		reviews[i] = ro
	}

	out := map[string]any{
		"id":            run.ID,
		"subject":       run.Subject,
		"spec_ref":      run.SpecRef,
		"gate":          run.Gate.String(),
		"agents":        run.Agents,
		"reviews":       reviews,
		"disagreements": disagreementsOut(run.Disagreements),
		"failures":      failuresOut(run.Failures),
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Shared output shaping
// ---------------------------------------------------------------------------

func disagreementsOut(ds []models.Disagreement) []map[string]any {
	out := make([]map[string]any, len(ds))
	for i, d := range ds {
		verdicts := make(map[string]string, len(d.Verdicts))
		for agentName, v := range d.Verdicts {
			verdicts[agentName] = v.String()
		}
		out[i] = map[string]any{
			"change_id": d.ChangeID,
			"severity":  string(d.Severity),
			"verdicts":  verdicts,
		}
	}
	return out
}

func failuresOut(fs []models.AgentFailure) []map[string]any {
	out := make([]map[string]any, len(fs))
	for i, f := range fs {
		out[i] = map[string]any{
			"agent":  f.Agent,
			"kind":   string(f.Kind),
			"detail": f.Detail,
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
