// Package observe runs the context-gathering tools an agent may
// request mid-review instead of rendering verdicts. Results feed back
// into the next prompt so the agent can judge with real evidence
// instead of guessing.
package observe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/golang"
)

// Request is one tool invocation asked for by an agent, decoded from
// the OBSERVATIONS JSON block of its response.
type Request struct {
	Name   string         `json:"name"`
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// toolTimeout bounds one observation so a runaway tool cannot eat the
// round's budget.
const toolTimeout = 30 * time.Second

// maxFileBytes caps file_content reads.
const maxFileBytes = 64 * 1024

// Runner executes observation requests against a repository.
type Runner struct {
	git  git.Client
	mods golang.Analyzer
	repo string
}

// NewRunner builds a runner rooted at repo.
func NewRunner(g git.Client, repo string) *Runner {
	return &Runner{git: g, mods: golang.NewAnalyzer(), repo: repo}
}

// Run executes every request concurrently and returns results keyed by
// request name. Tool failures are reported in-band per observation; a
// bad request never fails the review round.
func (r *Runner) Run(ctx context.Context, reqs []Request) map[string]any {
	results := make(map[string]any, len(reqs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, req := range reqs {
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			toolCtx, cancel := context.WithTimeout(ctx, toolTimeout)
			defer cancel()

			out := r.runOne(toolCtx, req)
			key := req.Name
			if key == "" {
				key = req.Tool
			}
			mu.Lock()
			results[key] = out
			mu.Unlock()
		}(req)
	}
	wg.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, req Request) any {
	switch req.Tool {
	case "find_usages":
		return r.findUsages(ctx, req)
	case "git_blame":
		return r.gitBlame(ctx, req)
	case "file_content":
		return r.fileContent(req)
	case "project_dependencies":
		return r.projectDependencies()
	default:
		return errorResult(fmt.Sprintf("unknown tool: %s", req.Tool))
	}
}

func (r *Runner) findUsages(ctx context.Context, req Request) any {
	symbol := stringParam(req, "symbol")
	if symbol == "" {
		return errorResult("find_usages requires a symbol param")
	}
	out, err := r.git.Grep(ctx, r.repo, symbol)
	if err != nil {
		return errorResult(err.Error())
	}
	var matches []string
	if out != "" {
		matches = strings.Split(out, "\n")
	}
	return map[string]any{"symbol": symbol, "matches": matches, "count": len(matches)}
}

func (r *Runner) gitBlame(ctx context.Context, req Request) any {
	file := stringParam(req, "file_path")
	if file == "" {
		return errorResult("git_blame requires a file_path param")
	}
	start := intParam(req, "start_line")
	end := intParam(req, "end_line")
	out, err := r.git.BlameRange(ctx, r.repo, file, start, end)
	if err != nil {
		return errorResult(err.Error())
	}
	return map[string]any{"file": file, "blame": out}
}

func (r *Runner) fileContent(req Request) any {
	rel := stringParam(req, "file_path")
	if rel == "" {
		return errorResult("file_content requires a file_path param")
	}
	root := filepath.Clean(r.repo)
	full := filepath.Join(root, rel)
	if full != root && !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		return errorResult("file_path escapes the repository")
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return errorResult(err.Error())
	}
	truncated := false
	if len(data) > maxFileBytes {
		data = data[:maxFileBytes]
		truncated = true
	}
	return map[string]any{"file": rel, "content": string(data), "truncated": truncated}
}

func (r *Runner) projectDependencies() any {
	if !golang.IsGoProject(r.repo) {
		return errorResult("no go.mod in repository")
	}
	out := map[string]any{}
	if mod, err := r.mods.ModulePath(r.repo); err == nil {
		out["module"] = mod
	}
	if v, err := r.mods.GoVersion(r.repo); err == nil {
		out["go"] = v
	}
	deps, err := r.mods.Requires(r.repo)
	if err != nil {
		return errorResult(err.Error())
	}
	out["requires"] = deps
	return out
}

func errorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func stringParam(req Request, key string) string {
	v, _ := req.Params[key].(string)
	return v
}

func intParam(req Request, key string) int {
	switch v := req.Params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
