// Package patch turns BLOCK verdicts into applied fixes. A designated
// agent generates a unified diff per blocked change; every diff is
// dry-run validated before it may touch the working tree.
package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/artifacts"
	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/models"
)

// Engine drives fix generation for one run.
type Engine struct {
	runner  agent.Runner
	agent   string
	git     git.Client
	repo    string
	dir     *artifacts.Dir
	timeout time.Duration
}

// NewEngine returns an Engine that asks runner (named agentName in
// records) for fixes, applies them to the repo working tree, and saves
// every generated diff under dir. dir may be nil to skip artifacts.
func NewEngine(runner agent.Runner, agentName string, gitClient git.Client, repo string, dir *artifacts.Dir, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = agent.DefaultTimeout
	}
	return &Engine{
		runner:  runner,
		agent:   agentName,
		git:     gitClient,
		repo:    repo,
		dir:     dir,
		timeout: timeout,
	}
}

// FixAll attempts a patch for every blocked change, strictly one at a
// time. Independently generated patches may touch the same file, so
// the working tree is only ever written by the attempt in flight; the
// loop is the lock. One failed attempt never stops the next.
func (e *Engine) FixAll(ctx context.Context, runID string, changes []models.ChangeVerdict) []*models.PatchAttempt {
	attempts := make([]*models.PatchAttempt, 0, len(changes))
	for _, cv := range changes {
		if ctx.Err() != nil {
			break
		}
		attempts = append(attempts, e.fixOne(ctx, runID, cv))
	}
	return attempts
}

func (e *Engine) fixOne(ctx context.Context, runID string, cv models.ChangeVerdict) *models.PatchAttempt {
	attempt := &models.PatchAttempt{
		RunID:     runID,
		ChangeID:  cv.ChangeID,
		Agent:     e.agent,
		CreatedAt: time.Now(),
	}

	file := changeFile(cv.ChangeID)
	content, err := os.ReadFile(filepath.Join(e.repo, file))
	if err != nil {
		attempt.Error = fmt.Sprintf("read %s: %v", file, err)
		return attempt
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	response, err := e.runner.Run(runCtx, fixPrompt(file, cv.Reasoning, string(content)))
	cancel()
	if err != nil {
		attempt.Error = fmt.Sprintf("generate fix: %v", err)
		return attempt
	}

	unified := ExtractDiff(response)
	if strings.TrimSpace(unified) == "" {
		attempt.Error = "agent returned no diff"
		return attempt
	}
	attempt.Diff = unified

	patchFile, err := writeTempPatch(unified)
	if err != nil {
		attempt.Error = err.Error()
		return attempt
	}
	defer os.Remove(patchFile)

	if err := e.git.Apply(ctx, e.repo, patchFile, true); err != nil {
		attempt.Error = fmt.Sprintf("invalid patch: %v", err)
		e.saveArtifact(attempt)
		return attempt
	}
	attempt.Valid = true

	if err := e.git.Apply(ctx, e.repo, patchFile, false); err != nil {
		attempt.Error = fmt.Sprintf("apply: %v", err)
		e.saveArtifact(attempt)
		return attempt
	}
	attempt.Applied = true
	e.saveArtifact(attempt)
	return attempt
}

func (e *Engine) saveArtifact(attempt *models.PatchAttempt) {
	if e.dir == nil || attempt.Diff == "" {
		return
	}
	if path, err := e.dir.SavePatch(attempt.ChangeID, attempt.Status(), attempt.Diff); err == nil {
		attempt.ArtifactPath = path
	}
}

// changeFile strips the line or symbol qualifier from a change id,
// leaving the repo-relative file path.
func changeFile(changeID string) string {
	file, _, _ := strings.Cut(changeID, ":")
	return file
}

// writeTempPatch writes the diff to a temp file for git apply. git
// rejects patches without a trailing newline.
func writeTempPatch(unified string) (string, error) {
	f, err := os.CreateTemp("", "cr-*.patch")
	if err != nil {
		return "", fmt.Errorf("temp patch: %w", err)
	}
	if !strings.HasSuffix(unified, "\n") {
		unified += "\n"
	}
	if _, err := f.WriteString(unified); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("temp patch: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("temp patch: %w", err)
	}
	return f.Name(), nil
}

// fixPrompt asks the agent for a corrective diff. The contract is
// strict so extraction stays trivial: only the diff, starting at the
// --- a/ header.
func fixPrompt(file, concern, content string) string {
	var b strings.Builder
	b.WriteString("The following BLOCK was identified in a code review:\n\n")
	fmt.Fprintf(&b, "File: %s\n", file)
	b.WriteString("Verdict: BLOCK\n")
	fmt.Fprintf(&b, "Concern: %s\n\n", concern)
	b.WriteString("Current file content:\n")
	b.WriteString("```\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")
	b.WriteString("Generate a unified diff that fixes this concern.\n")
	b.WriteString("Output ONLY the diff, no explanation. Start with:\n")
	fmt.Fprintf(&b, "--- a/%s\n", file)
	fmt.Fprintf(&b, "+++ b/%s\n", file)
	return b.String()
}
