package patch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/cr/internal/artifacts"
	"github.com/joescharf/cr/internal/models"
)

const sampleDiff = "--- a/auth.go\n+++ b/auth.go\n@@ -1 +1 @@\n-old\n+new"

// fixRunner scripts one response per call and records every prompt.
type fixRunner struct {
	responses []string
	err       error
	prompts   []string
	events    *[]string
}

func (r *fixRunner) Run(_ context.Context, prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if r.events != nil {
		*r.events = append(*r.events, "run")
	}
	if r.err != nil {
		return "", r.err
	}
	if len(r.responses) == 0 {
		return "", nil
	}
	resp := r.responses[0]
	r.responses = r.responses[1:]
	return resp, nil
}

type applyCall struct {
	patch string
	check bool
}

// fakeGit records Apply calls; checkErr and applyErr script failures
// for the Nth change attempt (keyed by call count).
type fakeGit struct {
	calls    []applyCall
	checkErr map[int]error // index = dry-run call ordinal
	applyErr map[int]error
	checks   int
	applies  int
	events   *[]string
}

func (g *fakeGit) Apply(_ context.Context, _, patchFile string, check bool) error {
	data, err := os.ReadFile(patchFile)
	if err != nil {
		return fmt.Errorf("patch file unreadable: %w", err)
	}
	g.calls = append(g.calls, applyCall{patch: string(data), check: check})
	if g.events != nil {
		label := "apply"
		if check {
			label = "check"
		}
		*g.events = append(*g.events, label)
	}
	if check {
		g.checks++
		return g.checkErr[g.checks-1]
	}
	g.applies++
	return g.applyErr[g.applies-1]
}

func (g *fakeGit) RepoRoot(context.Context, string) (string, error)      { return "", nil }
func (g *fakeGit) CurrentBranch(context.Context, string) (string, error) { return "", nil }
func (g *fakeGit) IsDirty(context.Context, string) (bool, error)        { return false, nil }
func (g *fakeGit) HasRef(context.Context, string, string) bool          { return false }
func (g *fakeGit) StagedDiff(context.Context, string, int) (string, error) {
	return "", nil
}
func (g *fakeGit) BranchDiff(context.Context, string, string, string, int) (string, error) {
	return "", nil
}
func (g *fakeGit) Grep(context.Context, string, string) (string, error) { return "", nil }
func (g *fakeGit) BlameRange(context.Context, string, string, int, int) (string, error) {
	return "", nil
}

func testRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.go"), []byte("old\n"), 0o644))
	return dir
}

func testArtifacts(t *testing.T) *artifacts.Dir {
	t.Helper()
	dir, err := artifacts.NewDir(t.TempDir(), "run1")
	require.NoError(t, err)
	return dir
}

func blocked(id string) models.ChangeVerdict {
	return models.ChangeVerdict{ChangeID: id, Verdict: models.VerdictBlock, Reasoning: "unchecked error"}
}

func TestFixAll_AppliesValidPatch(t *testing.T) {
	runner := &fixRunner{responses: []string{"```diff\n" + sampleDiff + "\n```"}}
	g := &fakeGit{}
	dir := testArtifacts(t)
	eng := NewEngine(runner, "claude", g, testRepo(t), dir, time.Minute)

	attempts := eng.FixAll(context.Background(), "run1", []models.ChangeVerdict{blocked("auth.go:1")})
	require.Len(t, attempts, 1)

	a := attempts[0]
	assert.True(t, a.Valid)
	assert.True(t, a.Applied)
	assert.Equal(t, "applied", a.Status())
	assert.Equal(t, sampleDiff, a.Diff)
	assert.Empty(t, a.Error)
	assert.Equal(t, "claude", a.Agent)

	// dry run first, then the real apply, same content
	require.Len(t, g.calls, 2)
	assert.True(t, g.calls[0].check)
	assert.False(t, g.calls[1].check)
	assert.Equal(t, g.calls[0].patch, g.calls[1].patch)
	assert.True(t, strings.HasSuffix(g.calls[0].patch, "\n"))

	require.NotEmpty(t, a.ArtifactPath)
	assert.Equal(t, "auth.go_1.applied.patch", filepath.Base(a.ArtifactPath))
}

func TestFixAll_InvalidPatchNeverApplied(t *testing.T) {
	runner := &fixRunner{responses: []string{sampleDiff}}
	g := &fakeGit{checkErr: map[int]error{0: errors.New("patch does not apply")}}
	eng := NewEngine(runner, "claude", g, testRepo(t), testArtifacts(t), time.Minute)

	attempts := eng.FixAll(context.Background(), "run1", []models.ChangeVerdict{blocked("auth.go:1")})
	require.Len(t, attempts, 1)

	a := attempts[0]
	assert.False(t, a.Valid)
	assert.False(t, a.Applied)
	assert.Equal(t, "invalid", a.Status())
	assert.Contains(t, a.Error, "invalid patch")
	assert.Equal(t, "auth.go_1.invalid.patch", filepath.Base(a.ArtifactPath))

	// the non-check apply must never run after a failed dry run
	require.Len(t, g.calls, 1)
	assert.True(t, g.calls[0].check)
}

func TestFixAll_ApplyFailureAfterValidCheck(t *testing.T) {
	runner := &fixRunner{responses: []string{sampleDiff}}
	g := &fakeGit{applyErr: map[int]error{0: errors.New("disk full")}}
	eng := NewEngine(runner, "claude", g, testRepo(t), testArtifacts(t), time.Minute)

	a := eng.FixAll(context.Background(), "run1", []models.ChangeVerdict{blocked("auth.go:1")})[0]
	assert.True(t, a.Valid)
	assert.False(t, a.Applied)
	assert.Equal(t, "failed", a.Status())
	assert.Contains(t, a.Error, "apply")
	assert.Equal(t, "auth.go_1.failed.patch", filepath.Base(a.ArtifactPath))
}

func TestFixAll_EmptyResponseIsFailure(t *testing.T) {
	runner := &fixRunner{responses: []string{"Sorry, I cannot fix this."}}
	g := &fakeGit{}
	eng := NewEngine(runner, "claude", g, testRepo(t), nil, time.Minute)

	a := eng.FixAll(context.Background(), "run1", []models.ChangeVerdict{blocked("auth.go:1")})[0]
	assert.Equal(t, "agent returned no diff", a.Error)
	assert.Empty(t, a.Diff)
	assert.Empty(t, g.calls)
}

func TestFixAll_RunnerErrorRecorded(t *testing.T) {
	runner := &fixRunner{err: errors.New("binary not found")}
	eng := NewEngine(runner, "claude", &fakeGit{}, testRepo(t), nil, time.Minute)

	a := eng.FixAll(context.Background(), "run1", []models.ChangeVerdict{blocked("auth.go:1")})[0]
	assert.Contains(t, a.Error, "generate fix")
	assert.Contains(t, a.Error, "binary not found")
}

func TestFixAll_MissingFileSkipsAgent(t *testing.T) {
	runner := &fixRunner{responses: []string{sampleDiff}}
	eng := NewEngine(runner, "claude", &fakeGit{}, testRepo(t), nil, time.Minute)

	a := eng.FixAll(context.Background(), "run1", []models.ChangeVerdict{blocked("nonexistent.go:3")})[0]
	assert.Contains(t, a.Error, "read nonexistent.go")
	assert.Empty(t, runner.prompts)
}

func TestFixAll_SerializesAttempts(t *testing.T) {
	var events []string
	runner := &fixRunner{
		responses: []string{sampleDiff, sampleDiff},
		events:    &events,
	}
	g := &fakeGit{events: &events}
	eng := NewEngine(runner, "claude", g, testRepo(t), nil, time.Minute)

	changes := []models.ChangeVerdict{blocked("auth.go:1"), blocked("auth.go:9")}
	attempts := eng.FixAll(context.Background(), "run1", changes)
	require.Len(t, attempts, 2)

	// each attempt runs generate -> check -> apply to completion before
	// the next attempt starts
	assert.Equal(t, []string{"run", "check", "apply", "run", "check", "apply"}, events)
}

func TestFixAll_FailureDoesNotStopNextChange(t *testing.T) {
	runner := &fixRunner{responses: []string{sampleDiff, sampleDiff}}
	g := &fakeGit{checkErr: map[int]error{0: errors.New("corrupt patch")}}
	eng := NewEngine(runner, "claude", g, testRepo(t), nil, time.Minute)

	changes := []models.ChangeVerdict{blocked("auth.go:1"), blocked("auth.go:9")}
	attempts := eng.FixAll(context.Background(), "run1", changes)
	require.Len(t, attempts, 2)

	assert.Equal(t, "invalid", attempts[0].Status())
	assert.Equal(t, "applied", attempts[1].Status())
}

func TestFixAll_PromptCarriesFileAndContract(t *testing.T) {
	runner := &fixRunner{responses: []string{sampleDiff}}
	eng := NewEngine(runner, "claude", &fakeGit{}, testRepo(t), nil, time.Minute)

	eng.FixAll(context.Background(), "run1", []models.ChangeVerdict{blocked("auth.go:1")})

	require.Len(t, runner.prompts, 1)
	p := runner.prompts[0]
	assert.Contains(t, p, "File: auth.go")
	assert.Contains(t, p, "Concern: unchecked error")
	assert.Contains(t, p, "old\n") // current file content
	assert.Contains(t, p, "Output ONLY the diff")
	assert.Contains(t, p, "--- a/auth.go")
}

func TestFixAll_CancelledContextStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fixRunner{responses: []string{sampleDiff}}
	eng := NewEngine(runner, "claude", &fakeGit{}, testRepo(t), nil, time.Minute)

	attempts := eng.FixAll(ctx, "run1", []models.ChangeVerdict{blocked("auth.go:1")})
	assert.Empty(t, attempts)
	assert.Empty(t, runner.prompts)
}

func TestWriteTempPatch_TrailingNewline(t *testing.T) {
	path, err := writeTempPatch("--- a/x\n+++ b/x\n@@ -1 +1 @@\n-1\n+2")
	require.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "+2\n"))
}
