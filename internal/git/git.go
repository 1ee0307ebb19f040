package git

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultContextLines is the diff context handed to reviewers. Wider
// than git's default so agents see enough surrounding code.
const DefaultContextLines = 10

// Client defines the git operations a review needs. Every method takes
// a repo path since cr reviews whatever repository it is pointed at.
type Client interface {
	RepoRoot(ctx context.Context, path string) (string, error)
	CurrentBranch(ctx context.Context, path string) (string, error)
	IsDirty(ctx context.Context, path string) (bool, error)
	HasRef(ctx context.Context, path, ref string) bool
	StagedDiff(ctx context.Context, path string, contextLines int) (string, error)
	BranchDiff(ctx context.Context, path, base, ref string, contextLines int) (string, error)
	Grep(ctx context.Context, path, pattern string) (string, error)
	BlameRange(ctx context.Context, path, file string, start, end int) (string, error)
	Apply(ctx context.Context, path, patchFile string, check bool) error
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(ctx context.Context, path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.CommandContext(ctx, "git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot(ctx context.Context, path string) (string, error) {
	return gitCmd(ctx, path, "rev-parse", "--show-toplevel")
}

func (c *RealClient) CurrentBranch(ctx context.Context, path string) (string, error) {
	return gitCmd(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
}

func (c *RealClient) IsDirty(ctx context.Context, path string) (bool, error) {
	out, err := gitCmd(ctx, path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

func (c *RealClient) HasRef(ctx context.Context, path, ref string) bool {
	_, err := gitCmd(ctx, path, "rev-parse", "--verify", "--quiet", ref)
	return err == nil
}

// StagedDiff returns the diff of staged changes. Whitespace in the
// output is preserved, so this bypasses gitCmd's trimming.
func (c *RealClient) StagedDiff(ctx context.Context, path string, contextLines int) (string, error) {
	return c.rawDiff(ctx, path, "--staged", contextArg(contextLines))
}

// BranchDiff returns the three-dot diff base...ref: everything ref
// changed since it diverged from base.
func (c *RealClient) BranchDiff(ctx context.Context, path, base, ref string, contextLines int) (string, error) {
	return c.rawDiff(ctx, path, contextArg(contextLines), base+"..."+ref)
}

func (c *RealClient) rawDiff(ctx context.Context, path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path, "diff"}, args...)
	out, err := exec.CommandContext(ctx, "git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git diff: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git diff: %w", err)
	}
	return string(out), nil
}

// Grep searches tracked files for a symbol, returning up to a screenful
// of file:line:text matches. No matches is an empty result, not an error.
func (c *RealClient) Grep(ctx context.Context, path, pattern string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", path, "grep", "-n", "--max-count", "50", "-e", pattern)
	out, err := cmd.Output()
	if err != nil {
		// grep exits 1 when nothing matches
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("git grep: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// BlameRange summarizes authorship for a line range of a file.
func (c *RealClient) BlameRange(ctx context.Context, path, file string, start, end int) (string, error) {
	if start <= 0 {
		start = 1
	}
	if end < start {
		end = start
	}
	rangeArg := fmt.Sprintf("-L%d,%d", start, end)
	return gitCmd(ctx, path, "blame", "--date=short", rangeArg, "--", file)
}

// Apply applies a patch file to the worktree. With check set it is a
// dry run: git validates the patch against the current tree without
// touching anything.
func (c *RealClient) Apply(ctx context.Context, path, patchFile string, check bool) error {
	args := []string{"apply"}
	if check {
		args = append(args, "--check")
	}
	args = append(args, patchFile)
	if _, err := gitCmd(ctx, path, args...); err != nil {
		return err
	}
	return nil
}

// ResolveBase picks the diff base: an explicit base wins, then
// origin/main if the remote ref exists, then main.
func ResolveBase(ctx context.Context, c Client, path, base string) string {
	if base != "" {
		return base
	}
	if c.HasRef(ctx, path, "origin/main") {
		return "origin/main"
	}
	return "main"
}

func contextArg(lines int) string {
	if lines <= 0 {
		lines = DefaultContextLines
	}
	return "-U" + strconv.Itoa(lines)
}
