// Package lint runs the cheap static checks before any model sees a
// diff. Formatting and vet problems waste agent tokens, so they gate
// first, locally.
package lint

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Result is the outcome of one lint pass over the changed files.
type Result struct {
	Passed     bool
	GofmtFiles []string // files gofmt would rewrite
	VetOutput  string   // go vet diagnostics, if any
	Skipped    []string // tools not run because they are not installed
}

// Checker runs lint tools over a repository. lookPath is swapped out
// in tests.
type Checker struct {
	lookPath func(string) (string, error)
}

// NewChecker returns a Checker using the system PATH.
func NewChecker() *Checker {
	return &Checker{lookPath: exec.LookPath}
}

// Run lints the given changed files inside repo. Only .go files are
// considered; a tool missing from PATH is skipped, not an error.
func (c *Checker) Run(ctx context.Context, repo string, files []string) Result {
	res := Result{Passed: true}

	goFiles := filterGoFiles(files)
	if len(goFiles) == 0 {
		return res
	}

	if _, err := c.lookPath("gofmt"); err != nil {
		res.Skipped = append(res.Skipped, "gofmt")
	} else {
		res.GofmtFiles = c.gofmtList(ctx, repo, goFiles)
		if len(res.GofmtFiles) > 0 {
			res.Passed = false
		}
	}

	if _, err := c.lookPath("go"); err != nil {
		res.Skipped = append(res.Skipped, "go vet")
	} else {
		res.VetOutput = c.vet(ctx, repo, goFiles)
		if res.VetOutput != "" {
			res.Passed = false
		}
	}

	return res
}

// Fix rewrites the changed files in place with gofmt -w.
func (c *Checker) Fix(ctx context.Context, repo string, files []string) error {
	goFiles := filterGoFiles(files)
	if len(goFiles) == 0 {
		return nil
	}
	if _, err := c.lookPath("gofmt"); err != nil {
		return fmt.Errorf("gofmt not installed")
	}

	args := append([]string{"-w"}, goFiles...)
	cmd := exec.CommandContext(ctx, "gofmt", args...)
	cmd.Dir = repo
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("gofmt -w: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// Summary renders the result for terminal display.
func (r Result) Summary() string {
	var b strings.Builder
	if r.Passed {
		b.WriteString("lint: clean")
		if len(r.Skipped) > 0 {
			fmt.Fprintf(&b, " (skipped: %s)", strings.Join(r.Skipped, ", "))
		}
		return b.String()
	}

	b.WriteString("lint: failed\n")
	if len(r.GofmtFiles) > 0 {
		fmt.Fprintf(&b, "gofmt would rewrite:\n")
		for _, f := range r.GofmtFiles {
			fmt.Fprintf(&b, "  %s\n", f)
		}
	}
	if r.VetOutput != "" {
		fmt.Fprintf(&b, "go vet:\n%s\n", r.VetOutput)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Checker) gofmtList(ctx context.Context, repo string, files []string) []string {
	args := append([]string{"-l"}, files...)
	cmd := exec.CommandContext(ctx, "gofmt", args...)
	cmd.Dir = repo
	out, err := cmd.Output()
	if err != nil {
		// gofmt errors (e.g. unparsable file) surface as needing attention
		return files
	}
	var bad []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			bad = append(bad, line)
		}
	}
	return bad
}

func (c *Checker) vet(ctx context.Context, repo string, files []string) string {
	// vet works on packages, not files: dedupe the directories touched
	dirs := make(map[string]bool)
	for _, f := range files {
		dir := filepath.Dir(f)
		if dir == "" {
			dir = "."
		}
		dirs[dir] = true
	}
	pkgs := make([]string, 0, len(dirs))
	for d := range dirs {
		pkgs = append(pkgs, "./"+filepath.ToSlash(d))
	}
	sort.Strings(pkgs)

	args := append([]string{"vet"}, pkgs...)
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = repo
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out))
	}
	return ""
}

func filterGoFiles(files []string) []string {
	var out []string
	for _, f := range files {
		if strings.HasSuffix(f, ".go") {
			out = append(out, f)
		}
	}
	return out
}
