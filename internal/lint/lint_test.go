package lint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterGoFiles(t *testing.T) {
	got := filterGoFiles([]string{"main.go", "README.md", "internal/a.go", "x.py"})
	assert.Equal(t, []string{"main.go", "internal/a.go"}, got)
}

func TestRun_NoGoFiles(t *testing.T) {
	c := NewChecker()
	res := c.Run(context.Background(), t.TempDir(), []string{"README.md", "script.py"})
	assert.True(t, res.Passed)
	assert.Empty(t, res.GofmtFiles)
}

func TestRun_ToolsMissingAreSkipped(t *testing.T) {
	c := &Checker{lookPath: func(string) (string, error) {
		return "", errors.New("not found")
	}}
	res := c.Run(context.Background(), t.TempDir(), []string{"main.go"})
	assert.True(t, res.Passed, "missing tools must not fail the gate")
	assert.Contains(t, res.Skipped, "gofmt")
	assert.Contains(t, res.Skipped, "go vet")
}

func TestGofmtList_FlagsUnformatted(t *testing.T) {
	c := NewChecker()
	if _, err := c.lookPath("gofmt"); err != nil {
		t.Skip("gofmt not installed")
	}

	dir := t.TempDir()
	bad := "package main\nfunc   main(){ }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.go"), []byte(bad), 0644))
	good := "package main\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.go"), []byte(good), 0644))

	files := c.gofmtList(context.Background(), dir, []string{"bad.go", "good.go"})
	assert.Equal(t, []string{"bad.go"}, files)
}

func TestSummary(t *testing.T) {
	clean := Result{Passed: true}
	assert.Equal(t, "lint: clean", clean.Summary())

	skipped := Result{Passed: true, Skipped: []string{"gofmt"}}
	assert.Contains(t, skipped.Summary(), "skipped: gofmt")

	failed := Result{Passed: false, GofmtFiles: []string{"main.go"}, VetOutput: "unreachable code"}
	out := failed.Summary()
	assert.Contains(t, out, "lint: failed")
	assert.Contains(t, out, "main.go")
	assert.Contains(t, out, "unreachable code")
}
