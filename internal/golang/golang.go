// Package golang answers questions about the reviewed Go module by
// parsing its go.mod directly, without invoking the toolchain.
package golang

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Analyzer reports facts about a Go module for the observation tools.
type Analyzer interface {
	GoVersion(path string) (string, error)
	ModulePath(path string) (string, error)
	Requires(path string) ([]string, error)
}

// RealAnalyzer implements Analyzer by parsing go.mod files.
type RealAnalyzer struct{}

// NewAnalyzer returns a new RealAnalyzer.
func NewAnalyzer() *RealAnalyzer {
	return &RealAnalyzer{}
}

func (a *RealAnalyzer) GoVersion(path string) (string, error) {
	goMod := filepath.Join(path, "go.mod")
	return parseGoModField(goMod, "go ")
}

func (a *RealAnalyzer) ModulePath(path string) (string, error) {
	goMod := filepath.Join(path, "go.mod")
	return parseGoModField(goMod, "module ")
}

// Requires returns the module's direct dependencies as "path version"
// strings. Indirect requirements are skipped; reviewers asking about
// dependencies want the surface the code actually imports.
func (a *RealAnalyzer) Requires(path string) ([]string, error) {
	f, err := os.Open(filepath.Join(path, "go.mod"))
	if err != nil {
		return nil, fmt.Errorf("open go.mod: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []string
	inBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "require (":
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock || strings.HasPrefix(line, "require "):
			dep := strings.TrimSpace(strings.TrimPrefix(line, "require "))
			if dep == "" || strings.Contains(dep, "// indirect") {
				continue
			}
			out = append(out, dep)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read go.mod: %w", err)
	}
	return out, nil
}

// parseGoModField reads go.mod and returns the value for a given prefix line.
func parseGoModField(goModPath, prefix string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", fmt.Errorf("open go.mod: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read go.mod: %w", err)
	}
	return "", fmt.Errorf("field %q not found in %s", strings.TrimSpace(prefix), goModPath)
}

// IsGoProject returns true if the path contains a go.mod file.
func IsGoProject(path string) bool {
	_, err := os.Stat(filepath.Join(path, "go.mod"))
	return err == nil
}
