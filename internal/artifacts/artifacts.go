// Package artifacts persists run outputs on disk: each agent's raw
// response and every generated patch, applied or not, so a run can be
// audited after the fact.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir is a run-scoped artifact directory, <base>/<run-id>.
type Dir struct {
	root string
}

// NewDir creates (if needed) and returns the artifact dir for a run.
func NewDir(base, runID string) (*Dir, error) {
	root := filepath.Join(base, runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the run's artifact directory path.
func (d *Dir) Root() string { return d.root }

// SaveResponse writes one agent's raw response.
func (d *Dir) SaveResponse(agent, response string) (string, error) {
	return d.write(sanitize(agent)+".response.md", response)
}

// SavePatch writes a patch attempt, named by change id and outcome so
// a directory listing reads as a run summary.
func (d *Dir) SavePatch(changeID, outcome, patch string) (string, error) {
	return d.write(fmt.Sprintf("%s.%s.patch", sanitize(changeID), outcome), patch)
}

// SaveReport writes the rendered review report.
func (d *Dir) SaveReport(report string) (string, error) {
	return d.write("report.md", report)
}

func (d *Dir) write(name, content string) (string, error) {
	// git apply and most diff tools want newline-terminated files
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	path := filepath.Join(d.root, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	return path, nil
}

// sanitize maps an identifier onto a safe filename. Only characters
// that break paths are replaced; the id itself is never otherwise
// rewritten.
func sanitize(id string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	out := r.Replace(id)
	if out == "" {
		return "unnamed"
	}
	return out
}
