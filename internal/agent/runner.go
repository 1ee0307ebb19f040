package agent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
)

// Runner performs one agent round-trip: prompt in, raw response out.
// Implementations must honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// nestedSessionVars are stripped from a CLI agent's environment so the
// child does not believe it is already inside an agent session and
// short-circuit its own tooling.
var nestedSessionVars = []string{"CLAUDECODE", "CLAUDE_CODE_ENTRYPOINT"}

// CLIRunner invokes a local agent binary, writing the prompt to stdin
// and reading the review from stdout. stderr never reaches the result;
// it is surfaced only inside error messages.
type CLIRunner struct {
	name string
	argv []string
	dir  string
}

// NewCLIRunner builds a runner for a CLI agent definition. dir is the
// working directory for the child, typically the reviewed repo.
func NewCLIRunner(def Definition, dir string) *CLIRunner {
	return &CLIRunner{name: def.Name, argv: def.Command, dir: dir}
}

// Run executes the agent binary once. A clean exit with empty stdout is
// a valid (empty) response, not an error.
func (r *CLIRunner) Run(ctx context.Context, prompt string) (string, error) {
	if len(r.argv) == 0 {
		return "", fmt.Errorf("agent %s has no command configured", r.name)
	}

	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = cleanEnv(os.Environ())
	if r.dir != "" {
		cmd.Dir = r.dir
	}

	if err := cmd.Run(); err != nil {
		if msg := firstLine(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", r.name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", r.name, err)
	}
	return stdout.String(), nil
}

// Available reports whether the agent can be invoked right now. API
// agents are assumed reachable; CLI agents need their binary on PATH.
func Available(def Definition) bool {
	if def.Kind == KindAPI {
		return true
	}
	if len(def.Command) == 0 {
		return false
	}
	_, err := exec.LookPath(def.Command[0])
	return err == nil
}

// Missing returns the subset of defs whose agents cannot be invoked.
func Missing(defs []Definition) []string {
	var out []string
	for _, def := range defs {
		if !Available(def) {
			out = append(out, def.Name)
		}
	}
	return out
}

func cleanEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		if slices.Contains(nestedSessionVars, name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
