// Package doctor checks that the environment can actually run a
// review: git present, agent binaries on PATH, API credentials set,
// and the data directories writable.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/joescharf/cr/internal/agent"
)

// Check represents a single environment check.
type Check struct {
	Name   string
	Passed bool
	Detail string
}

// Checker evaluates the environment for a given agent configuration.
type Checker struct {
	lookPath func(string) (string, error)
}

// NewChecker returns a new Checker.
func NewChecker() *Checker {
	return &Checker{lookPath: exec.LookPath}
}

// Run evaluates all checks. apiKeySet reports whether an Anthropic key
// is configured (flag, env, or config file).
func (c *Checker) Run(cfg agent.Config, apiKeySet bool, configPath, dbPath, artifactsDir string) []Check {
	var checks []Check

	checks = append(checks, c.checkBinary("git", "git"))

	for _, name := range cfg.Order {
		def, ok := cfg.Agents[name]
		if !ok {
			checks = append(checks, Check{
				Name:   "agent: " + name,
				Detail: "listed in review.agents but not defined under agents.",
			})
			continue
		}
		checks = append(checks, c.checkAgent(def, apiKeySet))
	}

	checks = append(checks, checkFile(configPath, "config file"))
	checks = append(checks, checkWritableDir(filepath.Dir(dbPath), "database directory"))
	checks = append(checks, checkWritableDir(artifactsDir, "artifacts directory"))

	return checks
}

// AllPassed reports whether every check passed.
func AllPassed(checks []Check) bool {
	for _, ch := range checks {
		if !ch.Passed {
			return false
		}
	}
	return true
}

func (c *Checker) checkBinary(bin, label string) Check {
	path, err := c.lookPath(bin)
	if err != nil {
		return Check{Name: label, Detail: bin + " not found on PATH"}
	}
	return Check{Name: label, Passed: true, Detail: path}
}

func (c *Checker) checkAgent(def agent.Definition, apiKeySet bool) Check {
	name := "agent: " + def.Name
	if def.Kind == agent.KindAPI {
		if def.Model == "" {
			return Check{Name: name, Detail: "api agent has no model configured"}
		}
		if !apiKeySet {
			return Check{Name: name, Detail: "no Anthropic API key configured (anthropic.api_key or ANTHROPIC_API_KEY)"}
		}
		return Check{Name: name, Passed: true, Detail: "api, model " + def.Model}
	}

	if len(def.Command) == 0 {
		return Check{Name: name, Detail: "no command configured"}
	}
	path, err := c.lookPath(def.Command[0])
	if err != nil {
		return Check{Name: name, Detail: def.Command[0] + " not found on PATH"}
	}
	return Check{Name: name, Passed: true, Detail: path}
}

func checkFile(path, label string) Check {
	if path == "" {
		return Check{Name: label, Detail: "no path configured"}
	}
	if _, err := os.Stat(path); err != nil {
		return Check{Name: label, Detail: path + " missing (run 'cr config init')"}
	}
	return Check{Name: label, Passed: true, Detail: path}
}

func checkWritableDir(dir, label string) Check {
	if dir == "" {
		return Check{Name: label, Detail: "no path configured"}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Check{Name: label, Detail: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".cr-doctor-*")
	if err != nil {
		return Check{Name: label, Detail: fmt.Sprintf("%s not writable: %v", dir, err)}
	}
	probe.Close()
	os.Remove(probe.Name())
	return Check{Name: label, Passed: true, Detail: dir}
}
