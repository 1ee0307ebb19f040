// Package review drives a multi-agent review round: fan the prompt out
// to every configured agent, answer their observation requests, parse
// what comes back, and aggregate the verdicts into one gate.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/aggregate"
	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/observe"
	"github.com/joescharf/cr/internal/parse"
)

// Request describes one review run.
type Request struct {
	Subject string // branch name, ref range, or "staged"
	SpecRef string // display name of the spec source
	Diff    string
	Spec    string
	Agents  []string // empty means the configured default set

	// ObservationRounds is how many observation follow-ups an agent may
	// trade for more context. Zero still runs exactly one review round.
	ObservationRounds int
}

// RunnerFactory builds the runner that reaches one agent. The default
// wires CLI agents to subprocesses; tests substitute scripted runners.
type RunnerFactory func(def agent.Definition) agent.Runner

// Orchestrator runs review rounds against one repository.
type Orchestrator struct {
	cfg       agent.Config
	repo      string
	observer  *observe.Runner
	newRunner RunnerFactory
}

// NewOrchestrator builds an orchestrator for repo. newRunner may be nil
// to get the default CLI subprocess wiring.
func NewOrchestrator(cfg agent.Config, repo string, gitClient git.Client, newRunner RunnerFactory) *Orchestrator {
	if newRunner == nil {
		newRunner = func(def agent.Definition) agent.Runner {
			if def.Kind == agent.KindCLI {
				return agent.NewCLIRunner(def, repo)
			}
			return nil
		}
	}
	return &Orchestrator{
		cfg:       cfg,
		repo:      repo,
		observer:  observe.NewRunner(gitClient, repo),
		newRunner: newRunner,
	}
}

// Run executes one review: invoke all agents concurrently, serve
// observation follow-ups within budget, parse, and aggregate. The
// aggregate is only computed once every agent's outcome is known.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.AggregateReview, error) {
	requested := req.Agents
	if len(requested) == 0 {
		requested = o.cfg.Order
	}

	defs, failures := o.cfg.Select(requested)
	if len(defs) == 0 {
		return nil, fmt.Errorf("review: none of the requested agents are configured: %v", requested)
	}

	members := make([]agent.Member, len(defs))
	for i, def := range defs {
		members[i] = agent.Member{Name: def.Name, Runner: o.newRunner(def)}
	}
	invoker := agent.NewInvoker(members, o.cfg.Timeout)

	budget := req.ObservationRounds
	if budget < 0 {
		budget = 0
	}

	start := time.Now()
	basePrompt := BuildReviewPrompt(req.Diff, req.Spec, nil, budget > 0)
	prompts := make(map[string]string, len(members))
	for _, m := range members {
		prompts[m.Name] = basePrompt
	}

	// gathered accumulates observation results per agent across rounds
	// so a follow-up prompt carries everything learned so far.
	gathered := make(map[string]map[string]any)
	reviews := make(map[string]*models.ModelReview)

	for {
		outcomes := invoker.RunEach(ctx, prompts)
		next := make(map[string]string)

		for _, out := range outcomes {
			if out.Failure != nil {
				failures = append(failures, *out.Failure)
				continue
			}

			if budget > 0 {
				if reqs := parse.Observations(out.Output); len(reqs) > 0 {
					results := o.observer.Run(ctx, reqs)
					merged := gathered[out.Agent]
					if merged == nil {
						merged = make(map[string]any)
						gathered[out.Agent] = merged
					}
					for k, v := range results {
						merged[k] = v
					}
					next[out.Agent] = BuildReviewPrompt(req.Diff, req.Spec, merged, budget > 1)
					continue
				}
			}

			reviews[out.Agent] = parse.Response(out.Agent, out.Output)
		}

		if len(next) == 0 {
			break
		}
		budget--
		prompts = next
	}

	// Present reviews in member order regardless of completion order.
	ordered := make([]*models.ModelReview, 0, len(reviews))
	for _, name := range invoker.Members() {
		if r, ok := reviews[name]; ok {
			ordered = append(ordered, r)
		}
	}

	run, err := aggregate.Reviews(req.Subject, req.SpecRef, requested, ordered, failures)
	if err != nil {
		return nil, err
	}
	run.Duration = time.Since(start)
	return run, nil
}
