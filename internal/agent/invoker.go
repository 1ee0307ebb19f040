package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joescharf/cr/internal/models"
)

// Member pairs an agent name with the runner that reaches it.
type Member struct {
	Name   string
	Runner Runner
}

// Outcome is one agent's result within a round: either Output holds the
// raw response, or Failure explains why there is none. Never both.
type Outcome struct {
	Agent    string
	Output   string
	Failure  *models.AgentFailure
	Duration time.Duration
}

// Invoker fans a prompt out to a fixed set of members. Each invocation
// runs under its own deadline, so one agent timing out or crashing
// never cancels its siblings.
type Invoker struct {
	members []Member
	timeout time.Duration
}

// NewInvoker builds an invoker over members with a per-invocation timeout.
func NewInvoker(members []Member, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{members: members, timeout: timeout}
}

// RunAll invokes every member concurrently with the same prompt and
// returns outcomes in member order, one per member, after all of them
// have finished.
func (inv *Invoker) RunAll(ctx context.Context, prompt string) []Outcome {
	prompts := make(map[string]string, len(inv.members))
	for _, m := range inv.members {
		prompts[m.Name] = prompt
	}
	return inv.RunEach(ctx, prompts)
}

// RunEach invokes the members named in prompts, each with its own
// prompt, concurrently. Members absent from the map sit the round out.
// Outcomes come back in member order once every invocation finished.
func (inv *Invoker) RunEach(ctx context.Context, prompts map[string]string) []Outcome {
	// WaitGroup rather than errgroup: a failed member must not cancel
	// the rest of the round.
	var wg sync.WaitGroup
	slots := make([]*Outcome, len(inv.members))

	for i, m := range inv.members {
		prompt, ok := prompts[m.Name]
		if !ok {
			continue
		}
		slots[i] = new(Outcome)
		wg.Add(1)
		go func(slot *Outcome, m Member, prompt string) {
			defer wg.Done()
			*slot = inv.runOne(ctx, m, prompt)
		}(slots[i], m, prompt)
	}
	wg.Wait()

	outcomes := make([]Outcome, 0, len(prompts))
	for _, slot := range slots {
		if slot != nil {
			outcomes = append(outcomes, *slot)
		}
	}
	return outcomes
}

// RunOne invokes a single member under the invoker's timeout.
func (inv *Invoker) RunOne(ctx context.Context, name, prompt string) Outcome {
	for _, m := range inv.members {
		if m.Name == name {
			return inv.runOne(ctx, m, prompt)
		}
	}
	return Outcome{Agent: name, Failure: &models.AgentFailure{
		Agent:  name,
		Kind:   models.FailureInvocation,
		Detail: "not a member of this round",
	}}
}

// Members returns the member names in invocation order.
func (inv *Invoker) Members() []string {
	names := make([]string, len(inv.members))
	for i, m := range inv.members {
		names[i] = m.Name
	}
	return names
}

func (inv *Invoker) runOne(ctx context.Context, m Member, prompt string) Outcome {
	if m.Runner == nil {
		return Outcome{Agent: m.Name, Failure: &models.AgentFailure{
			Agent:  m.Name,
			Kind:   models.FailureInvocation,
			Detail: "no runner configured",
		}}
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	start := time.Now()
	output, err := m.Runner.Run(runCtx, prompt)
	elapsed := time.Since(start)

	if err == nil {
		return Outcome{Agent: m.Name, Output: output, Duration: elapsed}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Outcome{Agent: m.Name, Duration: elapsed, Failure: &models.AgentFailure{
			Agent:  m.Name,
			Kind:   models.FailureTimeout,
			Detail: fmt.Sprintf("no response within %s", inv.timeout),
		}}
	}
	return Outcome{Agent: m.Name, Duration: elapsed, Failure: &models.AgentFailure{
		Agent:  m.Name,
		Kind:   models.FailureInvocation,
		Detail: err.Error(),
	}}
}
