package models

import "time"

// DisagreementSeverity orders disagreements for display: high when one
// agent passed a change another blocked, medium when any blocker is
// involved, low for everything else.
type DisagreementSeverity string

const (
	SeverityHigh   DisagreementSeverity = "high"
	SeverityMedium DisagreementSeverity = "medium"
	SeverityLow    DisagreementSeverity = "low"
)

// Disagreement is a change that at least two agents judged differently.
type Disagreement struct {
	ChangeID string
	Verdicts map[string]Verdict // agent name -> verdict
	Severity DisagreementSeverity
}

// AggregateReview is the combined outcome of one review run across all
// requested agents. Agents preserves the requested order; Reviews holds
// only the agents that produced a parseable response, Failures the rest.
type AggregateReview struct {
	ID            string
	Subject       string // branch, ref range, or "staged"
	SpecRef       string
	Agents        []string
	Reviews       []*ModelReview
	Gate          Verdict
	Disagreements []Disagreement
	Failures      []AgentFailure
	Duration      time.Duration
	CreatedAt     time.Time
}

// Review returns the parsed review for the named agent, or nil.
func (a *AggregateReview) Review(agent string) *ModelReview {
	for _, r := range a.Reviews {
		if r.Agent == agent {
			return r
		}
	}
	return nil
}

// BlockedChanges returns every change any agent blocked, deduplicated
// by change id in first-seen order.
func (a *AggregateReview) BlockedChanges() []ChangeVerdict {
	seen := make(map[string]bool)
	var out []ChangeVerdict
	for _, r := range a.Reviews {
		for _, cv := range r.Changes {
			if cv.Verdict != VerdictBlock || seen[cv.ChangeID] {
				continue
			}
			seen[cv.ChangeID] = true
			out = append(out, cv)
		}
	}
	return out
}

// RunSummary is the lightweight history row for a stored run.
type RunSummary struct {
	ID            string
	Subject       string
	Gate          Verdict
	Agents        []string
	Disagreements int
	Failures      int
	CreatedAt     time.Time
}
