// Package report renders an aggregate review for humans: a full
// markdown report, a terminal summary, and a disagreements-only view.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joescharf/cr/internal/models"
)

// Aggregate renders the full markdown report for a run. Disagreements
// come first since that is what a human reviewer should look at.
func Aggregate(run *models.AggregateReview) string {
	var b strings.Builder

	b.WriteString("# Code Review Report\n\n")
	fmt.Fprintf(&b, "**Subject:** %s\n", run.Subject)
	if run.SpecRef != "" {
		fmt.Fprintf(&b, "**Spec:** %s\n", run.SpecRef)
	}
	fmt.Fprintf(&b, "**Agents:** %s\n", strings.Join(run.Agents, ", "))
	fmt.Fprintf(&b, "**Gate:** %s\n", run.Gate)
	if run.ID != "" {
		fmt.Fprintf(&b, "**Run:** %s\n", run.ID)
	}
	b.WriteString("\n")

	if len(run.Failures) > 0 {
		b.WriteString("## Agent Failures\n\n")
		b.WriteString("These agents did not contribute to the gate:\n\n")
		for _, f := range run.Failures {
			fmt.Fprintf(&b, "- **%s**: %s (%s)\n", f.Agent, f.Kind, f.Detail)
		}
		b.WriteString("\n")
	}

	if len(run.Disagreements) > 0 {
		b.WriteString("## Disagreements\n\n")
		b.WriteString("Changes the agents judged differently. Resolve these by hand.\n\n")
		for _, d := range run.Disagreements {
			fmt.Fprintf(&b, "### %s (%s)\n\n", d.ChangeID, d.Severity)
			for _, agent := range sortedAgents(d.Verdicts) {
				fmt.Fprintf(&b, "- %s: %s\n", agent, d.Verdicts[agent])
			}
			b.WriteString("\n")
		}
	}

	for _, review := range run.Reviews {
		fmt.Fprintf(&b, "## %s (gate: %s)\n\n", review.Agent, review.Gate)
		if len(review.Changes) == 0 {
			b.WriteString("No structured verdicts reported.\n\n")
		}
		for _, cv := range review.Changes {
			fmt.Fprintf(&b, "### %s\n\n", cv.ChangeID)
			fmt.Fprintf(&b, "- Verdict: %s\n", cv.Verdict)
			writeDimension(&b, "Correctness", string(cv.Correctness))
			writeDimension(&b, "Spec compliance", string(cv.SpecCompliance))
			writeDimension(&b, "Test coverage", string(cv.TestCoverage))
			writeDimension(&b, "Integration", string(cv.Integration))
			if cv.Reasoning != "" {
				fmt.Fprintf(&b, "- Reasoning: %s\n", cv.Reasoning)
			}
			b.WriteString("\n")
		}
		if len(review.Skipped) > 0 {
			fmt.Fprintf(&b, "_%d block(s) could not be parsed:_\n\n", len(review.Skipped))
			for _, sk := range review.Skipped {
				fmt.Fprintf(&b, "- %s: %s\n", sk.ChangeID, sk.Reason)
			}
			b.WriteString("\n")
		}
		if review.SelfReview != nil {
			fmt.Fprintf(&b, "_Confidence: %s_", review.SelfReview.Confidence)
			if review.SelfReview.Limitations != "" {
				fmt.Fprintf(&b, " — %s", review.SelfReview.Limitations)
			}
			b.WriteString("\n\n")
		}
	}

	return b.String()
}

// Summary renders the short terminal summary for a run.
func Summary(run *models.AggregateReview) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Gate: %s\n", run.Gate)
	fmt.Fprintf(&b, "Subject: %s\n", run.Subject)

	var contributed []string
	for _, r := range run.Reviews {
		contributed = append(contributed, fmt.Sprintf("%s=%s", r.Agent, r.Gate))
	}
	fmt.Fprintf(&b, "Agents: %s\n", strings.Join(contributed, " "))

	for _, f := range run.Failures {
		fmt.Fprintf(&b, "Failed: %s (%s: %s)\n", f.Agent, f.Kind, f.Detail)
	}

	total := 0
	blocks := 0
	for _, r := range run.Reviews {
		total += len(r.Changes)
		for _, cv := range r.Changes {
			if cv.Verdict == models.VerdictBlock {
				blocks++
			}
		}
	}
	fmt.Fprintf(&b, "Verdicts: %d (%d block)\n", total, blocks)
	fmt.Fprintf(&b, "Disagreements: %d\n", len(run.Disagreements))

	return b.String()
}

// Disagreements renders only the disagreement section, for `cr compare`.
func Disagreements(run *models.AggregateReview) string {
	if len(run.Disagreements) == 0 {
		return "No disagreements: all agents that reported on the same changes agreed.\n"
	}

	var b strings.Builder
	for _, d := range run.Disagreements {
		fmt.Fprintf(&b, "%s [%s]\n", d.ChangeID, d.Severity)
		for _, agent := range sortedAgents(d.Verdicts) {
			fmt.Fprintf(&b, "  %-12s %s\n", agent, d.Verdicts[agent])
		}
	}
	return b.String()
}

func writeDimension(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "- %s: %s\n", label, value)
	}
}

func sortedAgents(verdicts map[string]models.Verdict) []string {
	agents := make([]string, 0, len(verdicts))
	for a := range verdicts {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	return agents
}
