// Package aggregate merges per-agent reviews into a single gate and
// surfaces the changes agents judged differently.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/joescharf/cr/internal/models"
)

// Reviews combines per-agent reviews into one AggregateReview. Failed
// agents ride along in Failures; they never count toward the gate. A
// round with no successful reviews at all is an error: with nothing to
// aggregate there is no defensible gate.
func Reviews(subject, specRef string, agents []string, reviews []*models.ModelReview, failures []models.AgentFailure) (*models.AggregateReview, error) {
	if len(reviews) == 0 {
		return nil, fmt.Errorf("aggregate: no successful reviews from %d requested agent(s)", len(agents))
	}

	return &models.AggregateReview{
		Subject:       subject,
		SpecRef:       specRef,
		Agents:        agents,
		Reviews:       reviews,
		Gate:          Gate(reviews),
		Disagreements: Disagreements(reviews),
		Failures:      failures,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Gate merges agent gates: BLOCK beats CONCERN beats PASS.
func Gate(reviews []*models.ModelReview) models.Verdict {
	g := models.VerdictPass
	for _, r := range reviews {
		g = models.MaxVerdict(g, r.Gate)
	}
	return g
}

// Disagreements returns every change at least two agents judged
// differently. A change only one agent mentioned is never a
// disagreement. Results are ordered most severe first, then by change
// id, so the same reviews always render the same way.
func Disagreements(reviews []*models.ModelReview) []models.Disagreement {
	if len(reviews) < 2 {
		return nil
	}

	verdicts := make(map[string]map[string]models.Verdict)
	for _, r := range reviews {
		for _, cv := range r.Changes {
			byAgent, ok := verdicts[cv.ChangeID]
			if !ok {
				byAgent = make(map[string]models.Verdict)
				verdicts[cv.ChangeID] = byAgent
			}
			byAgent[r.Agent] = cv.Verdict
		}
	}

	var out []models.Disagreement
	for changeID, byAgent := range verdicts {
		if len(byAgent) < 2 || agreed(byAgent) {
			continue
		}
		out = append(out, models.Disagreement{
			ChangeID: changeID,
			Verdicts: byAgent,
			Severity: severity(byAgent),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		ri, rj := severityRank(out[i].Severity), severityRank(out[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return out[i].ChangeID < out[j].ChangeID
	})
	return out
}

func agreed(byAgent map[string]models.Verdict) bool {
	var first models.Verdict
	init := false
	for _, v := range byAgent {
		if !init {
			first, init = v, true
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}

// severity grades a disagreement: a direct PASS vs BLOCK conflict is
// high, any blocker involved is medium, PASS vs CONCERN is low.
func severity(byAgent map[string]models.Verdict) models.DisagreementSeverity {
	var hasPass, hasBlock bool
	for _, v := range byAgent {
		switch v {
		case models.VerdictPass:
			hasPass = true
		case models.VerdictBlock:
			hasBlock = true
		}
	}
	switch {
	case hasPass && hasBlock:
		return models.SeverityHigh
	case hasBlock:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func severityRank(s models.DisagreementSeverity) int {
	switch s {
	case models.SeverityHigh:
		return 0
	case models.SeverityMedium:
		return 1
	default:
		return 2
	}
}
