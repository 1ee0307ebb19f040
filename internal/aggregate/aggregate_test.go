package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/cr/internal/models"
)

func review(agent string, gate models.Verdict, changes ...models.ChangeVerdict) *models.ModelReview {
	return &models.ModelReview{Agent: agent, Gate: gate, Changes: changes}
}

func change(id string, v models.Verdict) models.ChangeVerdict {
	return models.ChangeVerdict{ChangeID: id, Verdict: v}
}

func TestGate_BlockWins(t *testing.T) {
	reviews := []*models.ModelReview{
		review("claude", models.VerdictPass),
		review("gemini", models.VerdictBlock),
	}
	assert.Equal(t, models.VerdictBlock, Gate(reviews))
}

func TestGate_ConcernBeatsPass(t *testing.T) {
	reviews := []*models.ModelReview{
		review("claude", models.VerdictConcern),
		review("gemini", models.VerdictPass),
	}
	assert.Equal(t, models.VerdictConcern, Gate(reviews))
}

func TestGate_AllPass(t *testing.T) {
	reviews := []*models.ModelReview{
		review("claude", models.VerdictPass),
		review("gemini", models.VerdictPass),
	}
	assert.Equal(t, models.VerdictPass, Gate(reviews))
}

func TestGate_OrderIndependent(t *testing.T) {
	a := review("claude", models.VerdictBlock)
	b := review("gemini", models.VerdictConcern)
	c := review("codex", models.VerdictPass)

	assert.Equal(t, Gate([]*models.ModelReview{a, b, c}), Gate([]*models.ModelReview{c, b, a}))
	assert.Equal(t, Gate([]*models.ModelReview{b, c, a}), Gate([]*models.ModelReview{a, c, b}))
}

func TestReviews_NoSuccessesIsError(t *testing.T) {
	failures := []models.AgentFailure{
		{Agent: "claude", Kind: models.FailureTimeout, Detail: "no response within 5m"},
		{Agent: "gemini", Kind: models.FailureInvocation, Detail: "binary not found"},
	}
	_, err := Reviews("feature", "", []string{"claude", "gemini"}, nil, failures)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no successful reviews")
}

func TestReviews_FailuresRecordedAlongsideResults(t *testing.T) {
	reviews := []*models.ModelReview{review("claude", models.VerdictPass)}
	failures := []models.AgentFailure{
		{Agent: "gemini", Kind: models.FailureTimeout, Detail: "no response within 5m"},
	}

	agg, err := Reviews("feature", "spec.md", []string{"claude", "gemini"}, reviews, failures)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictPass, agg.Gate, "a timed-out agent is not a PASS and not a BLOCK")
	require.Len(t, agg.Failures, 1)
	assert.Equal(t, "gemini", agg.Failures[0].Agent)
	assert.Equal(t, models.FailureTimeout, agg.Failures[0].Kind)
	assert.Equal(t, []string{"claude", "gemini"}, agg.Agents)
}

func TestDisagreements_NoneWhenAgentsAgree(t *testing.T) {
	reviews := []*models.ModelReview{
		review("claude", models.VerdictPass, change("src/a.go", models.VerdictPass)),
		review("gemini", models.VerdictPass, change("src/a.go", models.VerdictPass)),
	}
	assert.Empty(t, Disagreements(reviews))
}

func TestDisagreements_SingleReporterNeverDisagrees(t *testing.T) {
	reviews := []*models.ModelReview{
		review("claude", models.VerdictBlock, change("src/only_claude_saw.go", models.VerdictBlock)),
		review("gemini", models.VerdictPass, change("src/other.go", models.VerdictPass)),
	}
	assert.Empty(t, Disagreements(reviews))
}

func TestDisagreements_SingleReview(t *testing.T) {
	reviews := []*models.ModelReview{
		review("claude", models.VerdictBlock, change("src/a.go", models.VerdictBlock)),
	}
	assert.Nil(t, Disagreements(reviews))
}

func TestDisagreements_Severity(t *testing.T) {
	reviews := []*models.ModelReview{
		review("claude", models.VerdictBlock,
			change("high.go", models.VerdictPass),
			change("medium.go", models.VerdictBlock),
			change("low.go", models.VerdictPass),
		),
		review("gemini", models.VerdictBlock,
			change("high.go", models.VerdictBlock),
			change("medium.go", models.VerdictConcern),
			change("low.go", models.VerdictConcern),
		),
	}

	ds := Disagreements(reviews)
	require.Len(t, ds, 3)

	assert.Equal(t, "high.go", ds[0].ChangeID)
	assert.Equal(t, models.SeverityHigh, ds[0].Severity)

	assert.Equal(t, "medium.go", ds[1].ChangeID)
	assert.Equal(t, models.SeverityMedium, ds[1].Severity)

	assert.Equal(t, "low.go", ds[2].ChangeID)
	assert.Equal(t, models.SeverityLow, ds[2].Severity)

	assert.Equal(t, models.VerdictPass, ds[0].Verdicts["claude"])
	assert.Equal(t, models.VerdictBlock, ds[0].Verdicts["gemini"])
}

func TestDisagreements_StableOrderWithinSeverity(t *testing.T) {
	reviews := []*models.ModelReview{
		review("claude", models.VerdictBlock,
			change("zeta.go", models.VerdictPass),
			change("alpha.go", models.VerdictPass),
		),
		review("gemini", models.VerdictBlock,
			change("zeta.go", models.VerdictBlock),
			change("alpha.go", models.VerdictBlock),
		),
	}

	ds := Disagreements(reviews)
	require.Len(t, ds, 2)
	assert.Equal(t, "alpha.go", ds[0].ChangeID)
	assert.Equal(t, "zeta.go", ds[1].ChangeID)
}

func TestDisagreements_InputOrderIrrelevant(t *testing.T) {
	a := review("claude", models.VerdictPass, change("src/a.go", models.VerdictPass))
	b := review("gemini", models.VerdictBlock, change("src/a.go", models.VerdictBlock))

	forward := Disagreements([]*models.ModelReview{a, b})
	backward := Disagreements([]*models.ModelReview{b, a})

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Equal(t, forward[0].ChangeID, backward[0].ChangeID)
	assert.Equal(t, forward[0].Severity, backward[0].Severity)
	assert.Equal(t, forward[0].Verdicts, backward[0].Verdicts)
}

func TestDisagreements_ChangeIDExactMatch(t *testing.T) {
	reviews := []*models.ModelReview{
		review("claude", models.VerdictPass, change("src/file_name.go", models.VerdictPass)),
		review("gemini", models.VerdictBlock, change("src/file-name.go", models.VerdictBlock)),
	}
	assert.Empty(t, Disagreements(reviews),
		"underscore and hyphen ids are different changes, never merged")
}
