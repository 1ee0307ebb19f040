package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdictOrdering(t *testing.T) {
	assert.True(t, VerdictPass < VerdictConcern)
	assert.True(t, VerdictConcern < VerdictBlock)

	assert.Equal(t, VerdictBlock, MaxVerdict(VerdictPass, VerdictBlock))
	assert.Equal(t, VerdictBlock, MaxVerdict(VerdictBlock, VerdictConcern))
	assert.Equal(t, VerdictConcern, MaxVerdict(VerdictConcern, VerdictPass))
	assert.Equal(t, VerdictPass, MaxVerdict(VerdictPass, VerdictPass))
}

func TestVerdictExitCode(t *testing.T) {
	assert.Equal(t, 0, VerdictPass.ExitCode())
	assert.Equal(t, 1, VerdictConcern.ExitCode())
	assert.Equal(t, 2, VerdictBlock.ExitCode())
}

func TestParseVerdict_CaseInsensitive(t *testing.T) {
	for _, s := range []string{"pass", "Pass", "PASS", "  pass  "} {
		v, ok := ParseVerdict(s)
		require.True(t, ok, s)
		assert.Equal(t, VerdictPass, v)
	}

	v, ok := ParseVerdict("block")
	require.True(t, ok)
	assert.Equal(t, VerdictBlock, v)

	_, ok = ParseVerdict("MAYBE")
	assert.False(t, ok)
}

func TestVerdictJSONRoundTrip(t *testing.T) {
	in := map[string]Verdict{"claude": VerdictPass, "gemini": VerdictBlock}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"PASS"`)
	assert.Contains(t, string(data), `"BLOCK"`)

	var out map[string]Verdict
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestParseSpecCompliance_NA(t *testing.T) {
	for _, s := range []string{"N/A", "n/a", "NA"} {
		v, ok := ParseSpecCompliance(s)
		require.True(t, ok, s)
		assert.Equal(t, SpecComplianceNA, v)
	}
}

func TestBlockedChanges_DedupesAcrossAgents(t *testing.T) {
	run := &AggregateReview{
		Reviews: []*ModelReview{
			{Agent: "a", Changes: []ChangeVerdict{
				{ChangeID: "x.go:1", Verdict: VerdictBlock},
				{ChangeID: "y.go:2", Verdict: VerdictPass},
			}},
			{Agent: "b", Changes: []ChangeVerdict{
				{ChangeID: "x.go:1", Verdict: VerdictBlock},
				{ChangeID: "z.go:3", Verdict: VerdictBlock},
			}},
		},
	}

	blocked := run.BlockedChanges()
	require.Len(t, blocked, 2)
	assert.Equal(t, "x.go:1", blocked[0].ChangeID)
	assert.Equal(t, "z.go:3", blocked[1].ChangeID)
}
