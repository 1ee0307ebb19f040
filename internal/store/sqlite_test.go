package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/cr/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() *models.AggregateReview {
	return &models.AggregateReview{
		Subject: "feature-x",
		SpecRef: "spec.md",
		Agents:  []string{"claude", "gemini"},
		Reviews: []*models.ModelReview{
			{
				Agent: "claude",
				Gate:  models.VerdictConcern,
				Changes: []models.ChangeVerdict{
					{
						ChangeID:     "src/my_module.py:42",
						Verdict:      models.VerdictConcern,
						Correctness:  models.CorrectnessValid,
						TestCoverage: models.TestCoverageUntested,
						Integration:  models.IntegrationWired,
						Reasoning:    "no tests for the new branch",
					},
				},
				Raw:        "### src/my_module.py:42\nVERDICT: CONCERN\n---",
				SelfReview: &models.SelfReview{Confidence: models.ConfidenceHigh, Limitations: "none"},
			},
			{
				Agent: "gemini",
				Gate:  models.VerdictPass,
				Changes: []models.ChangeVerdict{
					{ChangeID: "src/my_module.py:42", Verdict: models.VerdictPass},
				},
				Raw:             "### src/my_module.py:42\nVERDICT: PASS\n---",
				FeatureRequests: []string{"show me the full file"},
			},
		},
		Gate: models.VerdictConcern,
		Disagreements: []models.Disagreement{
			{
				ChangeID: "src/my_module.py:42",
				Verdicts: map[string]models.Verdict{"claude": models.VerdictConcern, "gemini": models.VerdictPass},
				Severity: models.SeverityLow,
			},
		},
		Failures: []models.AgentFailure{
			{Agent: "codex", Kind: models.FailureTimeout, Detail: "no response within 5m"},
		},
		Duration: 42 * time.Second,
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

func TestSaveRun_AssignsID(t *testing.T) {
	s := newTestStore(t)
	run := sampleRun()

	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.Subject, got.Subject)
	assert.Equal(t, run.SpecRef, got.SpecRef)
	assert.Equal(t, run.Agents, got.Agents)
	assert.Equal(t, models.VerdictConcern, got.Gate)
	assert.Equal(t, run.Duration, got.Duration)

	require.Len(t, got.Reviews, 2)
	assert.Equal(t, "claude", got.Reviews[0].Agent, "review order must survive the round trip")
	assert.Equal(t, "gemini", got.Reviews[1].Agent)
	require.Len(t, got.Reviews[0].Changes, 1)
	assert.Equal(t, "src/my_module.py:42", got.Reviews[0].Changes[0].ChangeID,
		"change id must come back verbatim, underscores intact")
	assert.Equal(t, models.CorrectnessValid, got.Reviews[0].Changes[0].Correctness)
	assert.Equal(t, run.Reviews[0].Raw, got.Reviews[0].Raw)

	require.NotNil(t, got.Reviews[0].SelfReview)
	assert.Equal(t, models.ConfidenceHigh, got.Reviews[0].SelfReview.Confidence)
	assert.Nil(t, got.Reviews[1].SelfReview)
	assert.Equal(t, []string{"show me the full file"}, got.Reviews[1].FeatureRequests)

	require.Len(t, got.Disagreements, 1)
	assert.Equal(t, models.VerdictPass, got.Disagreements[0].Verdicts["gemini"])

	require.Len(t, got.Failures, 1)
	assert.Equal(t, models.FailureTimeout, got.Failures[0].Kind)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := sampleRun()
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.SaveRun(ctx, first))

	second := sampleRun()
	second.Subject = "feature-y"
	second.Gate = models.VerdictBlock
	require.NoError(t, s.SaveRun(ctx, second))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "feature-y", runs[0].Subject, "newest first")
	assert.Equal(t, models.VerdictBlock, runs[0].Gate)
	assert.Equal(t, 1, runs[0].Disagreements)
	assert.Equal(t, 1, runs[0].Failures)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPatchAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run))

	attempts := []*models.PatchAttempt{
		{RunID: run.ID, ChangeID: "src/a.py:10", Agent: "claude", Diff: "--- a/src/a.py\n", Valid: true, Applied: true},
		{RunID: run.ID, ChangeID: "src/b.py", Agent: "claude", Diff: "--- a/src/b.py\n", Error: "invalid patch: corrupt hunk"},
	}
	require.NoError(t, s.SavePatchAttempts(ctx, attempts))
	assert.NotEmpty(t, attempts[0].ID)

	got, err := s.ListPatchAttempts(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Applied)
	assert.True(t, got[0].Valid)
	assert.False(t, got[1].Valid)
	assert.Contains(t, got[1].Error, "corrupt hunk")
}

func TestSavePatchAttempts_Empty(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.SavePatchAttempts(context.Background(), nil))
}
