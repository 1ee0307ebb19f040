package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/cr/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NewULID generates a new ULID string.
func NewULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Runs ---

// SaveRun persists a run and all its per-agent reviews. Assigns the run
// a ULID when it does not already carry one.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *models.AggregateReview) error {
	if run.ID == "" {
		run.ID = NewULID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	agentsJSON, err := json.Marshal(run.Agents)
	if err != nil {
		return fmt.Errorf("marshal agents: %w", err)
	}
	disagreementsJSON, err := json.Marshal(run.Disagreements)
	if err != nil {
		return fmt.Errorf("marshal disagreements: %w", err)
	}
	failuresJSON, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO review_runs (id, subject, spec_ref, agents, gate, disagreements, failures, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Subject, run.SpecRef, string(agentsJSON), run.Gate.String(),
		string(disagreementsJSON), string(failuresJSON), run.Duration.Milliseconds(), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	for i, review := range run.Reviews {
		changesJSON, err := json.Marshal(review.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		skippedJSON, err := json.Marshal(review.Skipped)
		if err != nil {
			return fmt.Errorf("marshal skipped: %w", err)
		}
		featuresJSON, err := json.Marshal(review.FeatureRequests)
		if err != nil {
			return fmt.Errorf("marshal feature requests: %w", err)
		}
		selfReview := ""
		if review.SelfReview != nil {
			data, err := json.Marshal(review.SelfReview)
			if err != nil {
				return fmt.Errorf("marshal self review: %w", err)
			}
			selfReview = string(data)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO model_reviews (id, run_id, position, agent, gate, changes, skipped, self_review, feature_requests, raw)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			NewULID(), run.ID, i, review.Agent, review.Gate.String(),
			string(changesJSON), string(skippedJSON), selfReview, string(featuresJSON), review.Raw,
		)
		if err != nil {
			return fmt.Errorf("save review for %s: %w", review.Agent, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRun loads a full run, per-agent reviews included.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.AggregateReview, error) {
	run := &models.AggregateReview{}
	var agentsJSON, disagreementsJSON, failuresJSON, gate string
	var durationMS int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, subject, spec_ref, agents, gate, disagreements, failures, duration_ms, created_at
		FROM review_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Subject, &run.SpecRef, &agentsJSON, &gate,
		&disagreementsJSON, &failuresJSON, &durationMS, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.Gate, _ = models.ParseVerdict(gate)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(agentsJSON), &run.Agents); err != nil {
		return nil, fmt.Errorf("unmarshal agents: %w", err)
	}
	if err := json.Unmarshal([]byte(disagreementsJSON), &run.Disagreements); err != nil {
		return nil, fmt.Errorf("unmarshal disagreements: %w", err)
	}
	if err := json.Unmarshal([]byte(failuresJSON), &run.Failures); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT agent, gate, changes, skipped, self_review, feature_requests, raw
		FROM model_reviews WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		review := &models.ModelReview{}
		var reviewGate, changesJSON, skippedJSON, selfReview, featuresJSON string
		if err := rows.Scan(&review.Agent, &reviewGate, &changesJSON, &skippedJSON, &selfReview, &featuresJSON, &review.Raw); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		review.Gate, _ = models.ParseVerdict(reviewGate)
		if err := json.Unmarshal([]byte(changesJSON), &review.Changes); err != nil {
			return nil, fmt.Errorf("unmarshal changes: %w", err)
		}
		_ = json.Unmarshal([]byte(skippedJSON), &review.Skipped)
		_ = json.Unmarshal([]byte(featuresJSON), &review.FeatureRequests)
		if selfReview != "" {
			sr := &models.SelfReview{}
			if err := json.Unmarshal([]byte(selfReview), sr); err == nil {
				review.SelfReview = sr
			}
		}
		run.Reviews = append(run.Reviews, review)
	}
	return run, rows.Err()
}

// ListRuns returns recent run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	query := `SELECT id, subject, gate, agents, disagreements, failures, created_at
		FROM review_runs ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []*models.RunSummary
	for rows.Next() {
		sum := &models.RunSummary{}
		var gate, agentsJSON, disagreementsJSON, failuresJSON string
		if err := rows.Scan(&sum.ID, &sum.Subject, &gate, &agentsJSON, &disagreementsJSON, &failuresJSON, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sum.Gate, _ = models.ParseVerdict(gate)
		_ = json.Unmarshal([]byte(agentsJSON), &sum.Agents)

		var disagreements []models.Disagreement
		_ = json.Unmarshal([]byte(disagreementsJSON), &disagreements)
		sum.Disagreements = len(disagreements)

		var failures []models.AgentFailure
		_ = json.Unmarshal([]byte(failuresJSON), &failures)
		sum.Failures = len(failures)

		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// --- Patch attempts ---

// SavePatchAttempts records a batch of attempts. IDs are assigned when
// missing; rows are never updated afterwards.
func (s *SQLiteStore) SavePatchAttempts(ctx context.Context, attempts []*models.PatchAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range attempts {
		if a.ID == "" {
			a.ID = NewULID()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO patch_attempts (id, run_id, change_id, agent, diff, valid, applied, error, artifact_path, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.RunID, a.ChangeID, a.Agent, a.Diff,
			boolToInt(a.Valid), boolToInt(a.Applied), a.Error, a.ArtifactPath, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("save patch attempt for %s: %w", a.ChangeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListPatchAttempts returns a run's patch attempts in creation order.
func (s *SQLiteStore) ListPatchAttempts(ctx context.Context, runID string) ([]*models.PatchAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, change_id, agent, diff, valid, applied, error, artifact_path, created_at
		FROM patch_attempts WHERE run_id = ? ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list patch attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []*models.PatchAttempt
	for rows.Next() {
		a := &models.PatchAttempt{}
		var valid, applied int
		if err := rows.Scan(&a.ID, &a.RunID, &a.ChangeID, &a.Agent, &a.Diff, &valid, &applied, &a.Error, &a.ArtifactPath, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan patch attempt: %w", err)
		}
		a.Valid = valid != 0
		a.Applied = applied != 0
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
