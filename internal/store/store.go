package store

import (
	"context"

	"github.com/joescharf/cr/internal/models"
)

// Store defines the persistence interface for cr's run history.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *models.AggregateReview) error
	GetRun(ctx context.Context, id string) (*models.AggregateReview, error)
	ListRuns(ctx context.Context, limit int) ([]*models.RunSummary, error)

	// Patch attempts
	SavePatchAttempts(ctx context.Context, attempts []*models.PatchAttempt) error
	ListPatchAttempts(ctx context.Context, runID string) ([]*models.PatchAttempt, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
