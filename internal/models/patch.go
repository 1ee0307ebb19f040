package models

import "time"

// PatchAttempt records one try at fixing a blocked change. Every
// attempt is kept whether or not the patch applied; Diff holds the
// extracted unified diff and ArtifactPath where it was written.
type PatchAttempt struct {
	ID           string
	RunID        string
	ChangeID     string
	Agent        string
	Diff         string
	Valid        bool // passed the dry run
	Applied      bool
	Error        string // reason when not applied
	ArtifactPath string
	CreatedAt    time.Time
}

// Status is a one-word display label for the attempt.
func (p *PatchAttempt) Status() string {
	switch {
	case p.Applied:
		return "applied"
	case p.Valid:
		return "failed"
	default:
		return "invalid"
	}
}
