package models

// ChangeVerdict is one reviewer's judgment of a single change. ChangeID
// is whatever identifier the reviewer used, typically a file path or
// path:line, and is kept verbatim: matching across reviewers is
// case-sensitive and never rewrites separators or underscores.
type ChangeVerdict struct {
	ChangeID       string
	Verdict        Verdict
	Correctness    Correctness
	SpecCompliance SpecCompliance
	TestCoverage   TestCoverage
	Integration    Integration
	Reasoning      string
}

// SkippedBlock records a response block the parser could not turn into
// a ChangeVerdict. The raw text is kept so the block is inspectable.
type SkippedBlock struct {
	ChangeID string
	Reason   string
	Raw      string
}

// SelfReview is an agent's assessment of its own review quality.
type SelfReview struct {
	Confidence  Confidence
	Limitations string
}

// ModelReview is the complete parsed review from one agent. Raw holds
// the unmodified response for audit. Changes preserves response order.
type ModelReview struct {
	Agent           string
	Gate            Verdict
	Changes         []ChangeVerdict
	Raw             string
	Skipped         []SkippedBlock
	SelfReview      *SelfReview
	FeatureRequests []string
}

// FailureKind classifies why an agent produced no review.
type FailureKind string

const (
	// FailureInvocation covers agents that never produced output: not
	// configured, binary missing, failed to start, or non-zero exit.
	FailureInvocation FailureKind = "invocation"
	// FailureTimeout covers agents killed at their deadline.
	FailureTimeout FailureKind = "timeout"
)

// AgentFailure records an agent that did not contribute a review.
// Failed agents are reported alongside results, never counted as PASS.
type AgentFailure struct {
	Agent  string
	Kind   FailureKind
	Detail string
}
