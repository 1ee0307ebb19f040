package models

import (
	"fmt"
	"strings"
)

// Verdict is a reviewer's judgment of a single change or of a whole run.
// Verdicts are ordered by severity, Pass < Concern < Block, so a merged
// gate is simply the maximum verdict observed.
type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictConcern
	VerdictBlock
)

// String returns the wire token for v.
func (v Verdict) String() string {
	switch v {
	case VerdictBlock:
		return "BLOCK"
	case VerdictConcern:
		return "CONCERN"
	default:
		return "PASS"
	}
}

// ExitCode maps v to the gate exit code: PASS 0, CONCERN 1, BLOCK 2.
func (v Verdict) ExitCode() int { return int(v) }

// MarshalText encodes v as its wire token.
func (v Verdict) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText resolves a wire token back to a Verdict.
func (v *Verdict) UnmarshalText(b []byte) error {
	parsed, ok := ParseVerdict(string(b))
	if !ok {
		return fmt.Errorf("unknown verdict %q", string(b))
	}
	*v = parsed
	return nil
}

// ParseVerdict resolves a response token to a Verdict, case-insensitively.
func ParseVerdict(s string) (Verdict, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS":
		return VerdictPass, true
	case "CONCERN":
		return VerdictConcern, true
	case "BLOCK":
		return VerdictBlock, true
	}
	return VerdictPass, false
}

// MaxVerdict returns the more severe of a and b.
func MaxVerdict(a, b Verdict) Verdict {
	if b > a {
		return b
	}
	return a
}

// Correctness rates whether a change does what it claims to do.
// The zero value means the reviewer did not rate it.
type Correctness string

const (
	CorrectnessValid        Correctness = "VALID"
	CorrectnessQuestionable Correctness = "QUESTIONABLE"
	CorrectnessBroken       Correctness = "BROKEN"
)

// SpecCompliance rates a change against the supplied spec.
// SpecComplianceNA is the reviewer saying no spec applies; the zero
// value means the field was absent entirely.
type SpecCompliance string

const (
	SpecComplianceMeets    SpecCompliance = "MEETS"
	SpecCompliancePartial  SpecCompliance = "PARTIAL"
	SpecComplianceViolates SpecCompliance = "VIOLATES"
	SpecComplianceNA       SpecCompliance = "N/A"
)

// TestCoverage rates how well a change is exercised by tests.
type TestCoverage string

const (
	TestCoverageCovered  TestCoverage = "COVERED"
	TestCoveragePartial  TestCoverage = "PARTIAL"
	TestCoverageUntested TestCoverage = "UNTESTED"
)

// Integration rates whether a change is actually reachable from the
// rest of the codebase.
type Integration string

const (
	IntegrationWired   Integration = "WIRED"
	IntegrationPartial Integration = "PARTIAL"
	IntegrationMissing Integration = "MISSING"
)

// Confidence is a reviewer's self-assessment of its own review.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// ParseCorrectness resolves a response token, case-insensitively.
func ParseCorrectness(s string) (Correctness, bool) {
	switch normalizeToken(s) {
	case "VALID":
		return CorrectnessValid, true
	case "QUESTIONABLE":
		return CorrectnessQuestionable, true
	case "BROKEN":
		return CorrectnessBroken, true
	}
	return "", false
}

// ParseSpecCompliance resolves a response token, case-insensitively.
func ParseSpecCompliance(s string) (SpecCompliance, bool) {
	switch normalizeToken(s) {
	case "MEETS":
		return SpecComplianceMeets, true
	case "PARTIAL":
		return SpecCompliancePartial, true
	case "VIOLATES":
		return SpecComplianceViolates, true
	case "N/A", "NA":
		return SpecComplianceNA, true
	}
	return "", false
}

// ParseTestCoverage resolves a response token, case-insensitively.
func ParseTestCoverage(s string) (TestCoverage, bool) {
	switch normalizeToken(s) {
	case "COVERED":
		return TestCoverageCovered, true
	case "PARTIAL":
		return TestCoveragePartial, true
	case "UNTESTED":
		return TestCoverageUntested, true
	}
	return "", false
}

// ParseIntegration resolves a response token, case-insensitively.
func ParseIntegration(s string) (Integration, bool) {
	switch normalizeToken(s) {
	case "WIRED":
		return IntegrationWired, true
	case "PARTIAL":
		return IntegrationPartial, true
	case "MISSING":
		return IntegrationMissing, true
	}
	return "", false
}

// ParseConfidence resolves a response token, case-insensitively.
func ParseConfidence(s string) (Confidence, bool) {
	switch normalizeToken(s) {
	case "HIGH":
		return ConfidenceHigh, true
	case "MEDIUM":
		return ConfidenceMedium, true
	case "LOW":
		return ConfidenceLow, true
	}
	return "", false
}

func normalizeToken(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
