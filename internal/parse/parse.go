// Package parse turns raw agent responses into structured reviews.
//
// Responses follow a loose block grammar: each reviewed change is a
// "### <change_id>" heading followed by KEY: VALUE lines, closed by a
// "---" line. Agents drift from the format constantly, so parsing is
// tolerant: fields may appear in any order, unknown keys are ignored,
// and a block the parser cannot understand is recorded and skipped
// instead of failing the whole response.
package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joescharf/cr/internal/models"
)

// Reserved section headings that are side channels, not change blocks.
const (
	headSelfReview      = "SELF_REVIEW"
	headFeatureRequests = "FEATURE_REQUESTS"
	headObservations    = "OBSERVATIONS"
)

// Response parses one agent's raw response into a review. A response
// with no parseable change blocks is a passing review with zero
// changes: nothing flagged means nothing to gate on.
func Response(agent, raw string) *models.ModelReview {
	review := &models.ModelReview{Agent: agent, Raw: raw}

	for _, b := range scanBlocks(raw) {
		switch strings.ToUpper(b.header) {
		case headSelfReview:
			review.SelfReview = selfReview(b)
		case headFeatureRequests:
			review.FeatureRequests = featureRequests(b)
		case headObservations:
			// Tool requests, not review content. See Observations.
		default:
			cv, skipped := changeVerdict(b)
			if skipped != nil {
				review.Skipped = append(review.Skipped, *skipped)
				continue
			}
			review.Changes = append(review.Changes, *cv)
		}
	}

	review.Gate = gate(review.Changes)
	return review
}

// gate merges per-change verdicts into the agent's overall gate.
func gate(changes []models.ChangeVerdict) models.Verdict {
	g := models.VerdictPass
	for _, c := range changes {
		g = models.MaxVerdict(g, c.Verdict)
	}
	return g
}

// block is one "### header" section with its raw body lines.
type block struct {
	header string
	lines  []string
}

func (b block) text() string {
	return "### " + b.header + "\n" + strings.Join(b.lines, "\n")
}

// scanBlocks splits a response into blocks. A block opens at a "###"
// heading and closes at "---", at the next heading, or at end of input.
// Lines outside any block are prose and dropped.
func scanBlocks(raw string) []block {
	var blocks []block
	var cur *block

	flush := func() {
		if cur != nil {
			blocks = append(blocks, *cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "###") && !strings.HasPrefix(trimmed, "####"):
			header := strings.TrimSpace(strings.TrimPrefix(trimmed, "###"))
			flush()
			if header != "" {
				cur = &block{header: header}
			}
		case strings.HasPrefix(trimmed, "## "):
			flush()
		case trimmed == "---":
			flush()
		case cur != nil:
			cur.lines = append(cur.lines, line)
		}
	}
	flush()
	return blocks
}

var keyLine = regexp.MustCompile(`^([A-Z][A-Z_]*):\s*(.*)$`)

// fields gathers KEY: VALUE pairs from a block body. A line that does
// not introduce a key continues the previous key's value, so multi-line
// REASONING works no matter where in the block it sits.
func fields(lines []string) map[string]string {
	vals := make(map[string]string)
	var last string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if m := keyLine.FindStringSubmatch(trimmed); m != nil {
			vals[m[1]] = m[2]
			last = m[1]
			continue
		}
		if last != "" && trimmed != "" {
			vals[last] += "\n" + trimmed
		}
	}
	return vals
}

// changeVerdict interprets one block as a change verdict. VERDICT is
// the only required field; a missing or unrecognized verdict rejects
// just this block. Other fields fall back to absent when missing or
// unrecognized. The change id is kept verbatim.
func changeVerdict(b block) (*models.ChangeVerdict, *models.SkippedBlock) {
	vals := fields(b.lines)

	raw, ok := vals["VERDICT"]
	if !ok {
		return nil, &models.SkippedBlock{ChangeID: b.header, Reason: "missing VERDICT", Raw: b.text()}
	}
	verdict, ok := models.ParseVerdict(firstLine(raw))
	if !ok {
		return nil, &models.SkippedBlock{
			ChangeID: b.header,
			Reason:   fmt.Sprintf("unrecognized verdict %q", firstLine(raw)),
			Raw:      b.text(),
		}
	}

	cv := &models.ChangeVerdict{
		ChangeID:  b.header,
		Verdict:   verdict,
		Reasoning: strings.TrimSpace(vals["REASONING"]),
	}
	if v, ok := models.ParseCorrectness(firstLine(vals["CORRECTNESS"])); ok {
		cv.Correctness = v
	}
	if v, ok := models.ParseSpecCompliance(firstLine(vals["SPEC_COMPLIANCE"])); ok {
		cv.SpecCompliance = v
	}
	if v, ok := models.ParseTestCoverage(firstLine(vals["TEST_COVERAGE"])); ok {
		cv.TestCoverage = v
	}
	if v, ok := models.ParseIntegration(firstLine(vals["INTEGRATION"])); ok {
		cv.Integration = v
	}
	return cv, nil
}

// selfReview interprets a SELF_REVIEW block. A section without a
// CONFIDENCE field is dropped; an unrecognized confidence token
// degrades to MEDIUM.
func selfReview(b block) *models.SelfReview {
	vals := fields(b.lines)
	raw, ok := vals["CONFIDENCE"]
	if !ok {
		return nil
	}
	conf, ok := models.ParseConfidence(firstLine(raw))
	if !ok {
		conf = models.ConfidenceMedium
	}
	return &models.SelfReview{
		Confidence:  conf,
		Limitations: strings.TrimSpace(vals["LIMITATIONS"]),
	}
}

// featureRequests collects the bullet items of a FEATURE_REQUESTS block.
func featureRequests(b block) []string {
	var out []string
	for _, line := range b.lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			if item := strings.TrimSpace(trimmed[2:]); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// firstLine returns the first line of a possibly multi-line value.
// Token fields are single-line; anything after a break is prose that
// attached itself to the wrong key.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
