package review

import (
	"encoding/json"
	"fmt"
	"strings"
)

// reviewContract is the response format agents must follow. The parser
// is tolerant, but everything downstream keys off these field names.
const reviewContract = `## Instructions

For each significant change (new file, modified function, etc.), provide a structured verdict.

Use this exact format for each change:

### <file_path or file_path:line or file_path:function_name>
VERDICT: PASS | CONCERN | BLOCK
CORRECTNESS: VALID | QUESTIONABLE | BROKEN
SPEC_COMPLIANCE: MEETS | PARTIAL | VIOLATES | N/A
TEST_COVERAGE: COVERED | PARTIAL | UNTESTED
INTEGRATION: WIRED | PARTIAL | MISSING
REASONING: <brief explanation of your assessment>
---

## Review Criteria

1. **CORRECTNESS**: Does the code do what it claims? Is the logic sound?
   - VALID: Logic is correct, no bugs apparent
   - QUESTIONABLE: Logic may have edge cases or unclear behavior
   - BROKEN: Clear bugs or incorrect behavior

2. **SPEC_COMPLIANCE**: Does it meet MUST requirements from the spec?
   - MEETS: All relevant spec requirements satisfied
   - PARTIAL: Some requirements met, others missing or incomplete
   - VIOLATES: Contradicts spec requirements
   - N/A: No spec provided or not applicable

3. **TEST_COVERAGE**: Are there tests for the new/changed code?
   - COVERED: Tests exist and cover the changes
   - PARTIAL: Some tests exist but coverage is incomplete
   - UNTESTED: No tests for the changes

4. **INTEGRATION**: Are callers updated? Is the feature usable end-to-end?
   - WIRED: Feature is fully integrated and usable
   - PARTIAL: Interface exists but callers not updated, or integration incomplete
   - MISSING: No integration with existing code

## Verdict Guidelines

- **BLOCK**: Security issues, broken functionality, spec violations, or missing critical integration
- **CONCERN**: Missing tests, partial integration, questionable patterns, or unclear logic
- **PASS**: Correct, tested, well-integrated code

## Important

- Focus on actual issues, not style preferences
- If a method signature is added but callers aren't updated, that's PARTIAL integration
- Be specific in reasoning - reference line numbers or function names
- When in doubt, use CONCERN rather than PASS
`

// observationOffer tells agents how to trade a response for more
// context. The format mirrors the change-block grammar so one parser
// handles both.
const observationOffer = `## Requesting Observations

If you cannot render confident verdicts without more context, you may request observations instead of reviewing. Output a single OBSERVATIONS block with a fenced JSON array and no verdict blocks; the tools will run and their results will be included in your next prompt.

### OBSERVATIONS
` + "```json" + `
[
  {"name": "descriptive_name", "tool": "tool_name", "params": {"param": "value"}}
]
` + "```" + `
---

Available tools:

| Tool | Purpose | Params |
|------|---------|--------|
| find_usages | Where a symbol is used, for integration verification | symbol |
| git_blame | Authorship and age of a line range | file_path, start_line, end_line |
| file_content | Full content of a file the diff only shows hunks of | file_path |
| project_dependencies | Module path and declared dependencies of the project | none |

Only request observations you actually need. If the diff alone is enough, review it directly.
`

const selfReviewAsk = `## Self-Review

After completing your review, add a brief self-assessment:

### SELF_REVIEW
CONFIDENCE: HIGH | MEDIUM | LOW
LIMITATIONS: <what context were you missing that affected review quality?>
---

## Feature Requests

If this review tool could be improved to help you do a better job, suggest features:

### FEATURE_REQUESTS
- <suggestion 1>
- <suggestion 2>
---

Only include this section if you have specific suggestions. Skip it if none.
`

// BuildReviewPrompt renders the full review prompt. observations are
// results from earlier rounds, keyed by request name; allowObservations
// offers the agent another observation round.
func BuildReviewPrompt(diff, spec string, observations map[string]any, allowObservations bool) string {
	var b strings.Builder
	b.WriteString("You are a senior code reviewer. Review the following code changes.\n\n")

	b.WriteString("## Specification\n\n")
	if spec != "" {
		b.WriteString("Review the code against this specification. Flag any MUST requirements that are not met.\n\n")
		writeFenced(&b, "markdown", spec)
	} else {
		b.WriteString("No specification provided. Focus on correctness, tests, and integration.\n")
	}
	b.WriteString("\n")

	b.WriteString("## Code Changes\n\n")
	writeFenced(&b, "diff", diff)
	b.WriteString("\n")

	if len(observations) > 0 {
		b.WriteString("## Observations\n\n")
		b.WriteString("Results of the observations you requested:\n\n")
		if data, err := json.MarshalIndent(observations, "", "  "); err == nil {
			writeFenced(&b, "json", string(data))
		}
		b.WriteString("\n")
	}

	b.WriteString(reviewContract)
	b.WriteString("\n")
	if allowObservations {
		b.WriteString(observationOffer)
		b.WriteString("\n")
	}
	b.WriteString(selfReviewAsk)
	return b.String()
}

// BuildSpecCheckPrompt renders the requirement-by-requirement
// compliance prompt. Unlike review, a spec is mandatory here.
func BuildSpecCheckPrompt(diff, spec string) string {
	var b strings.Builder
	b.WriteString("You are a specification compliance checker. Review the code changes against the specification.\n\n")

	b.WriteString("## Specification\n\n")
	writeFenced(&b, "markdown", spec)
	b.WriteString("\n")

	b.WriteString("## Code Changes\n\n")
	writeFenced(&b, "diff", diff)
	b.WriteString("\n")

	b.WriteString(`## Instructions

Check each MUST requirement in the spec. For each requirement, determine if the code:
1. **MEETS** - Code satisfies the requirement
2. **PARTIAL** - Code partially addresses the requirement
3. **VIOLATES** - Code contradicts or ignores the requirement
4. **UNTESTED** - Requirement exists but no test coverage

Use this exact format for each requirement:

### MUST: <requirement text>
STATUS: MEETS | PARTIAL | VIOLATES | UNTESTED
EVIDENCE: <specific code reference or explanation>
---

## Summary

After reviewing all requirements, provide:

OVERALL: COMPLIANT | NON_COMPLIANT | PARTIAL
MISSING: <list any MUST requirements not addressed>
CONCERNS: <any implementation concerns>
`)
	return b.String()
}

func writeFenced(b *strings.Builder, lang, content string) {
	fmt.Fprintf(b, "```%s\n", lang)
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n")
}
