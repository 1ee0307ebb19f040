package parse

import (
	"encoding/json"
	"strings"

	"github.com/joescharf/cr/internal/observe"
)

// Observations extracts tool requests from a response that asks for
// more context instead of rendering verdicts. The section is a fenced
// JSON array under an OBSERVATIONS heading; anything malformed means
// no requests.
func Observations(raw string) []observe.Request {
	for _, b := range scanBlocks(raw) {
		if !strings.EqualFold(b.header, headObservations) {
			continue
		}
		body := fencedJSON(b.lines)
		if body == "" {
			return nil
		}
		var reqs []observe.Request
		if err := json.Unmarshal([]byte(body), &reqs); err != nil {
			return nil
		}
		return reqs
	}
	return nil
}

// fencedJSON returns the content of the first code fence in lines. An
// unterminated fence yields whatever was collected; the JSON decode
// decides if it is usable.
func fencedJSON(lines []string) string {
	var buf []string
	in := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case !in && strings.HasPrefix(trimmed, "```"):
			in = true
		case in && trimmed == "```":
			return strings.Join(buf, "\n")
		case in:
			buf = append(buf, line)
		}
	}
	return strings.Join(buf, "\n")
}
