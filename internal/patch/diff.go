package patch

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ExtractDiff pulls a unified diff out of an agent response. Agents
// wrap diffs in markdown fences or preface them with prose, so
// collection starts at the first diff header and stops at a closing
// fence once diff lines have been collected.
func ExtractDiff(response string) string {
	var collected []string
	inDiff := false
	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		if strings.HasPrefix(line, "--- a/") || strings.HasPrefix(line, "diff --git") {
			inDiff = true
		}
		if !inDiff {
			continue
		}
		if strings.HasPrefix(line, "```") && len(collected) > 0 {
			break
		}
		collected = append(collected, line)
	}
	return strings.Join(collected, "\n")
}

// FileStat summarizes one file's changes within a unified diff.
type FileStat struct {
	Path    string
	Added   int
	Removed int
}

// Stats parses a unified diff into per-file line counts. An error
// means the text is not a well-formed diff.
func Stats(unified string) ([]FileStat, error) {
	fds, err := diff.NewMultiFileDiffReader(strings.NewReader(unified)).ReadAllFiles()
	if err != nil {
		return nil, err
	}
	stats := make([]FileStat, 0, len(fds))
	for _, fd := range fds {
		st := FileStat{Path: strippedPath(fd)}
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
					st.Added++
				case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
					st.Removed++
				}
			}
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// ChangedFiles lists the paths a unified diff touches, in diff order.
func ChangedFiles(unified string) ([]string, error) {
	stats, err := Stats(unified)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(stats))
	for _, st := range stats {
		files = append(files, st.Path)
	}
	return files, nil
}

func strippedPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return name
}
