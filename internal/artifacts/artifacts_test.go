package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDir_CreatesRunDirectory(t *testing.T) {
	base := t.TempDir()

	dir, err := NewDir(base, "run-01ABC")
	require.NoError(t, err)

	info, err := os.Stat(dir.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(base, "run-01ABC"), dir.Root())
}

func TestSaveResponse_WritesAgentFile(t *testing.T) {
	dir, err := NewDir(t.TempDir(), "run1")
	require.NoError(t, err)

	path, err := dir.SaveResponse("claude", "### foo.go:1\nVERDICT: PASS\n---")
	require.NoError(t, err)
	assert.Equal(t, "claude.response.md", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "### foo.go:1\nVERDICT: PASS\n---\n", string(data))
}

func TestSavePatch_NameCarriesOutcome(t *testing.T) {
	dir, err := NewDir(t.TempDir(), "run1")
	require.NoError(t, err)

	path, err := dir.SavePatch("src/auth.go:42", "applied", "--- a/src/auth.go\n+++ b/src/auth.go\n")
	require.NoError(t, err)
	assert.Equal(t, "src_auth.go_42.applied.patch", filepath.Base(path))
}

func TestWrite_AppendsTrailingNewline(t *testing.T) {
	dir, err := NewDir(t.TempDir(), "run1")
	require.NoError(t, err)

	path, err := dir.SavePatch("a.go:1", "failed", "no trailing newline")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "no trailing newline\n", string(data))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "src_pkg_file.go_10", sanitize("src/pkg/file.go:10"))
	assert.Equal(t, "a_b", sanitize(`a\b`))
	assert.Equal(t, "two_words", sanitize("two words"))
	assert.Equal(t, "unnamed", sanitize(""))
}
