package golang

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoVersion(t *testing.T) {
	dir := t.TempDir()
	goMod := filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(goMod, []byte("module example.com/test\n\ngo 1.25.0\n"), 0644))

	a := NewAnalyzer()
	ver, err := a.GoVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.25.0", ver)
}

func TestModulePath(t *testing.T) {
	dir := t.TempDir()
	goMod := filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(goMod, []byte("module example.com/test\n\ngo 1.25.0\n"), 0644))

	a := NewAnalyzer()
	mod, err := a.ModulePath(dir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/test", mod)
}

func TestGoVersion_NoFile(t *testing.T) {
	dir := t.TempDir()
	a := NewAnalyzer()
	_, err := a.GoVersion(dir)
	assert.Error(t, err)
}

func TestIsGoProject(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsGoProject(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module test\n"), 0644))
	assert.True(t, IsGoProject(dir))
}

func TestRequires(t *testing.T) {
	dir := t.TempDir()
	goMod := `module example.com/test

go 1.25.0

require (
	github.com/spf13/cobra v1.10.2
	github.com/stretchr/testify v1.11.1
)

require (
	github.com/spf13/pflag v1.0.10 // indirect
)
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0644))

	a := NewAnalyzer()
	deps, err := a.Requires(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"github.com/spf13/cobra v1.10.2",
		"github.com/stretchr/testify v1.11.1",
	}, deps, "indirect requirements are excluded")
}

func TestRequires_SingleLine(t *testing.T) {
	dir := t.TempDir()
	goMod := "module example.com/test\n\ngo 1.25.0\n\nrequire github.com/spf13/cobra v1.10.2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0644))

	a := NewAnalyzer()
	deps, err := a.Requires(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"github.com/spf13/cobra v1.10.2"}, deps)
}
