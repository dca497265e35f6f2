package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/langcore/internal/config"
	"github.com/dshills/langcore/internal/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvDBPath, "")
	t.Setenv(config.EnvLogLevel, "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: "+version)
	assert.Contains(t, out, "SQLite Driver: "+storage.DriverName)
}

func TestBuildIndexCommand(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"),
		[]byte("package main\n\nfunc main() {}\n"), 0644))

	out, err := execute(t, "build-index", "--db", ":memory:", "--log-level", "error", root)
	require.NoError(t, err)
	assert.Contains(t, out, root+": 1 indexed, 0 unchanged, 0 failed")
}

func TestBuildIndexCommand_Errors(t *testing.T) {
	_, err := execute(t, "build-index")
	assert.Error(t, err, "a path is required")

	_, err = execute(t, "build-index", "--db", ":memory:", "--log-level", "loud", t.TempDir())
	assert.Error(t, err)

	_, err = execute(t, "build-index", "--config", filepath.Join(t.TempDir(), "missing.yaml"), t.TempDir())
	assert.Error(t, err)
}
