package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "memory")
	t.Setenv("STORAGE_URL", "memory://")

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLibraryRegister(t *testing.T) {
	path := writeManifest(t, `{"title": "Text", "machineName": "H5P.Text", "majorVersion": 1, "minorVersion": 1, "patchVersion": 3, "runnable": 0}`)

	out, stderr, err := runCommand(t, "library", "register", path, "--origin", "official")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered H5P.Text 1.1")
	assert.Contains(t, out, "with 0 dependencies")
	assert.Contains(t, stderr, "not persisted")
}

func TestLibraryRegister_MissingDependencies(t *testing.T) {
	path := writeManifest(t, `{
  "machineName": "H5P.Column", "majorVersion": 1, "minorVersion": 13,
  "preloadedDependencies": [{"machineName": "H5P.Text", "majorVersion": 1, "minorVersion": 1}],
  "dynamicDependencies": [{"machineName": "H5P.Image", "majorVersion": 1, "minorVersion": 0}]
}`)

	_, _, err := runCommand(t, "library", "register", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "H5P.Text 1.1")
	assert.Contains(t, err.Error(), "H5P.Image 1.0")
}

func TestLibraryRegister_InvalidManifest(t *testing.T) {
	path := writeManifest(t, `{"machineName": ""}`)

	_, _, err := runCommand(t, "library", "register", path)
	assert.Error(t, err)
}

func TestLibraryShow_InvalidVersion(t *testing.T) {
	_, _, err := runCommand(t, "library", "show", "H5P.Text", "--version", "one")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid version")
}

func TestMigrateRequiresPostgres(t *testing.T) {
	_, _, err := runCommand(t, "migrate", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres DATABASE_URL")
}
