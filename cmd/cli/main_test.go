package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/gridmake/internal/app"
)

func TestRun_PanicRecovery(t *testing.T) {
	// --- Arrange ---
	// A rule file with a syntax error makes app.NewApp panic while loading.
	invalidHCL := `
		rule "A" {
			output = "a.txt"
		// Missing closing brace here
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "Gridfile.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0600)
	require.NoError(t, err, "failed to set up test file")
	t.Chdir(tempDir)

	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, []string{"-f", filePath})

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")

	errStr := runErr.Error()
	require.True(t, strings.Contains(errStr, "application startup panicked"), "The error message should indicate that a panic was recovered.")
	require.True(t, strings.Contains(errStr, "failed to parse"), "The error message should contain the underlying reason for the panic.")
}

func TestNewApp_OnlyStartupIsRecovered(t *testing.T) {
	// --- Arrange ---
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "Gridfile.hcl"), []byte(`rule "A" {`), 0600))
	t.Chdir(tempDir)
	cfg, err := app.NewConfig(app.Config{RulePaths: []string{"Gridfile.hcl"}, WorkerCount: 1, LogLevel: "error", LogFormat: "text"})
	require.NoError(t, err)

	// --- Act ---
	a, err := newApp(&bytes.Buffer{}, cfg)

	// --- Assert ---
	require.Nil(t, a)
	require.ErrorContains(t, err, "application startup panicked")

	// A valid rule file yields an app and no error.
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "Gridfile.hcl"), []byte(`rule "A" { output = "a.txt" }`), 0600))
	a, err = newApp(&bytes.Buffer{}, cfg)
	require.NoError(t, err)
	require.NotNil(t, a)
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_BuildsTarget(t *testing.T) {
	// --- Arrange ---
	tempDir := t.TempDir()
	rules := `
rule "A" {
  output = "out/{x}.txt"
  action = "write_wildcards"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "Gridfile.hcl"), []byte(rules), 0600))
	t.Chdir(tempDir)
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, []string{"--log-format", "text", "out/world.txt"})

	// --- Assert ---
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(tempDir, "out", "world.txt"))
	require.NoError(t, err)
	require.Equal(t, "world", string(data))
	require.Contains(t, out.String(), "rule A:")
}
