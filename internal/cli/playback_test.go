package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybackFromStoredRun(t *testing.T) {
	dbPath := seedRun(t)
	outDir := filepath.Join(t.TempDir(), "playback")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewPlaybackCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--db", dbPath,
		"--out", outDir,
		filepath.Join("testdata", "catalog.json"),
		"check_divide_bug",
	})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ playback_check_divide_bug_")
	assert.Contains(t, output, "replays check_divide_bug.division-by-zero.1")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var sourceName string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".go" {
			sourceName = e.Name()
		}
	}
	require.NotEmpty(t, sourceName)

	data, err := os.ReadFile(filepath.Join(outDir, sourceName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Code generated by vex playback")
	assert.Contains(t, string(data), "func Test_playback_check_divide_bug_")

	// The unit document lands next to the source so the generated test
	// is self-contained.
	unitFiles, err := os.ReadDir(filepath.Join(outDir, "testdata"))
	require.NoError(t, err)
	require.Len(t, unitFiles, 1)
	assert.Equal(t, ".json", filepath.Ext(unitFiles[0].Name()))
}

func TestPlaybackIdempotentArtifacts(t *testing.T) {
	dbPath := seedRun(t)
	outDir := filepath.Join(t.TempDir(), "playback")

	args := []string{
		"--db", dbPath,
		"--out", outDir,
		filepath.Join("testdata", "catalog.json"),
		"check_divide_bug",
	}

	rootOpts := &RootOptions{Format: "text"}
	first := NewPlaybackCommand(rootOpts)
	first.SetOut(&bytes.Buffer{})
	first.SetArgs(args)
	require.NoError(t, first.Execute())

	buf := &bytes.Buffer{}
	second := NewPlaybackCommand(rootOpts)
	second.SetOut(buf)
	second.SetArgs(args)
	require.NoError(t, second.Execute())
	assert.Contains(t, buf.String(), "artifacts already up to date")
}

func TestPlaybackNoCounterexampleStored(t *testing.T) {
	dbPath := seedRun(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewPlaybackCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--db", dbPath,
		filepath.Join("testdata", "catalog.json"),
		"check_divide_guarded", // succeeded, nothing to replay
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E005")
}

func TestPlaybackUnknownHarness(t *testing.T) {
	dbPath := seedRun(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewPlaybackCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--db", dbPath,
		filepath.Join("testdata", "catalog.json"),
		"check_nothing",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "not found in catalog")
}
