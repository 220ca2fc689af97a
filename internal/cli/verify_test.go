package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vex/internal/testutil"
)

func newTestVerifyCommand(format string) (*bytes.Buffer, *VerifyOptions, *cobra.Command) {
	buf := &bytes.Buffer{}
	opts := &VerifyOptions{
		RootOptions: &RootOptions{Format: format},
		Oracle:      &testutil.ExhaustiveOracle{},
		RunIDs:      testutil.NewFixedIDGenerator("0198f2a0-0000-7000-8000-00000000cafe"),
	}
	cmd := newVerifyCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return buf, opts, cmd
}

func TestVerifyAllExpectationsMet(t *testing.T) {
	buf, _, cmd := newTestVerifyCommand("text")
	cmd.SetArgs([]string{filepath.Join("testdata", "catalog.json")})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "run 0198f2a0-0000-7000-8000-00000000cafe")
	assert.Contains(t, output, "check_divide_guarded")
	assert.Contains(t, output, "0 mismatched, 0 inconclusive")
	assert.Contains(t, output, "violated check_divide_bug.division-by-zero.1")
}

func TestVerifyJSONPayload(t *testing.T) {
	buf, _, cmd := newTestVerifyCommand("json")
	cmd.SetArgs([]string{filepath.Join("testdata", "catalog.json")})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result VerifyResult
	require.NoError(t, json.Unmarshal(raw, &result))

	require.Len(t, result.Harnesses, 2)
	byName := map[string]HarnessOutcome{}
	for _, h := range result.Harnesses {
		byName[h.Harness] = h
	}
	assert.Equal(t, "failure", byName["check_divide_bug"].Outcome)
	assert.True(t, byName["check_divide_bug"].Matched)
	assert.Equal(t, "success", byName["check_divide_guarded"].Outcome)
	assert.Equal(t, 0, result.Mismatched)
}

func TestVerifyMismatchExitsNonzero(t *testing.T) {
	// An override flips the buggy harness's expectation to success; the
	// conclusive failure then counts as a mismatch and the command
	// reports it through the exit code.
	ovPath := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(ovPath, []byte("harnesses:\n  check_divide_bug:\n    expected: success\n"), 0o644))

	buf, opts, cmd := newTestVerifyCommand("text")
	opts.Overrides = ovPath
	cmd.SetArgs([]string{"--overrides", ovPath, filepath.Join("testdata", "catalog.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "1 mismatched")
}

func TestVerifyRequiresEngineWithoutOracle(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewVerifyCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "catalog.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "--engine")
}

func TestVerifyWritesPlaybackTests(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "playback")

	buf, _, cmd := newTestVerifyCommand("text")
	cmd.SetArgs([]string{"--playback-dir", dir, filepath.Join("testdata", "catalog.json")})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "playback test written")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var source string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".go" {
			source = filepath.Join(dir, e.Name())
		}
	}
	require.NotEmpty(t, source, "no generated test in %s", dir)
	data, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Contains(t, string(data), "func Test_playback_check_divide_bug_")
	assert.Contains(t, string(data), "check_divide_bug.division-by-zero.1")

	// Re-running against identical artifacts is a no-op.
	buf2, _, cmd2 := newTestVerifyCommand("text")
	cmd2.SetArgs([]string{"--playback-dir", dir, filepath.Join("testdata", "catalog.json")})
	require.NoError(t, cmd2.Execute())
	assert.NotContains(t, buf2.String(), "playback test written")
}
