package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/roach88/vex/internal/ir"
)

// Oracle is the single capability the pipeline needs from the engine.
// Implementations must be safe for concurrent use; each Verify call
// owns its unit and any subprocess it spawns.
type Oracle interface {
	Verify(ctx context.Context, unit *ir.Unit, cfg ir.HarnessConfig) (*RawResult, error)
}

// EngineError reports an engine run that produced no usable result:
// crash, unparseable output, or failure to launch. Inconclusive by
// construction; stderr is carried verbatim for diagnostics.
type EngineError struct {
	Harness  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("engine failed for %s (exit %d)", e.Harness, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\nstderr:\n" + e.Stderr
	}
	return msg
}

func (e *EngineError) Unwrap() error { return e.Err }

// Driver runs the engine binary as a subprocess.
type Driver struct {
	// Binary is the engine executable path.
	Binary string

	// Args precede the generated per-run arguments.
	Args []string

	// WorkDir stages input files; empty means the system temp dir.
	WorkDir string

	Logger *slog.Logger
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Verify writes the input document, runs the engine under the harness
// timeout, and parses the item stream. Deadline expiry is a hard kill
// of the process group: the result is marked TimedOut and carries only
// items parsed before the cutoff. A nonzero exit with a parseable
// result item is a normal result; without one it is an EngineError.
func (d *Driver) Verify(ctx context.Context, unit *ir.Unit, cfg ir.HarnessConfig) (*RawResult, error) {
	input, err := EncodeInput(unit, cfg)
	if err != nil {
		return nil, err
	}

	dir := d.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	file, err := os.CreateTemp(dir, "vex-"+sanitize(unit.Harness)+"-*.json")
	if err != nil {
		return nil, fmt.Errorf("staging input for %s: %w", unit.Harness, err)
	}
	path := file.Name()
	defer os.Remove(path)
	if _, err := file.Write(input); err != nil {
		file.Close()
		return nil, fmt.Errorf("staging input for %s: %w", unit.Harness, err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("staging input for %s: %w", unit.Harness, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string(nil), d.Args...)
	args = append(args, "--unwind", strconv.FormatUint(uint64(cfg.Unwind), 10))
	args = append(args, cfg.SolverFlags...)
	args = append(args, path)

	cmd := exec.CommandContext(runCtx, d.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The engine may fork solver helpers; the deadline has to take the
	// whole group down, not just the leader.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	timedOut := runCtx.Err() == context.DeadlineExceeded
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	d.logger().Debug("engine run finished",
		"harness", unit.Harness,
		"elapsed", elapsed,
		"timed_out", timedOut,
		"exit", exitCode,
	)

	if timedOut {
		// Keep whatever arrived; verdicts from a killed run are void,
		// reachability hints are not.
		raw, parseErr := ParseStream(bytes.NewReader(stdout.Bytes()))
		if parseErr != nil {
			raw = &RawResult{}
		}
		raw.TimedOut = true
		raw.Partial = len(raw.Properties) > 0 || len(raw.Messages) > 0
		raw.Stderr = stderr.String()
		raw.ExitCode = exitCode
		return raw, nil
	}

	raw, parseErr := ParseStream(bytes.NewReader(stdout.Bytes()))
	if parseErr == nil && raw.HasResult() {
		raw.Stderr = stderr.String()
		raw.ExitCode = exitCode
		return raw, nil
	}

	engineErr := &EngineError{
		Harness:  unit.Harness,
		ExitCode: exitCode,
		Stderr:   stderr.String(),
	}
	switch {
	case parseErr != nil:
		engineErr.Err = parseErr
	case runErr != nil:
		engineErr.Err = runErr
	default:
		engineErr.Err = errors.New("no result item in output")
	}
	return nil, engineErr
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

var _ Oracle = (*Driver)(nil)
