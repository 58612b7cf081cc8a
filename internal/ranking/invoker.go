package ranking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"sort"
	"time"
)

// waitDelay bounds how long Wait keeps draining pipes after the scorer exits or is killed
const waitDelay = 5 * time.Second

var errOutputTooLarge = errors.New("scorer output exceeded capture ceiling")

// InvocationSpec describes one scorer run. It is built once per request and not modified.
type InvocationSpec struct {
	Candidates   []string
	Args         []string
	Idea         string
	ArtifactPath string
	Env          map[string]string
}

// Argv is the argument vector passed to the executable: leading args, then idea and artifact path
func (s InvocationSpec) Argv() []string {
	argv := make([]string, 0, len(s.Args)+2)
	argv = append(argv, s.Args...)
	return append(argv, s.Idea, s.ArtifactPath)
}

// InvocationResult is the captured outcome of one scorer run
type InvocationResult struct {
	Stdout        []byte
	Stderr        []byte
	ExitSucceeded bool
	ExitCode      int
	Duration      time.Duration
}

// missingExecutableError marks a candidate that could not be started because it is absent
// or not executable. It is the only failure the locator retries.
type missingExecutableError struct {
	candidate string
	err       error
}

func (e *missingExecutableError) Error() string {
	return fmt.Sprintf("executable %s unavailable: %v", e.candidate, e.err)
}

func (e *missingExecutableError) Unwrap() error {
	return e.err
}

// Invoker runs a scorer executable with bounded output capture
type Invoker struct {
	// MaxOutput is the ceiling applied independently to stdout and stderr
	MaxOutput int64
	// Timeout, when positive, kills the scorer after that long
	Timeout time.Duration
}

// Invoke runs executable with spec's argv. Arguments are passed as a discrete vector, never
// through a shell, so idea text cannot be interpreted as shell syntax.
func (inv *Invoker) Invoke(ctx context.Context, executable string, spec InvocationSpec) (*InvocationResult, error) {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if inv.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeoutCause(runCtx, inv.Timeout, context.DeadlineExceeded)
		defer cancelTimeout()
	}

	stdout := &ceilingWriter{limit: inv.MaxOutput, onOverflow: func() { cancel(errOutputTooLarge) }}
	stderr := &ceilingWriter{limit: inv.MaxOutput, onOverflow: func() { cancel(errOutputTooLarge) }}

	cmd := exec.CommandContext(runCtx, executable, spec.Argv()...)
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if isMissingExecutable(err) {
			return nil, &missingExecutableError{candidate: executable, err: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Kind: KindExecutionFailed, Message: "scorer cancelled", Err: ctxErr}
		}
		// Start errors name server paths; they stay in the log
		log.Printf(`{"level":"error","message":"Failed to start scorer","executable":"%s","error":%q}`, executable, err.Error())
		return nil, &Error{Kind: KindExecutionFailed, Message: "failed to start scorer"}
	}

	waitErr := cmd.Wait()
	result := &InvocationResult{
		Stdout:   stdout.buf.Bytes(),
		Stderr:   stderr.buf.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if stdout.overflow || stderr.overflow {
		return result, &Error{
			Kind:    KindOutputTooLarge,
			Message: fmt.Sprintf("scorer output exceeded %d bytes", inv.MaxOutput),
		}
	}

	if waitErr != nil {
		return result, classifyWaitError(ctx, runCtx, result, waitErr)
	}
	result.ExitSucceeded = true

	// Warnings on stderr are tolerated only when there is something to decode
	if len(bytes.TrimSpace(result.Stdout)) == 0 && len(bytes.TrimSpace(result.Stderr)) > 0 {
		return result, &Error{
			Kind:    KindExecutionFailed,
			Message: "scorer produced no output",
			Stderr:  string(result.Stderr),
		}
	}

	return result, nil
}

func classifyWaitError(parent, runCtx context.Context, result *InvocationResult, err error) error {
	switch {
	case parent.Err() != nil:
		return &Error{Kind: KindExecutionFailed, Message: "scorer cancelled", Err: parent.Err(), Stderr: string(result.Stderr)}
	case errors.Is(context.Cause(runCtx), context.DeadlineExceeded):
		return &Error{Kind: KindExecutionFailed, Message: "scorer timed out", Err: context.DeadlineExceeded, Stderr: string(result.Stderr)}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Error{
			Kind:    KindExecutionFailed,
			Message: fmt.Sprintf("scorer exited with status %d", exitErr.ExitCode()),
			Stderr:  string(result.Stderr),
			Err:     err,
		}
	}
	return &Error{Kind: KindExecutionFailed, Message: "scorer failed", Stderr: string(result.Stderr), Err: err}
}

func isMissingExecutable(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, exec.ErrDot) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}

// mergeEnv appends the overlay to base in a stable order; later entries win in exec
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+overlay[k])
	}
	return env
}

// ceilingWriter buffers up to limit bytes. The first write past the limit marks the
// writer as overflowed, fires onOverflow and fails, which stops the copy from the child.
type ceilingWriter struct {
	buf        bytes.Buffer
	limit      int64
	overflow   bool
	onOverflow func()
}

func (w *ceilingWriter) Write(p []byte) (int, error) {
	if w.overflow {
		return 0, errOutputTooLarge
	}

	remaining := w.limit - int64(w.buf.Len())
	if int64(len(p)) > remaining {
		w.buf.Write(p[:remaining])
		w.overflow = true
		if w.onOverflow != nil {
			w.onOverflow()
		}
		return int(remaining), errOutputTooLarge
	}
	return w.buf.Write(p)
}
