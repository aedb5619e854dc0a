// Package runner provides an interface-based wrapper for running external
// tools (lsblk, file, dd, installers) with context support.
//
// Every component that shells out goes through a Runner so tests can swap in
// a Fake returning canned output instead of touching real block devices.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
)

var (
	// ErrCommandNotFound is returned when the executable is not on PATH.
	ErrCommandNotFound = errors.New("command not found")
)

// Command describes a single process invocation.
type Command struct {
	Name  string
	Args  []string
	Stdin string

	// Stream, when set, also receives the combined output as it is produced.
	Stream io.Writer
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Output is the result of a completed process.
type Output struct {
	ExitCode int
	Combined []byte
}

// Text returns the combined output trimmed of surrounding whitespace.
func (o Output) Text() string {
	return strings.TrimSpace(string(o.Combined))
}

// Err converts a non-zero exit into an error carrying the tool output.
func (o Output) Err(cmd Command) error {
	if o.ExitCode == 0 {
		return nil
	}
	return &ExitError{Command: cmd.String(), ExitCode: o.ExitCode, Output: o.Text()}
}

// ExitError reports a process that ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, e.Output)
}

// Runner is the interface for running external commands.
// A non-zero exit is reported through Output.ExitCode, not as an error; the
// error return is reserved for processes that could not be run at all.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// Exec implements Runner using os/exec.
type Exec struct{}

// NewExec creates a runner backed by real processes.
func NewExec() *Exec {
	return &Exec{}
}

// syncBuffer guards the capture buffer; exec copies stdout and stderr from
// separate goroutines when they are not the same *os.File.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	tee io.Writer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tee != nil {
		_, _ = b.tee.Write(p)
	}
	return b.buf.Write(p)
}

// Run executes the command and waits for it to finish.
func (e *Exec) Run(ctx context.Context, c Command) (Output, error) {
	log := logger.FromContext(ctx)
	log.Debug("running command", "cmd", c.String())

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}

	out := &syncBuffer{tee: c.Stream}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	result := Output{Combined: out.buf.Bytes()}

	if err == nil {
		return result, nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return result, fmt.Errorf("%s: %w", c.Name, ErrCommandNotFound)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s: %w", c.Name, ctxErr)
		}
		result.ExitCode = exitErr.ExitCode()
		log.Debug("command exited non-zero", "cmd", c.Name, "exit_code", result.ExitCode)
		return result, nil
	}

	return result, fmt.Errorf("run %s: %w", c.Name, err)
}
