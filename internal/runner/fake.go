package runner

import (
	"context"
	"fmt"
	"sync"
)

// Response is a canned answer for Fake.
type Response struct {
	Output Output
	Err    error
}

// Fake implements Runner with canned responses keyed by command name.
// Unknown commands fail with ErrCommandNotFound. This enables deterministic
// tests of everything that shells out.
type Fake struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []Command
}

// NewFake creates an empty fake runner.
func NewFake() *Fake {
	return &Fake{responses: make(map[string][]Response)}
}

// Set registers the output returned for every call to name.
func (f *Fake) Set(name string, exitCode int, output string) *Fake {
	return f.Queue(name, Response{Output: Output{ExitCode: exitCode, Combined: []byte(output)}})
}

// SetErr registers an error returned for every call to name.
func (f *Fake) SetErr(name string, err error) *Fake {
	return f.Queue(name, Response{Err: err})
}

// Queue appends responses for name. They are consumed in order and the last
// one repeats.
func (f *Fake) Queue(name string, responses ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[name] = append(f.responses[name], responses...)
	return f
}

// Run records the call and returns the registered response.
func (f *Fake) Run(ctx context.Context, cmd Command) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, cmd)

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	queue, ok := f.responses[cmd.Name]
	if !ok || len(queue) == 0 {
		return Output{}, fmt.Errorf("%s: %w", cmd.Name, ErrCommandNotFound)
	}

	resp := queue[0]
	if len(queue) > 1 {
		f.responses[cmd.Name] = queue[1:]
	}

	if cmd.Stream != nil && len(resp.Output.Combined) > 0 {
		_, _ = cmd.Stream.Write(resp.Output.Combined)
	}

	return resp.Output, resp.Err
}

// Calls returns a copy of every recorded command.
func (f *Fake) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// CallsTo returns the recorded commands with the given name.
func (f *Fake) CallsTo(name string) []Command {
	var out []Command
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
