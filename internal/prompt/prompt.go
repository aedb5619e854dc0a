// Package prompt implements blocking operator prompts on a line-oriented
// console. Reads never time out; cancellation is cooperative: the operator
// answers no, or input ends.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrCancelled is the root of every operator-initiated cancellation.
	// Workflows that end with it exit successfully.
	ErrCancelled = errors.New("cancelled by operator")

	// ErrTooManyAttempts is returned when a bounded prompt runs out of retries.
	ErrTooManyAttempts = errors.New("too many invalid answers")
)

// Option is one numbered menu entry.
type Option struct {
	Key   int
	Label string
}

// Console reads answers from in and writes prompts to out.
type Console struct {
	in  *bufio.Reader
	out io.Writer

	// maxAttempts bounds re-prompting on invalid input; 0 means unbounded.
	maxAttempts int
}

// New creates a console. maxAttempts of 0 re-prompts forever.
func New(in io.Reader, out io.Writer, maxAttempts int) *Console {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &Console{in: bufio.NewReader(in), out: out, maxAttempts: maxAttempts}
}

// Writer exposes the output stream for informational text.
func (c *Console) Writer() io.Writer {
	return c.out
}

// Printf writes informational text.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Println writes a line of informational text.
func (c *Console) Println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

// MaxAttempts reports the retry bound (0 when unbounded).
func (c *Console) MaxAttempts() int {
	return c.maxAttempts
}

// Line prints label and returns the trimmed answer. End of input cancels.
func (c *Console) Line(label string) (string, error) {
	fmt.Fprint(c.out, label)
	response, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(response) != "" {
				return strings.TrimSpace(response), nil
			}
			fmt.Fprintln(c.out)
			return "", fmt.Errorf("input closed: %w", ErrCancelled)
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(response), nil
}

// Confirm asks a yes/no question. Only "y" or "yes" (any case) is affirmative.
func (c *Console) Confirm(question string) (bool, error) {
	response, err := c.Line(question + " (yes/no): ")
	if err != nil {
		return false, err
	}
	response = strings.ToLower(response)
	return response == "yes" || response == "y", nil
}

// ConfirmToken requires the operator to type token exactly.
func (c *Console) ConfirmToken(question, token string) (bool, error) {
	response, err := c.Line(fmt.Sprintf("%s Type %s to continue: ", question, token))
	if err != nil {
		return false, err
	}
	return response == token, nil
}

// Index asks for a number in [1, n] and re-prompts on invalid input.
func (c *Console) Index(label string, n int) (int, error) {
	for attempt := 1; ; attempt++ {
		response, err := c.Line(fmt.Sprintf("%s [1-%d]: ", label, n))
		if err != nil {
			return 0, err
		}
		idx, convErr := strconv.Atoi(response)
		if convErr == nil && idx >= 1 && idx <= n {
			return idx, nil
		}
		fmt.Fprintf(c.out, "Invalid selection %q, enter a number between 1 and %d.\n", response, n)
		if c.exhausted(attempt) {
			return 0, ErrTooManyAttempts
		}
	}
}

// Menu prints numbered options and returns the chosen key.
// Invalid choices re-prompt.
func (c *Console) Menu(title string, options []Option) (int, error) {
	for attempt := 1; ; attempt++ {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, title)
		for _, opt := range options {
			fmt.Fprintf(c.out, "  %d) %s\n", opt.Key, opt.Label)
		}

		response, err := c.Line("Choice: ")
		if err != nil {
			return 0, err
		}
		key, convErr := strconv.Atoi(response)
		if convErr == nil {
			for _, opt := range options {
				if opt.Key == key {
					return key, nil
				}
			}
		}
		fmt.Fprintf(c.out, "Invalid choice %q.\n", response)
		if c.exhausted(attempt) {
			return 0, ErrTooManyAttempts
		}
	}
}

func (c *Console) exhausted(attempt int) bool {
	return c.maxAttempts > 0 && attempt >= c.maxAttempts
}
