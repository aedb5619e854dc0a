package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/platform"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/prompt"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/runner"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

// errHelp stops a subcommand after its help text was printed.
var errHelp = errors.New("help requested")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		// The first signal cancels between steps; restoring the default
		// handler lets a second one terminate a blocked prompt.
		<-ctx.Done()
		stop()
	}()
	code := newCLI(os.Stdin, os.Stdout, os.Stderr).run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// cli holds the process streams and the host collaborators, swapped out
// in tests.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	runner          runner.Runner
	mounts          device.MountLister
	detector        platform.Detector
	currentOperator func() (*platform.Operator, error)
	envFile         string
}

func newCLI(stdin io.Reader, stdout, stderr io.Writer) *cli {
	return &cli{
		stdin:           stdin,
		stdout:          stdout,
		stderr:          stderr,
		runner:          runner.NewExec(),
		mounts:          device.NewSystemMounts(),
		detector:        platform.NewDetector(),
		currentOperator: platform.CurrentOperator,
		envFile:         defaultEnvFile,
	}
}

// run executes one invocation and returns the process exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	err := c.dispatch(ctx, args)
	switch {
	case err == nil, errors.Is(err, errHelp):
		return 0
	case errors.Is(err, prompt.ErrCancelled):
		fmt.Fprintln(c.stdout, "Cancelled. Nothing was written.")
	default:
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps a workflow error to the process status. Operator
// cancellation is not a failure.
func exitCode(err error) int {
	if err == nil || errors.Is(err, errHelp) || errors.Is(err, prompt.ErrCancelled) {
		return 0
	}
	return 1
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.runMenu(ctx)
	}

	switch args[0] {
	case "--version", "-v", "version":
		fmt.Fprintf(c.stdout, "bootstick %s\n", Version)
		return nil
	case "--help", "-h", "help":
		c.printHelp()
		return nil
	case "create":
		return c.runCreate(ctx, args[1:])
	case "devices":
		return c.runDevices(ctx, args[1:])
	case "history":
		return c.runHistory(ctx, args[1:])
	case "config":
		if len(args) < 2 {
			return fmt.Errorf("config subcommand requires an action\nUsage: bootstick config init [--force] [--stdout]")
		}
		switch args[1] {
		case "init":
			return c.runConfigInit(ctx, args[2:])
		default:
			return fmt.Errorf("unknown config action: %s\nUsage: bootstick config init [--force] [--stdout]", args[1])
		}
	}
	return fmt.Errorf("unknown command: %s\nRun 'bootstick --help' for usage", args[0])
}

func (c *cli) printHelp() {
	fmt.Fprintln(c.stdout, "bootstick - create bootable USB media without erasing the wrong disk")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Usage:")
	fmt.Fprintln(c.stdout, "  bootstick                          Interactive menu")
	fmt.Fprintln(c.stdout, "  bootstick create [options]         Write an image to a USB device")
	fmt.Fprintln(c.stdout, "  bootstick devices [--all]          List devices and why they are (not) eligible")
	fmt.Fprintln(c.stdout, "  bootstick history [--limit N]      Show recorded write jobs")
	fmt.Fprintln(c.stdout, "  bootstick config init [options]    Write the default configuration")
	fmt.Fprintln(c.stdout, "  bootstick --version                Show version information")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Writing requires root. Run 'bootstick <command> --help' for command options.")
}
