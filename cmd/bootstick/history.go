package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/job"
)

const defaultHistoryLimit = 20

func parseHistoryArgs(args []string) (int, error) {
	limit := defaultHistoryLimit
	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(args[i], "=")
		switch name {
		case "--help", "-h":
			return 0, errHelp
		case "--limit", "-n":
			if !hasValue {
				if i+1 >= len(args) {
					return 0, fmt.Errorf("%s requires a value", name)
				}
				i++
				value = args[i]
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid %s %q: want a non-negative number (0 shows all)", name, value)
			}
			limit = n
		default:
			return 0, fmt.Errorf("unknown option: %s\nRun 'bootstick history --help' for usage", args[i])
		}
	}
	return limit, nil
}

// runHistory handles the `bootstick history` subcommand.
func (c *cli) runHistory(ctx context.Context, args []string) error {
	limit, err := parseHistoryArgs(args)
	if err != nil {
		if errors.Is(err, errHelp) {
			c.printHistoryHelp()
		}
		return err
	}

	env, _, err := c.setup(ctx)
	if err != nil {
		return err
	}

	jobs, err := job.NewJournal(env.cfg.JournalDir()).List()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(c.stdout, "No write jobs recorded.")
		return nil
	}
	if limit > 0 {
		jobs = lo.Slice(jobs, 0, limit)
	}

	for _, wj := range jobs {
		printJob(c.stdout, wj)
	}
	return nil
}

func printJob(w io.Writer, wj *job.WriteJob) {
	fmt.Fprintf(w, "%s  %-8s %s on %s (%s)\n",
		wj.Timestamp.Local().Format(time.DateTime), wj.Outcome, wj.Media.Label(), wj.Target.Path, wj.Target.Description())
	if wj.Image != nil {
		fmt.Fprintf(w, "    image: %s (%s)\n", wj.Image.Path, wj.Image.HumanSize())
	}
	if wj.FailureDetail != "" {
		fmt.Fprintf(w, "    cause: %s\n", wj.FailureDetail)
	}
	fmt.Fprintf(w, "    job:   %s\n", wj.ID)
}

func (c *cli) printHistoryHelp() {
	fmt.Fprintln(c.stdout, "Usage: bootstick history [options]")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Show recorded write jobs, newest first.")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Options:")
	fmt.Fprintf(c.stdout, "  -n, --limit N   Show at most N jobs (default %d, 0 for all)\n", defaultHistoryLimit)
	fmt.Fprintln(c.stdout, "  -h, --help      Show this help message")
}
