package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/samber/lo"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/safety"
)

// runDevices handles the `bootstick devices` subcommand.
func (c *cli) runDevices(ctx context.Context, args []string) error {
	all := false
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			c.printDevicesHelp()
			return errHelp
		case "--all", "-a":
			all = true
		default:
			return fmt.Errorf("unknown option: %s\nRun 'bootstick devices --help' for usage", arg)
		}
	}

	env, ctx, err := c.setup(ctx)
	if err != nil {
		return err
	}

	registry := c.registry(env)
	var devices []device.BlockDevice
	if all {
		devices, err = registry.ListAll(ctx)
	} else {
		devices, err = registry.ListUSBCandidates(ctx)
	}
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Fprintln(c.stdout, "No USB block devices found.")
		if !all {
			fmt.Fprintln(c.stdout, "Run 'bootstick devices --all' to list every disk.")
		}
		return nil
	}

	verdicts := c.policy(env).Filter(devices)
	printVerdicts(c.stdout, verdicts)

	eligible := lo.CountBy(verdicts, safety.Verdict.IsEligible)
	fmt.Fprintf(c.stdout, "\n%d of %d device(s) eligible.\n", eligible, len(verdicts))
	return nil
}

func printVerdicts(w io.Writer, verdicts []safety.Verdict) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tSIZE\tTRANSPORT\tREMOVABLE\tMODEL\tVERDICT")
	for _, v := range verdicts {
		d := v.Device
		verdict := string(v.Outcome)
		if !v.IsEligible() {
			verdict = fmt.Sprintf("%s (%s: %s)", v.Outcome, v.Reason, v.Detail)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Path, d.HumanSize(), orDash(string(d.Transport)), orDash(d.Removable), orDash(d.Description()), verdict)
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (c *cli) printDevicesHelp() {
	fmt.Fprintln(c.stdout, "Usage: bootstick devices [options]")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "List block devices with the safety filter's verdict for each.")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Options:")
	fmt.Fprintln(c.stdout, "  -a, --all     Include non-USB disks")
	fmt.Fprintln(c.stdout, "  -h, --help    Show this help message")
}
