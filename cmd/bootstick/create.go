package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/backend"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/image"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/job"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/prompt"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/selection"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/service"
)

// createOptions holds the parsed `bootstick create` flags.
type createOptions struct {
	media job.Media // empty asks through the media menu
	image string
}

func parseCreateArgs(args []string) (createOptions, error) {
	var opts createOptions

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")

		switch name {
		case "--help", "-h":
			return opts, errHelp
		case "--type", "-t", "--image", "-i":
			if !hasValue {
				if i+1 >= len(args) {
					return opts, fmt.Errorf("%s requires a value", name)
				}
				i++
				value = args[i]
			}
			if name == "--type" || name == "-t" {
				media, err := job.ParseMedia(value)
				if err != nil {
					return opts, err
				}
				opts.media = media
			} else {
				opts.image = value
			}
		default:
			return opts, fmt.Errorf("unknown option: %s\nRun 'bootstick create --help' for usage", arg)
		}
	}

	if opts.image != "" && opts.media == job.MediaMultiboot {
		return opts, fmt.Errorf("--image cannot be used with --type %s", job.MediaMultiboot)
	}
	return opts, nil
}

// runCreate handles the `bootstick create` subcommand.
func (c *cli) runCreate(ctx context.Context, args []string) error {
	opts, err := parseCreateArgs(args)
	if err != nil {
		if errors.Is(err, errHelp) {
			c.printCreateHelp()
		}
		return err
	}

	env, ctx, err := c.setup(ctx)
	if err != nil {
		return err
	}
	if err := env.operator.RequireElevated(); err != nil {
		return err
	}
	c.warnIfNotInteractive()

	console := c.console(env)
	if opts.media == "" {
		opts.media, err = chooseMedia(console)
		if err != nil {
			return err
		}
	}
	return c.createMedia(ctx, env, console, opts)
}

// createMedia wires the workflow from configuration and runs it.
func (c *cli) createMedia(ctx context.Context, env *environment, console *prompt.Console, opts createOptions) error {
	cfg := env.cfg
	registry := c.registry(env)

	var integrity *image.Integrity
	if cfg.Image.Checksum || cfg.Image.Keyring != "" {
		integrity = image.NewIntegrity(cfg.Image.Checksum, cfg.Image.Keyring)
	}
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	dispatcher := backend.NewDispatcher(registry, c.runner, cfg.Tools.Umount, nil,
		backend.NewRawCopy(c.runner, backend.RawCopyOptions{
			DD:        cfg.Tools.DD,
			Sync:      cfg.Tools.Sync,
			BlockSize: cfg.Write.BlockSize.Bytes(),
			Method:    backend.Method(cfg.Write.Method),
			Stream:    c.stdout,
		}),
		backend.NewWindows(c.runner, cfg.Tools.WindowsInstaller, c.stdout),
		backend.NewMultiboot(c.runner, cfg.Tools.MultibootInstaller, c.stdout),
	).WithGuard(c.policy(env))

	svc := service.NewCreateMediaService(service.CreateMediaDeps{
		Operator:          env.operator,
		Devices:           registry,
		Policy:            c.policy(env),
		Selector:          selection.New(console, cfg.Prompt.ConfirmToken),
		Verifier:          image.NewVerifier(image.NewFileClassifier(c.runner, cfg.Tools.File), integrity, env.operator.Home, workDir),
		Dispatcher:        dispatcher,
		Journal:           job.NewJournal(cfg.JournalDir()),
		Console:           console,
		Clock:             service.RealClock{},
		LockDir:           cfg.StateDir,
		CapacityWarnRatio: cfg.Write.CapacityWarnRatio,
		MaxRetries:        cfg.Prompt.MaxRetries,
	})

	summary, err := svc.Execute(ctx, service.CreateRequest{Media: opts.media, ImagePath: opts.image})
	if summary != nil {
		fmt.Fprintln(c.stdout)
		fmt.Fprint(c.stdout, summary.String())
	}
	if err != nil && summary == nil {
		return fmt.Errorf("%s media: %w", opts.media.Label(), err)
	}
	return err
}

func (c *cli) printCreateHelp() {
	fmt.Fprintln(c.stdout, "Usage: bootstick create [options]")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Write an image to a removable USB device. Requires root.")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Options:")
	fmt.Fprintln(c.stdout, "  -t, --type TYPE    linux, windows, multiboot or custom (menu when omitted)")
	fmt.Fprintln(c.stdout, "  -i, --image PATH   Image to write (prompted when omitted)")
	fmt.Fprintln(c.stdout, "  -h, --help         Show this help message")
}
