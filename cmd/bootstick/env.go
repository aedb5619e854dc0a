package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/config"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/platform"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/prompt"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/safety"
)

const defaultEnvFile = config.DefaultEnvFile

// environment is the resolved per-invocation setup shared by subcommands.
type environment struct {
	cfg      *config.Config
	operator *platform.Operator
}

// setup loads the env file and config, then installs the configured logger
// in the returned context.
func (c *cli) setup(ctx context.Context) (*environment, context.Context, error) {
	if err := config.LoadEnvFile(c.envFile); err != nil {
		return nil, ctx, err
	}

	op, err := c.currentOperator()
	if err != nil {
		return nil, ctx, err
	}

	cfg, err := config.Load(ctx, config.ConfigPath(op.Home), c.detector)
	if err != nil {
		var parseErr *config.ParseError
		if errors.As(err, &parseErr) {
			return nil, ctx, fmt.Errorf("load config: %s", config.FormatError(parseErr, false))
		}
		return nil, ctx, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(c.stderr, cfg.Log.Level)
	if err != nil {
		return nil, ctx, err
	}
	ctx = logger.AddToContext(ctx, log)
	log.Debug("configuration ready",
		"state_dir", cfg.StateDir,
		"sysfs", cfg.SysfsRoot,
		"euid", op.EUID,
		"sudo_user", op.SudoUser)

	return &environment{cfg: cfg, operator: op}, ctx, nil
}

func (c *cli) registry(env *environment) *device.Registry {
	return device.NewRegistry(c.runner, c.mounts,
		device.WithLsblk(env.cfg.Tools.Lsblk),
		device.WithSysfsRoot(env.cfg.SysfsRoot))
}

func (c *cli) policy(env *environment) safety.Policy {
	return safety.DefaultPolicy().WithExtraPrefixes(env.cfg.Safety.ProtectedMounts...)
}

func (c *cli) console(env *environment) *prompt.Console {
	return prompt.New(c.stdin, c.stdout, env.cfg.Prompt.MaxRetries)
}

// warnIfNotInteractive flags piped input, where every prompt answer comes
// from a script rather than a person looking at the device list.
func (c *cli) warnIfNotInteractive() {
	f, ok := c.stdin.(*os.File)
	if !ok || term.IsTerminal(int(f.Fd())) {
		return
	}
	fmt.Fprintln(c.stderr, "Warning: standard input is not a terminal; confirmations are read from it verbatim.")
}
