package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/config"
)

type configInitOptions struct {
	force  bool
	stdout bool
}

func parseConfigInitArgs(args []string) (configInitOptions, error) {
	var opts configInitOptions
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			return opts, errHelp
		case "--force", "-f":
			opts.force = true
		case "--stdout":
			opts.stdout = true
		default:
			return opts, fmt.Errorf("unknown option: %s\nRun 'bootstick config init --help' for usage", arg)
		}
	}
	return opts, nil
}

// runConfigInit handles the `bootstick config init` subcommand. It does not
// load the existing config, so it also repairs a broken one with --force.
func (c *cli) runConfigInit(_ context.Context, args []string) error {
	opts, err := parseConfigInitArgs(args)
	if err != nil {
		if errors.Is(err, errHelp) {
			c.printConfigInitHelp()
		}
		return err
	}

	content, err := config.NewGenerator().Generate(config.Default())
	if err != nil {
		return fmt.Errorf("generate config: %w", err)
	}

	if opts.stdout {
		fmt.Fprint(c.stdout, content)
		return nil
	}

	if err := config.LoadEnvFile(c.envFile); err != nil {
		return err
	}
	op, err := c.currentOperator()
	if err != nil {
		return err
	}
	path := config.ConfigPath(op.Home)

	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := writeFileAtomic(path, []byte(content), 0644); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Wrote default configuration to %s\n", path)
	return nil
}

// writeFileAtomic replaces path through a temporary file in the same
// directory.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.lua")
	if err != nil {
		return fmt.Errorf("create temporary config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temporary config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary config: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("set config permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("install config: %w", err)
	}
	return nil
}

func (c *cli) printConfigInitHelp() {
	fmt.Fprintln(c.stdout, "Usage: bootstick config init [options]")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Write the default configuration to $BOOTSTICK_CONFIG or ~/.config/bootstick/config.lua.")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Options:")
	fmt.Fprintln(c.stdout, "  -f, --force   Overwrite an existing file")
	fmt.Fprintln(c.stdout, "      --stdout  Print the configuration instead of writing it")
	fmt.Fprintln(c.stdout, "  -h, --help    Show this help message")
}
