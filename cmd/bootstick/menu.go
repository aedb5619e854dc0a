package main

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/job"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/prompt"
)

const (
	menuExit    = 0
	menuCreate  = 1
	menuUpdates = 2
)

var errMenuExit = fmt.Errorf("exit selected: %w", prompt.ErrCancelled)

// mediaOptions numbers job.AllMedia from 1, with 0 to exit.
var mediaOptions = append(
	lo.Map(job.AllMedia, func(m job.Media, i int) prompt.Option {
		return prompt.Option{Key: i + 1, Label: m.Label()}
	}),
	prompt.Option{Key: menuExit, Label: "Exit"},
)

// runMenu drives the interactive top-level menu.
func (c *cli) runMenu(ctx context.Context) error {
	env, ctx, err := c.setup(ctx)
	if err != nil {
		return err
	}
	c.warnIfNotInteractive()

	console := c.console(env)
	fmt.Fprintf(c.stdout, "bootstick %s\n", Version)

	for {
		choice, err := console.Menu("What would you like to do?", []prompt.Option{
			{Key: menuCreate, Label: "Create bootable USB media"},
			{Key: menuUpdates, Label: "Check for updates"},
			{Key: menuExit, Label: "Exit"},
		})
		if err != nil {
			return err
		}

		switch choice {
		case menuExit:
			return nil
		case menuUpdates:
			fmt.Fprintf(c.stdout, "You are running bootstick %s. Updates are delivered through your package manager.\n", Version)
		case menuCreate:
			if err := env.operator.RequireElevated(); err != nil {
				return err
			}
			media, err := chooseMedia(console)
			if err != nil {
				return err
			}
			return c.createMedia(ctx, env, console, createOptions{media: media})
		}
	}
}

// chooseMedia asks which kind of media to create.
func chooseMedia(console *prompt.Console) (job.Media, error) {
	choice, err := console.Menu("Which media do you want to create?", mediaOptions)
	if err != nil {
		return "", err
	}
	if choice == menuExit {
		return "", errMenuExit
	}
	return job.AllMedia[choice-1], nil
}
