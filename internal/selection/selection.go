// Package selection obtains operator confirmation for one target device.
//
// Friction grows with ambiguity: a lone candidate needs a plain yes, while
// choosing among several requires typing an exact confirmation token.
package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/prompt"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/safety"
)

// DefaultConfirmToken must be typed verbatim when several devices are offered.
const DefaultConfirmToken = "ERASE"

// ErrSelectionCancelled is returned when the operator declines.
var ErrSelectionCancelled = fmt.Errorf("device selection cancelled: %w", prompt.ErrCancelled)

// Console is the subset of prompt.Console the protocol needs.
type Console interface {
	Printf(format string, args ...any)
	Confirm(question string) (bool, error)
	ConfirmToken(question, token string) (bool, error)
	Index(label string, n int) (int, error)
}

// Protocol runs the confirmation dialogue.
type Protocol struct {
	console Console
	token   string
}

// New creates a protocol. An empty token selects DefaultConfirmToken.
func New(console Console, token string) *Protocol {
	if token == "" {
		token = DefaultConfirmToken
	}
	return &Protocol{console: console, token: token}
}

// Select returns the one device the operator confirmed.
func (p *Protocol) Select(ctx context.Context, candidates []device.BlockDevice) (device.BlockDevice, error) {
	log := logger.FromContext(ctx)

	switch len(candidates) {
	case 0:
		return device.BlockDevice{}, safety.ErrNoEligibleDevice
	case 1:
		d := candidates[0]
		p.console.Printf("\nFound one eligible USB device:\n")
		p.printDetail(d)
		ok, err := p.console.Confirm(fmt.Sprintf("Use %s? ALL DATA ON IT WILL BE ERASED.", d.Path))
		if err != nil {
			return device.BlockDevice{}, cancelled(err)
		}
		if !ok {
			log.Debug("single device declined", "device", d.Path)
			return device.BlockDevice{}, ErrSelectionCancelled
		}
		log.Debug("single device confirmed", "device", d.Path)
		return d, nil
	}

	p.console.Printf("\nFound %d eligible USB devices:\n", len(candidates))
	for i, d := range candidates {
		p.console.Printf("  %d) %s  %s  %s\n", i+1, d.Path, d.HumanSize(), d.Description())
	}

	idx, err := p.console.Index("Select a device", len(candidates))
	if err != nil {
		return device.BlockDevice{}, cancelled(err)
	}
	d := candidates[idx-1]

	p.console.Printf("\nYou selected:\n")
	p.printDetail(d)
	p.console.Printf("WARNING: several removable devices are attached. Double-check that %s is the right one.\n", d.Path)

	ok, err := p.console.ConfirmToken(fmt.Sprintf("Every partition on %s will be destroyed.", d.Path), p.token)
	if err != nil {
		return device.BlockDevice{}, cancelled(err)
	}
	if !ok {
		log.Debug("confirmation token mismatch", "device", d.Path)
		return device.BlockDevice{}, ErrSelectionCancelled
	}
	log.Debug("device confirmed with token", "device", d.Path)
	return d, nil
}

func (p *Protocol) printDetail(d device.BlockDevice) {
	p.console.Printf("  Device: %s\n", d.Path)
	p.console.Printf("  Size:   %s (%d bytes)\n", d.HumanSize(), d.Size)
	p.console.Printf("  Model:  %s\n", orUnknown(d.Model))
	p.console.Printf("  Vendor: %s\n", orUnknown(d.Vendor))
	if len(d.MountPoints) > 0 {
		p.console.Printf("  Mounted at: %v (will be unmounted)\n", d.MountPoints)
	}
}

// cancelled folds end-of-input into ErrSelectionCancelled and passes
// everything else through.
func cancelled(err error) error {
	if errors.Is(err, prompt.ErrCancelled) {
		return ErrSelectionCancelled
	}
	return err
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
