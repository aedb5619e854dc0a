package platform

import (
	"errors"
	"fmt"
	"os"
	"os/user"
)

// ErrNotPrivileged is returned when raw device access requires root.
var ErrNotPrivileged = errors.New("root privileges are required to write to block devices (re-run with sudo)")

// Operator is the person on whose behalf the process runs.
type Operator struct {
	// EUID is the effective user ID of the process.
	EUID int
	// SudoUser is the account that invoked sudo, if any.
	SudoUser string
	// Home is the operator's home directory: the sudo caller's when
	// elevated on behalf of another account.
	Home string
}

// Elevated reports whether the process runs as root.
func (o *Operator) Elevated() bool {
	return o.EUID == 0
}

// RequireElevated returns ErrNotPrivileged unless running as root.
func (o *Operator) RequireElevated() error {
	if !o.Elevated() {
		return ErrNotPrivileged
	}
	return nil
}

// LookupFunc resolves an account name.
type LookupFunc func(name string) (*user.User, error)

// CurrentOperator inspects the running process.
func CurrentOperator() (*Operator, error) {
	return ResolveOperator(os.Geteuid(), os.Getenv("SUDO_USER"), user.Lookup, os.UserHomeDir)
}

// ResolveOperator builds an Operator from raw process facts. When running
// elevated through sudo the caller's home is used; a failed lookup falls
// back to the process home.
func ResolveOperator(euid int, sudoUser string, lookup LookupFunc, processHome func() (string, error)) (*Operator, error) {
	op := &Operator{EUID: euid}

	if euid == 0 && sudoUser != "" && sudoUser != "root" {
		op.SudoUser = sudoUser
		if u, err := lookup(sudoUser); err == nil && u.HomeDir != "" {
			op.Home = u.HomeDir
			return op, nil
		}
	}

	home, err := processHome()
	if err != nil {
		return nil, fmt.Errorf("determine home directory: %w", err)
	}
	op.Home = home
	return op, nil
}
