// Package platform describes the host bootstick runs on and the operator
// who invoked it.
//
// Host details (OS, architecture, Linux distribution via gopsutil) are
// exposed to Lua configs as a read-only table. Operator details decide
// whether the process may touch raw devices and whose home directory
// relative paths expand against.
package platform

import "context"

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains host detection results.
type Info struct {
	OS       string // "linux", "darwin"
	Arch     string // normalized, e.g. "amd64"
	ArchRaw  string // runtime.GOARCH
	Platform string // distro ID (Linux only, e.g. "debian")
	Family   string // canonical family
	Version  string // distro version (Linux only, e.g. "12.5")
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsDebianFamily returns true if the Linux distribution is Debian-based.
func (i *Info) IsDebianFamily() bool {
	return i.IsLinux() && i.Family == FamilyDebian
}

// HasDistro reports whether distribution details were detected.
func (i *Info) HasDistro() bool {
	return i.IsLinux() && i.Platform != ""
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns fixed information. Tests and `config init`
// use it where the real host does not matter.
type StaticDetector struct {
	Info *Info
	Err  error
}

// Detect returns the configured info and error.
func (s StaticDetector) Detect(context.Context) (*Info, error) {
	return s.Info, s.Err
}
