// Package safety decides which block devices are provably safe to erase.
//
// The filter fails closed: a device is eligible only when every check
// affirmatively passes. Missing or unreadable attributes exclude the device.
package safety

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
)

// ErrNoEligibleDevice is returned when no device survives the filter.
var ErrNoEligibleDevice = errors.New("no eligible removable USB device found")

// Outcome is the filter's decision for one device.
type Outcome string

const (
	Eligible Outcome = "eligible"
	Excluded Outcome = "excluded"
)

// Reason explains an exclusion.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNonUSBTransport  Reason = "non-usb-transport"
	ReasonNotRemovable     Reason = "not-removable"
	ReasonSystemMountpoint Reason = "system-mountpoint-detected"
)

// Verdict is the judgment on one device.
type Verdict struct {
	Device  device.BlockDevice
	Outcome Outcome
	Reason  Reason
	Detail  string
}

// IsEligible reports whether the device may be offered to the operator.
func (v Verdict) IsEligible() bool {
	return v.Outcome == Eligible
}

// nvmePattern matches NVMe namespaces, which are never removable media.
var nvmePattern = regexp.MustCompile(`(^|/)nvme\d+n\d+`)

// DefaultProtectedPrefixes are mount prefixes that indicate a live system.
var DefaultProtectedPrefixes = []string{"/boot", "/home", "/usr"}

// Policy holds the mount prefixes that mark a device as backing the system.
type Policy struct {
	ProtectedPrefixes []string
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{ProtectedPrefixes: append([]string(nil), DefaultProtectedPrefixes...)}
}

// WithExtraPrefixes returns a policy protecting additional prefixes.
// The defaults are always kept.
func (p Policy) WithExtraPrefixes(extra ...string) Policy {
	merged := append(append([]string(nil), p.ProtectedPrefixes...), extra...)
	merged = append(merged, DefaultProtectedPrefixes...)
	cleaned := lo.Map(merged, func(prefix string, _ int) string {
		return filepath.Clean(prefix)
	})
	return Policy{ProtectedPrefixes: lo.Uniq(cleaned)}
}

// Filter judges each device in input order.
func (p Policy) Filter(devices []device.BlockDevice) []Verdict {
	return lo.Map(devices, func(d device.BlockDevice, _ int) Verdict {
		return p.Judge(d)
	})
}

// Judge decides a single device.
func (p Policy) Judge(d device.BlockDevice) Verdict {
	if nvmePattern.MatchString(d.Path) || nvmePattern.MatchString(d.KernelName) {
		return excluded(d, ReasonNonUSBTransport, "NVMe namespace")
	}
	if d.Transport != device.TransportUSB {
		return excluded(d, ReasonNonUSBTransport, fmt.Sprintf("transport is %s", d.Transport))
	}

	if !d.IsRemovable() {
		attr := d.Removable
		if attr == "" {
			attr = "unreadable"
		}
		return excluded(d, ReasonNotRemovable, fmt.Sprintf("removable attribute is %s", attr))
	}

	if mp, ok := p.systemMount(d.MountPoints); ok {
		return excluded(d, ReasonSystemMountpoint, fmt.Sprintf("mounted at %s", mp))
	}

	return Verdict{Device: d, Outcome: Eligible}
}

// systemMount returns the first mount point that is / or under a protected prefix.
func (p Policy) systemMount(mounts []string) (string, bool) {
	for _, mp := range mounts {
		if mp == "/" {
			return mp, true
		}
		for _, prefix := range p.ProtectedPrefixes {
			if strings.HasPrefix(mp, prefix) {
				return mp, true
			}
		}
	}
	return "", false
}

func excluded(d device.BlockDevice, reason Reason, detail string) Verdict {
	return Verdict{Device: d, Outcome: Excluded, Reason: reason, Detail: detail}
}

// EligibleDevices returns the eligible devices in input order.
func EligibleDevices(verdicts []Verdict) []device.BlockDevice {
	eligible := lo.Filter(verdicts, func(v Verdict, _ int) bool {
		return v.IsEligible()
	})
	return lo.Map(eligible, func(v Verdict, _ int) device.BlockDevice {
		return v.Device
	})
}

// ExcludedVerdicts returns the excluded verdicts in input order.
func ExcludedVerdicts(verdicts []Verdict) []Verdict {
	return lo.Reject(verdicts, func(v Verdict, _ int) bool {
		return v.IsEligible()
	})
}
