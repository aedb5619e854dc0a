// Package device enumerates block devices visible to the OS.
//
// Devices are discovered with lsblk, the removable attribute is read from
// sysfs, and mount points are merged from lsblk and the host mount table
// (gopsutil). Every query returns fresh, read-only snapshots.
package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"
)

// Transport is the bus a device is attached through.
type Transport string

const (
	TransportUSB   Transport = "usb"
	TransportSATA  Transport = "sata"
	TransportNVMe  Transport = "nvme"
	TransportOther Transport = "other"
)

// ParseTransport maps lsblk TRAN values onto the known transports.
func ParseTransport(tran string) Transport {
	switch strings.ToLower(strings.TrimSpace(tran)) {
	case "usb":
		return TransportUSB
	case "sata", "ata":
		return TransportSATA
	case "nvme":
		return TransportNVMe
	default:
		return TransportOther
	}
}

// BlockDevice is a snapshot of one physical storage device.
type BlockDevice struct {
	// Path is the identifier, e.g. /dev/sdb.
	Path string `json:"path"`
	// KernelName is the sysfs name, e.g. sdb.
	KernelName string    `json:"kernel_name"`
	Size       uint64    `json:"size"`
	Model      string    `json:"model,omitempty"`
	Vendor     string    `json:"vendor,omitempty"`
	Transport  Transport `json:"transport"`
	// Removable holds the raw sysfs removable attribute; empty when unreadable.
	Removable   string   `json:"removable"`
	Hotplug     bool     `json:"hotplug"`
	Type        string   `json:"type"`
	MountPoints []string `json:"mount_points,omitempty"`
}

// IsRemovable reports whether the OS affirmatively flags the device removable.
func (d BlockDevice) IsRemovable() bool {
	return strings.TrimSpace(d.Removable) == "1"
}

// HumanSize formats the device capacity.
func (d BlockDevice) HumanSize() string {
	return FormatSize(d.Size)
}

// Description is a one-line vendor/model label.
func (d BlockDevice) Description() string {
	label := strings.TrimSpace(strings.TrimSpace(d.Vendor) + " " + strings.TrimSpace(d.Model))
	if label == "" {
		return "unknown model"
	}
	return label
}

// FormatSize renders a byte count as a human readable size.
func FormatSize(bytes uint64) string {
	return datasize.ByteSize(bytes).HumanReadable()
}

// ErrDeviceNotFound is returned when a device is no longer present.
var ErrDeviceNotFound = errors.New("device not found")

// QueryError reports that the OS device query mechanism failed.
// Nothing can safely be offered to the operator when this happens.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("device query failed (%s): %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
