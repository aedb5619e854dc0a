package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// lsblkColumns is the column set requested from lsblk.
const lsblkColumns = "NAME,KNAME,SIZE,MODEL,VENDOR,TRAN,HOTPLUG,TYPE,MOUNTPOINT"

// lsblkArgs builds the lsblk argument list, optionally restricted to devices.
func lsblkArgs(devices ...string) []string {
	args := []string{"-J", "-b", "-p", "-o", lsblkColumns}
	return append(args, devices...)
}

// lsblkFlag accepts the boolean dialects of different lsblk releases:
// JSON booleans, "0"/"1" strings and null.
type lsblkFlag bool

func (f *lsblkFlag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", `"1"`, "1":
		*f = true
	case "false", `"0"`, "0", "null", `""`:
		*f = false
	default:
		return fmt.Errorf("unexpected lsblk flag value %s", data)
	}
	return nil
}

// lsblkSize accepts sizes emitted either as numbers or as strings.
type lsblkSize uint64

func (s *lsblkSize) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("unexpected lsblk size %s: %w", data, err)
	}
	*s = lsblkSize(n)
	return nil
}

type lsblkDevice struct {
	Name        string         `json:"name"`
	KName       string         `json:"kname"`
	Size        lsblkSize      `json:"size"`
	Model       *string        `json:"model"`
	Vendor      *string        `json:"vendor"`
	Tran        *string        `json:"tran"`
	Hotplug     lsblkFlag      `json:"hotplug"`
	Type        string         `json:"type"`
	MountPoint  *string        `json:"mountpoint"`
	MountPoints []*string      `json:"mountpoints"`
	Children    []*lsblkDevice `json:"children"`
}

type lsblkOutput struct {
	BlockDevices []*lsblkDevice `json:"blockdevices"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// mounts collects the mount points of a node and all of its descendants.
func (d *lsblkDevice) mounts() []string {
	var out []string
	if mp := deref(d.MountPoint); mp != "" {
		out = append(out, mp)
	}
	for _, mp := range d.MountPoints {
		if v := deref(mp); v != "" {
			out = append(out, v)
		}
	}
	for _, child := range d.Children {
		out = append(out, child.mounts()...)
	}
	return out
}

// sources returns the device path and every descendant path.
func (d *lsblkDevice) sources() []string {
	out := []string{d.Name}
	for _, child := range d.Children {
		out = append(out, child.sources()...)
	}
	return out
}

func (d *lsblkDevice) blockDevice() BlockDevice {
	kname := d.KName
	if kname == "" {
		kname = d.Name
	}
	return BlockDevice{
		Path:        d.Name,
		KernelName:  filepath.Base(kname),
		Size:        uint64(d.Size),
		Model:       deref(d.Model),
		Vendor:      deref(d.Vendor),
		Transport:   ParseTransport(deref(d.Tran)),
		Hotplug:     bool(d.Hotplug),
		Type:        d.Type,
		MountPoints: d.mounts(),
	}
}

// parseLsblk parses `lsblk -J` output into top-level disk nodes.
func parseLsblk(out []byte) ([]*lsblkDevice, error) {
	var objmap map[string]json.RawMessage
	if err := json.Unmarshal(out, &objmap); err != nil {
		return nil, fmt.Errorf("parse lsblk output: %w", err)
	}

	raw, ok := objmap["blockdevices"]
	if !ok {
		return nil, errors.New("invalid lsblk output: no 'blockdevices' key found")
	}

	var devices []*lsblkDevice
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, fmt.Errorf("parse lsblk devices: %w", err)
	}

	disks := make([]*lsblkDevice, 0, len(devices))
	for _, dev := range devices {
		if dev == nil || dev.Type != "disk" {
			continue
		}
		disks = append(disks, dev)
	}
	return disks, nil
}
