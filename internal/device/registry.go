package device

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/runner"
)

// DefaultSysfsRoot is where the kernel exposes block device attributes.
const DefaultSysfsRoot = "/sys"

// Registry queries the OS for block devices.
type Registry struct {
	runner    runner.Runner
	mounts    MountLister
	lsblk     string
	sysfsRoot string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLsblk overrides the lsblk executable.
func WithLsblk(path string) Option {
	return func(r *Registry) { r.lsblk = path }
}

// WithSysfsRoot points attribute reads at another sysfs tree.
func WithSysfsRoot(root string) Option {
	return func(r *Registry) { r.sysfsRoot = root }
}

// NewRegistry creates a registry. mounts may be nil to rely on lsblk alone.
func NewRegistry(run runner.Runner, mounts MountLister, opts ...Option) *Registry {
	r := &Registry{
		runner:    run,
		mounts:    mounts,
		lsblk:     "lsblk",
		sysfsRoot: DefaultSysfsRoot,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListUSBCandidates returns every disk whose transport is USB, in the order
// the OS reports them.
func (r *Registry) ListUSBCandidates(ctx context.Context) ([]BlockDevice, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(d BlockDevice, _ int) bool {
		return d.Transport == TransportUSB
	}), nil
}

// ListAll returns every disk regardless of transport.
func (r *Registry) ListAll(ctx context.Context) ([]BlockDevice, error) {
	return r.query(ctx)
}

// Resolve re-reads a single device by identifier.
func (r *Registry) Resolve(ctx context.Context, path string) (BlockDevice, error) {
	devices, err := r.query(ctx, path)
	if err != nil {
		return BlockDevice{}, err
	}
	for _, d := range devices {
		if d.Path == path {
			return d, nil
		}
	}
	return BlockDevice{}, &QueryError{Op: "resolve " + path, Err: ErrDeviceNotFound}
}

func (r *Registry) query(ctx context.Context, paths ...string) ([]BlockDevice, error) {
	log := logger.FromContext(ctx)

	cmd := runner.Command{Name: r.lsblk, Args: lsblkArgs(paths...)}
	out, err := r.runner.Run(ctx, cmd)
	if err != nil {
		return nil, &QueryError{Op: "lsblk", Err: err}
	}
	if err := out.Err(cmd); err != nil {
		// lsblk exits non-zero for a path that is not a block device.
		if len(paths) > 0 {
			return nil, &QueryError{Op: "lsblk " + strings.Join(paths, " "), Err: ErrDeviceNotFound}
		}
		return nil, &QueryError{Op: "lsblk", Err: err}
	}

	nodes, err := parseLsblk(out.Combined)
	if err != nil {
		return nil, &QueryError{Op: "lsblk", Err: err}
	}

	var table []Mount
	if r.mounts != nil {
		table, err = r.mounts.Mounts(ctx)
		if err != nil {
			// lsblk mount points are still available; the filter fails
			// closed on whatever is known.
			log.Warn("host mount table unavailable", "error", err)
		}
	}

	devices := make([]BlockDevice, 0, len(nodes))
	for _, node := range nodes {
		dev := node.blockDevice()
		dev.Removable = r.readRemovable(dev.KernelName)
		dev.MountPoints = mergeMounts(dev.MountPoints, node.sources(), table)
		log.Debug("found block device",
			"path", dev.Path,
			"transport", dev.Transport,
			"removable", dev.Removable,
			"mounts", strings.Join(dev.MountPoints, ","))
		devices = append(devices, dev)
	}
	return devices, nil
}

// readRemovable returns the raw sysfs removable attribute, or "" on any error.
func (r *Registry) readRemovable(kname string) string {
	data, err := os.ReadFile(filepath.Join(r.sysfsRoot, "block", kname, "removable"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// mergeMounts adds host mount table entries whose source is one of the
// device's nodes and removes duplicates.
func mergeMounts(known []string, sources []string, table []Mount) []string {
	merged := append([]string(nil), known...)
	for _, m := range table {
		if lo.Contains(sources, m.Source) && m.MountPoint != "" {
			merged = append(merged, m.MountPoint)
		}
	}
	return lo.Uniq(merged)
}
