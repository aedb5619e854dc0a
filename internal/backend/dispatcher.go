package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/image"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/job"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/runner"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/safety"
)

// Resolver re-reads a device by identifier.
type Resolver interface {
	Resolve(ctx context.Context, path string) (device.BlockDevice, error)
}

// Guard re-judges the resolved device just before writing.
type Guard interface {
	Judge(d device.BlockDevice) safety.Verdict
}

// Dispatcher routes confirmed jobs to their backend.
type Dispatcher struct {
	resolver Resolver
	runner   runner.Runner
	umount   string
	backends map[job.BackendKind]Backend
	guard    Guard
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. An empty umount means "umount".
func NewDispatcher(resolver Resolver, run runner.Runner, umount string, now func() time.Time, backends ...Backend) *Dispatcher {
	if umount == "" {
		umount = "umount"
	}
	if now == nil {
		now = time.Now
	}
	d := &Dispatcher{
		resolver: resolver,
		runner:   run,
		umount:   umount,
		backends: make(map[job.BackendKind]Backend, len(backends)),
		now:      now,
	}
	for _, b := range backends {
		d.backends[b.Kind()] = b
	}
	return d
}

// WithGuard makes Dispatch refuse a re-resolved device the guard excludes.
func (d *Dispatcher) WithGuard(g Guard) *Dispatcher {
	d.guard = g
	return d
}

// Precheck runs the backend's checks that need no process. Backends
// without checks always pass.
func (d *Dispatcher) Precheck(kind job.BackendKind, target device.BlockDevice, img *image.Spec) error {
	backend, ok := d.backends[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
	if p, ok := backend.(Prechecker); ok {
		return p.Precheck(target, img)
	}
	return nil
}

// Dispatch runs the job's backend and records the outcome on the job.
// There is no automatic retry. The returned error is nil exactly when the
// job succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, wj *job.WriteJob) error {
	log := logger.FromContext(ctx).With("job", wj.ID, "backend", wj.Backend, "device", wj.Target.Path)

	if wj.Outcome != job.OutcomePending {
		return fmt.Errorf("dispatch job %s: %w", wj.ID, job.ErrAlreadyFinished)
	}

	backend, ok := d.backends[wj.Backend]
	if !ok {
		return d.fail(wj, nil, fmt.Errorf("%w: %s", ErrUnknownBackend, wj.Backend))
	}

	current, err := d.resolver.Resolve(ctx, wj.Target.Path)
	if err != nil {
		return d.fail(wj, nil, fmt.Errorf("re-resolve %s: %w", wj.Target.Path, err))
	}
	if err := sameDevice(wj.Target, current); err != nil {
		return d.fail(wj, nil, err)
	}
	if d.guard != nil {
		if v := d.guard.Judge(current); !v.IsEligible() {
			return d.fail(wj, nil, fmt.Errorf("%w: %s: %s (%s)", ErrTargetIneligible, current.Path, v.Reason, v.Detail))
		}
	}
	if err := d.Precheck(wj.Backend, current, wj.Image); err != nil {
		return d.fail(wj, nil, err)
	}

	if err := d.unmount(ctx, current.MountPoints); err != nil {
		return d.fail(wj, nil, err)
	}

	log.Info("starting write")
	result, err := backend.Write(ctx, current, wj.Image)
	if err != nil {
		return d.fail(wj, result, err)
	}
	if result == nil {
		return d.fail(wj, nil, fmt.Errorf("%s reported no result", wj.Backend))
	}
	if !result.Success {
		return d.fail(wj, result, &ExecutionError{Backend: wj.Backend, Result: *result})
	}

	if err := wj.Succeed(*result, d.now()); err != nil {
		return err
	}
	log.Info("write finished", "exit", result.ExitCode)
	return nil
}

// sameDevice reports ErrTargetChanged when the node now belongs to another
// device.
func sameDevice(want, got device.BlockDevice) error {
	switch {
	case got.Size != want.Size:
		return fmt.Errorf("%w: %s size is %d bytes, expected %d", ErrTargetChanged, want.Path, got.Size, want.Size)
	case got.Vendor != want.Vendor || got.Model != want.Model:
		return fmt.Errorf("%w: %s is now %q, expected %q", ErrTargetChanged, want.Path, got.Description(), want.Description())
	}
	return nil
}

// unmount releases every mount point, deepest first.
func (d *Dispatcher) unmount(ctx context.Context, mountPoints []string) error {
	sorted := append([]string(nil), mountPoints...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	for _, mp := range sorted {
		logger.FromContext(ctx).Debug("unmounting", "mountpoint", mp)
		cmd := runner.Command{Name: d.umount, Args: []string{mp}}
		out, err := d.runner.Run(ctx, cmd)
		if err == nil {
			err = out.Err(cmd)
		}
		if err != nil {
			return fmt.Errorf("unmount %s: %w", mp, err)
		}
	}
	return nil
}

func (d *Dispatcher) fail(wj *job.WriteJob, result *job.Result, cause error) error {
	if err := wj.Fail(result, cause, d.now()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
