// Package service provides the high-level bootstick workflows.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/image"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/job"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/platform"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/prompt"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/safety"
)

var (
	// ErrImageCancelled is returned when the operator leaves the image path blank.
	ErrImageCancelled = fmt.Errorf("image selection cancelled: %w", prompt.ErrCancelled)
	// ErrWriteCancelled is returned when the final confirmation is declined.
	ErrWriteCancelled = fmt.Errorf("write cancelled: %w", prompt.ErrCancelled)
	// ErrInterrupted is returned when a signal arrived while the workflow
	// was waiting on the operator.
	ErrInterrupted = fmt.Errorf("interrupted: %w", prompt.ErrCancelled)
	// ErrVerificationExhausted is returned when prompt.max_retries image
	// attempts all failed.
	ErrVerificationExhausted = errors.New("no usable image after the allowed attempts")
)

// DeviceLister enumerates candidate devices.
type DeviceLister interface {
	ListUSBCandidates(ctx context.Context) ([]device.BlockDevice, error)
}

// DeviceSelector obtains operator confirmation for one device.
type DeviceSelector interface {
	Select(ctx context.Context, candidates []device.BlockDevice) (device.BlockDevice, error)
}

// ImageVerifier resolves and checks an image path.
type ImageVerifier interface {
	Verify(ctx context.Context, rawPath string) (*image.Spec, error)
}

// JobDispatcher runs a confirmed job. Precheck rejects a plan that cannot
// succeed before the operator is asked to confirm it.
type JobDispatcher interface {
	Precheck(kind job.BackendKind, target device.BlockDevice, img *image.Spec) error
	Dispatch(ctx context.Context, wj *job.WriteJob) error
}

// JobJournal records jobs.
type JobJournal interface {
	Save(wj *job.WriteJob) error
}

// Console is the operator dialogue the workflow needs.
type Console interface {
	Printf(format string, args ...any)
	Line(label string) (string, error)
	Confirm(question string) (bool, error)
}

// CreateMediaDeps wires a CreateMediaService.
type CreateMediaDeps struct {
	Operator   *platform.Operator
	Devices    DeviceLister
	Policy     safety.Policy
	Selector   DeviceSelector
	Verifier   ImageVerifier
	Dispatcher JobDispatcher
	Journal    JobJournal
	Console    Console
	Clock      Clock

	// LockDir holds the write lock; empty disables locking.
	LockDir string
	// CapacityWarnRatio triggers the soft capacity warning.
	CapacityWarnRatio float64
	// MaxRetries bounds image attempts; 0 is unbounded.
	MaxRetries int
}

// CreateMediaService orchestrates the create bootable media workflow.
type CreateMediaService struct {
	deps CreateMediaDeps
}

// NewCreateMediaService creates a new service with dependency injection.
func NewCreateMediaService(deps CreateMediaDeps) *CreateMediaService {
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	return &CreateMediaService{deps: deps}
}

// CreateRequest contains the parameters for one run.
type CreateRequest struct {
	Media job.Media
	// ImagePath is used for the first attempt; empty prompts for one.
	ImagePath string
}

// workflow carries step results through one Execute call.
type workflow struct {
	req      CreateRequest
	verdicts []safety.Verdict
	target   device.BlockDevice
	image    *image.Spec
	job      *job.WriteJob
}

// Execute runs the workflow. The returned summary is non-nil once a job has
// been created, including when the write failed; the error then carries the
// cause.
func (s *CreateMediaService) Execute(ctx context.Context, req CreateRequest) (*Summary, error) {
	log := logger.FromContext(ctx).With("media", req.Media)

	if _, err := job.ParseMedia(string(req.Media)); err != nil {
		return nil, err
	}
	if err := s.deps.Operator.RequireElevated(); err != nil {
		return nil, err
	}

	wf := &workflow{req: req}

	if err := s.selectDevice(ctx, wf); err != nil {
		return nil, err
	}
	if err := interrupted(ctx); err != nil {
		return nil, err
	}

	if req.Media.RequiresImage() {
		if err := s.chooseImage(ctx, wf); err != nil {
			return nil, err
		}
		if err := interrupted(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.deps.Dispatcher.Precheck(req.Media.Backend(), wf.target, wf.image); err != nil {
		return nil, fmt.Errorf("%s on %s: %w", req.Media.Label(), wf.target.Path, err)
	}

	s.printPlan(wf)
	ok, err := s.deps.Console.Confirm("Are you absolutely sure you want to continue?")
	if err != nil {
		return nil, err
	}
	if err := interrupted(ctx); err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWriteCancelled
	}

	if s.deps.LockDir != "" {
		lock, err := job.AcquireLock(ctx, s.deps.LockDir)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				log.Warn("failed to release write lock", "error", err)
			}
		}()
	}

	wf.job = job.New(req.Media, wf.target, wf.image, s.deps.Clock.Now())
	if err := s.deps.Journal.Save(wf.job); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}
	log.Debug("job created", "job", wf.job.ID, "device", wf.target.Path)

	dispatchErr := s.deps.Dispatcher.Dispatch(ctx, wf.job)
	if err := s.deps.Journal.Save(wf.job); err != nil {
		log.Warn("failed to record job outcome", "job", wf.job.ID, "error", err)
	}

	return newSummary(wf), dispatchErr
}

func (s *CreateMediaService) selectDevice(ctx context.Context, wf *workflow) error {
	log := logger.FromContext(ctx)

	s.deps.Console.Printf("Scanning for USB devices...\n")
	candidates, err := s.deps.Devices.ListUSBCandidates(ctx)
	if err != nil {
		return err
	}

	wf.verdicts = s.deps.Policy.Filter(candidates)
	for _, v := range safety.ExcludedVerdicts(wf.verdicts) {
		log.Debug("device excluded", "device", v.Device.Path, "reason", v.Reason, "detail", v.Detail)
	}

	eligible := safety.EligibleDevices(wf.verdicts)
	if len(eligible) == 0 {
		return safety.ErrNoEligibleDevice
	}

	wf.target, err = s.deps.Selector.Select(ctx, eligible)
	return err
}

// chooseImage loops until the operator supplies a usable image, cancels, or
// runs out of attempts.
func (s *CreateMediaService) chooseImage(ctx context.Context, wf *workflow) error {
	log := logger.FromContext(ctx)
	console := s.deps.Console

	raw := wf.req.ImagePath
	for attempt := 1; ; attempt++ {
		if raw == "" {
			line, err := console.Line(fmt.Sprintf("Path to the %s image (blank to cancel): ", wf.req.Media.Label()))
			if err != nil {
				return err
			}
			if line == "" {
				return ErrImageCancelled
			}
			raw = line
		}

		spec, err := s.deps.Verifier.Verify(ctx, raw)
		if err != nil {
			if !recoverableImageError(err) {
				return err
			}
			log.Debug("image rejected", "path", raw, "error", err)
			console.Printf("Cannot use %s: %v\n", raw, err)
			if s.exhausted(attempt) {
				return fmt.Errorf("%w: %w", ErrVerificationExhausted, err)
			}
			raw = ""
			continue
		}

		if spec.NeedsTypeConfirmation(wf.req.Media.AcceptsAnyImage()) {
			console.Printf("%s does not look like an ISO 9660 image.\n", spec.Path)
			console.Printf("Detected type: %s\n", describeType(spec))
			ok, err := console.Confirm("Continue with this image anyway?")
			if err != nil {
				return err
			}
			if !ok {
				if s.exhausted(attempt) {
					return ErrVerificationExhausted
				}
				raw = ""
				continue
			}
		}

		wf.image = spec
		return nil
	}
}

func (s *CreateMediaService) exhausted(attempt int) bool {
	return s.deps.MaxRetries > 0 && attempt >= s.deps.MaxRetries
}

func (s *CreateMediaService) printPlan(wf *workflow) {
	c := s.deps.Console
	c.Printf("\nAbout to create %s media:\n", wf.req.Media.Label())
	c.Printf("  Device: %s  %s  %s\n", wf.target.Path, wf.target.HumanSize(), wf.target.Description())
	if wf.image != nil {
		c.Printf("  Image:  %s  %s (%d bytes)\n", wf.image.Path, wf.image.HumanSize(), wf.image.Size)
		if image.NearCapacity(wf.image.Size, wf.target.Size, s.deps.CapacityWarnRatio) {
			c.Printf("WARNING: the image uses %.0f%% of %s. The write may fail or leave no free space.\n",
				100*float64(wf.image.Size)/float64(wf.target.Size), wf.target.Path)
		}
	}
	c.Printf("  Method: %s\n", wf.req.Media.Backend())
	c.Printf("ALL DATA ON %s WILL BE PERMANENTLY ERASED.\n", wf.target.Path)
}

// interrupted reports a cancelled context as ErrInterrupted. Prompts do not
// watch the context, so this runs after each of them returns.
func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return nil
}

func recoverableImageError(err error) bool {
	return errors.Is(err, image.ErrImageNotFound) ||
		errors.Is(err, image.ErrImageUnreadable) ||
		errors.Is(err, image.ErrChecksumMismatch) ||
		errors.Is(err, image.ErrSignatureInvalid)
}

func describeType(spec *image.Spec) string {
	if spec.Description != "" {
		return spec.Description
	}
	return string(spec.Type)
}
