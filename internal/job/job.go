// Package job models one attempt to write an image onto a device.
//
// A WriteJob is created only after every confirmation has been given. Its
// outcome moves exactly once from pending to success or failure.
package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/image"
)

// SchemaVersion is written into every journal record.
const SchemaVersion = 1

// ErrAlreadyFinished is returned on a second outcome transition.
var ErrAlreadyFinished = errors.New("write job already finished")

// Media is the kind of bootable media the operator asked for.
type Media string

const (
	MediaLinux     Media = "linux"
	MediaWindows   Media = "windows"
	MediaMultiboot Media = "multiboot"
	MediaCustom    Media = "custom"
)

// AllMedia lists the media types in menu order.
var AllMedia = []Media{MediaLinux, MediaWindows, MediaMultiboot, MediaCustom}

// ParseMedia validates a media type name.
func ParseMedia(s string) (Media, error) {
	m := Media(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MediaLinux, MediaWindows, MediaMultiboot, MediaCustom:
		return m, nil
	}
	return "", fmt.Errorf("unknown media type %q (want linux, windows, multiboot or custom)", s)
}

// Label is the operator-facing name.
func (m Media) Label() string {
	switch m {
	case MediaLinux:
		return "Linux/Debian ISO"
	case MediaWindows:
		return "Windows ISO"
	case MediaMultiboot:
		return "Multi-boot manager"
	case MediaCustom:
		return "Custom raw image"
	}
	return string(m)
}

// Backend returns the write backend for the media type.
func (m Media) Backend() BackendKind {
	switch m {
	case MediaWindows:
		return BackendWindowsInstaller
	case MediaMultiboot:
		return BackendMultibootInstaller
	default:
		return BackendRawCopy
	}
}

// RequiresImage reports whether a source image must be supplied.
func (m Media) RequiresImage() bool {
	return m != MediaMultiboot
}

// AcceptsAnyImage reports whether non-ISO images are written without asking.
func (m Media) AcceptsAnyImage() bool {
	return m == MediaCustom
}

// BackendKind names a write backend.
type BackendKind string

const (
	BackendRawCopy            BackendKind = "raw-copy"
	BackendWindowsInstaller   BackendKind = "windows-installer"
	BackendMultibootInstaller BackendKind = "multiboot-installer"
)

// Outcome is the state of a job.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Result is what a backend reports after running.
type Result struct {
	ExitCode       int    `json:"exit_code"`
	CombinedOutput string `json:"combined_output,omitempty"`
	Success        bool   `json:"success"`
}

// WriteJob is one write attempt.
type WriteJob struct {
	Version       int                `json:"version"`
	ID            string             `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	Media         Media              `json:"media"`
	Backend       BackendKind        `json:"backend"`
	Target        device.BlockDevice `json:"target"`
	Image         *image.Spec        `json:"image,omitempty"`
	Outcome       Outcome            `json:"outcome"`
	FailureDetail string             `json:"failure_detail,omitempty"`
	Result        *Result            `json:"result,omitempty"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
}

// New creates a pending job. img is nil for media that needs no image.
func New(media Media, target device.BlockDevice, img *image.Spec, now time.Time) *WriteJob {
	return &WriteJob{
		Version:   SchemaVersion,
		ID:        uuid.New().String(),
		Timestamp: now.UTC(),
		Media:     media,
		Backend:   media.Backend(),
		Target:    target,
		Image:     img,
		Outcome:   OutcomePending,
	}
}

// Succeed records a successful backend run.
func (j *WriteJob) Succeed(result Result, at time.Time) error {
	return j.finish(OutcomeSuccess, &result, "", at)
}

// Fail records a failure. result is nil when no backend ran.
func (j *WriteJob) Fail(result *Result, cause error, at time.Time) error {
	detail := "unknown failure"
	if cause != nil {
		detail = cause.Error()
	}
	return j.finish(OutcomeFailure, result, detail, at)
}

func (j *WriteJob) finish(outcome Outcome, result *Result, detail string, at time.Time) error {
	if j.Outcome != OutcomePending {
		return fmt.Errorf("job %s is %s: %w", j.ID, j.Outcome, ErrAlreadyFinished)
	}
	finished := at.UTC()
	j.Outcome = outcome
	j.Result = result
	j.FailureDetail = detail
	j.FinishedAt = &finished
	return nil
}

// IsFinished reports whether the job reached a terminal outcome.
func (j *WriteJob) IsFinished() bool {
	return j.Outcome == OutcomeSuccess || j.Outcome == OutcomeFailure
}
