package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/job"
)

var (
	// ErrTargetChanged is returned when the device no longer matches the
	// one the operator confirmed.
	ErrTargetChanged = errors.New("target device changed since confirmation")
	// ErrTargetIneligible is returned when the re-read device no longer
	// passes the safety policy.
	ErrTargetIneligible = errors.New("target device is no longer eligible")
	// ErrImageRequired is returned when an image backend gets no image.
	ErrImageRequired = errors.New("backend requires a source image")
	// ErrUnknownBackend is returned for a job whose backend is not registered.
	ErrUnknownBackend = errors.New("unknown backend")
)

// CapacityExceededError reports an image larger than the target device.
type CapacityExceededError struct {
	ImageSize  uint64
	DeviceSize uint64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("image (%s, %d bytes) does not fit on device (%s, %d bytes)",
		device.FormatSize(e.ImageSize), e.ImageSize,
		device.FormatSize(e.DeviceSize), e.DeviceSize)
}

// ExecutionError reports a backend run that did not succeed.
type ExecutionError struct {
	Backend job.BackendKind
	Result  job.Result
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s failed with exit status %d", e.Backend, e.Result.ExitCode)
	if tail := lastLine(e.Result.CombinedOutput); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		// dd and installers redraw progress with carriage returns.
		line := lines[i]
		if idx := strings.LastIndex(line, "\r"); idx >= 0 {
			line = line[idx+1:]
		}
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
