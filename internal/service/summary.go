package service

import (
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/image"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/job"
)

// Summary reports the result of one create run.
type Summary struct {
	Media         job.Media
	Device        device.BlockDevice
	Image         *image.Spec
	Job           *job.WriteJob
	Outcome       job.Outcome
	FailureDetail string
}

func newSummary(wf *workflow) *Summary {
	return &Summary{
		Media:         wf.req.Media,
		Device:        wf.target,
		Image:         wf.image,
		Job:           wf.job,
		Outcome:       wf.job.Outcome,
		FailureDetail: wf.job.FailureDetail,
	}
}

// Succeeded reports whether the write completed.
func (s *Summary) Succeeded() bool {
	return s.Outcome == job.OutcomeSuccess
}

// String renders the summary for the operator. It always names the media
// type and the drive.
func (s *Summary) String() string {
	var b strings.Builder

	if s.Succeeded() {
		fmt.Fprintf(&b, "SUCCESS: %s media created on %s.\n", s.Media.Label(), s.Device.Path)
	} else {
		fmt.Fprintf(&b, "FAILED: %s media on %s was not created.\n", s.Media.Label(), s.Device.Path)
	}
	fmt.Fprintf(&b, "  Device: %s (%s)\n", s.Device.Path, s.Device.Description())
	if s.Image != nil {
		fmt.Fprintf(&b, "  Image:  %s, %s (%d bytes)\n", s.Image.Path, s.Image.HumanSize(), s.Image.Size)
	}
	if s.Job != nil {
		fmt.Fprintf(&b, "  Job:    %s\n", s.Job.ID)
	}
	if !s.Succeeded() && s.FailureDetail != "" {
		fmt.Fprintf(&b, "  Cause:  %s\n", s.FailureDetail)
	}
	return b.String()
}
