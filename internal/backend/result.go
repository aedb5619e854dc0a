// Package backend writes a confirmed job onto its target device.
package backend

import (
	"strings"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/job"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/runner"
)

// windowsErrorMarker in installer output means failure even on exit 0.
const windowsErrorMarker = "Error:"

// DeriveRawCopy judges a dd run followed by an optional flush. flush is
// nil when the copy failed and no flush was attempted.
func DeriveRawCopy(copyOut runner.Output, flush *runner.Output) job.Result {
	result := job.Result{
		ExitCode:       copyOut.ExitCode,
		CombinedOutput: copyOut.Text(),
		Success:        copyOut.ExitCode == 0,
	}
	if flush == nil {
		result.Success = false
		return result
	}
	if flush.ExitCode != 0 {
		result.ExitCode = flush.ExitCode
		result.Success = false
	}
	if text := flush.Text(); text != "" {
		result.CombinedOutput = strings.TrimSpace(result.CombinedOutput + "\n" + text)
	}
	return result
}

// DeriveWindows requires exit status 0 and no error marker in the output.
func DeriveWindows(out runner.Output) job.Result {
	text := out.Text()
	return job.Result{
		ExitCode:       out.ExitCode,
		CombinedOutput: text,
		Success:        out.ExitCode == 0 && !strings.Contains(text, windowsErrorMarker),
	}
}

// DeriveMultiboot passes the installer's exit status through verbatim.
func DeriveMultiboot(out runner.Output) job.Result {
	return job.Result{
		ExitCode:       out.ExitCode,
		CombinedOutput: out.Text(),
		Success:        out.ExitCode == 0,
	}
}
