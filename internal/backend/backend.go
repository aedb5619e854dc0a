package backend

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/image"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/job"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/runner"
)

// DefaultBlockSize is the raw copy block size.
const DefaultBlockSize = 4 << 20

// Method selects how the raw copy backend moves bytes.
type Method string

const (
	// MethodDD shells out to dd followed by sync.
	MethodDD Method = "dd"
	// MethodNative copies in-process and flushes with fdatasync.
	MethodNative Method = "native"
)

// Backend writes to a target device. A nil result means no process ran.
type Backend interface {
	Kind() job.BackendKind
	Write(ctx context.Context, target device.BlockDevice, img *image.Spec) (*job.Result, error)
}

// Prechecker is implemented by backends that can reject a write before any
// process touches the device.
type Prechecker interface {
	Precheck(target device.BlockDevice, img *image.Spec) error
}

// RawCopy writes the image byte for byte.
type RawCopy struct {
	runner    runner.Runner
	dd        string
	sync      string
	blockSize uint64
	method    Method
	stream    io.Writer
}

// RawCopyOptions configures a RawCopy backend. Zero values pick defaults.
type RawCopyOptions struct {
	DD        string
	Sync      string
	BlockSize uint64
	Method    Method
	// Stream receives progress output.
	Stream io.Writer
}

// NewRawCopy creates the raw copy backend.
func NewRawCopy(run runner.Runner, opts RawCopyOptions) *RawCopy {
	b := &RawCopy{
		runner:    run,
		dd:        opts.DD,
		sync:      opts.Sync,
		blockSize: opts.BlockSize,
		method:    opts.Method,
		stream:    opts.Stream,
	}
	if b.dd == "" {
		b.dd = "dd"
	}
	if b.sync == "" {
		b.sync = "sync"
	}
	if b.blockSize == 0 {
		b.blockSize = DefaultBlockSize
	}
	if b.method == "" {
		b.method = MethodDD
	}
	return b
}

func (b *RawCopy) Kind() job.BackendKind { return job.BackendRawCopy }

// Write copies the image onto the device. There is no capacity pre-check;
// dd reports a short write itself.
func (b *RawCopy) Write(ctx context.Context, target device.BlockDevice, img *image.Spec) (*job.Result, error) {
	if img == nil {
		return nil, ErrImageRequired
	}
	if b.method == MethodNative {
		return b.writeNative(ctx, target, img)
	}

	log := logger.FromContext(ctx)
	ddCmd := runner.Command{
		Name: b.dd,
		Args: []string{
			"if=" + img.Path,
			"of=" + target.Path,
			"bs=" + strconv.FormatUint(b.blockSize, 10),
			"conv=fsync",
			"oflag=direct",
			"status=progress",
		},
		Stream: b.stream,
	}
	ddOut, err := b.runner.Run(ctx, ddCmd)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", b.dd, err)
	}
	if ddOut.ExitCode != 0 {
		log.Debug("raw copy failed", "exit", ddOut.ExitCode)
		result := DeriveRawCopy(ddOut, nil)
		return &result, nil
	}

	syncOut, err := b.runner.Run(ctx, runner.Command{Name: b.sync})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", b.sync, err)
	}
	result := DeriveRawCopy(ddOut, &syncOut)
	return &result, nil
}

func (b *RawCopy) writeNative(ctx context.Context, target device.BlockDevice, img *image.Spec) (*job.Result, error) {
	copied, err := copyImage(ctx, img.Path, target.Path, b.blockSize, b.stream)
	result := job.Result{
		CombinedOutput: fmt.Sprintf("%d bytes (%s) copied\n", copied, device.FormatSize(copied)),
		Success:        err == nil,
	}
	if err != nil {
		result.ExitCode = 1
		result.CombinedOutput += err.Error() + "\n"
	}
	return &result, nil
}

// Windows delegates to a Windows installation media tool.
type Windows struct {
	runner runner.Runner
	bin    string
	stream io.Writer
}

// NewWindows creates the Windows backend. An empty bin means "woeusb".
func NewWindows(run runner.Runner, bin string, stream io.Writer) *Windows {
	if bin == "" {
		bin = "woeusb"
	}
	return &Windows{runner: run, bin: bin, stream: stream}
}

func (b *Windows) Kind() job.BackendKind { return job.BackendWindowsInstaller }

// Precheck rejects an image that does not fit on the target.
func (b *Windows) Precheck(target device.BlockDevice, img *image.Spec) error {
	if img == nil {
		return ErrImageRequired
	}
	if image.Exceeds(img.Size, target.Size) {
		return &CapacityExceededError{ImageSize: img.Size, DeviceSize: target.Size}
	}
	return nil
}

// Write checks capacity before running the installer.
func (b *Windows) Write(ctx context.Context, target device.BlockDevice, img *image.Spec) (*job.Result, error) {
	if err := b.Precheck(target, img); err != nil {
		return nil, err
	}

	out, err := b.runner.Run(ctx, runner.Command{
		Name:   b.bin,
		Args:   []string{"--device", img.Path, target.Path},
		Stream: b.stream,
	})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", b.bin, err)
	}
	result := DeriveWindows(out)
	return &result, nil
}

// multibootAnswers confirms the installer's two erase prompts.
const multibootAnswers = "y\ny\n"

// Multiboot installs a boot manager that chain-loads images copied later.
type Multiboot struct {
	runner runner.Runner
	bin    string
	stream io.Writer
}

// NewMultiboot creates the multi-boot backend. An empty bin means "Ventoy2Disk.sh".
func NewMultiboot(run runner.Runner, bin string, stream io.Writer) *Multiboot {
	if bin == "" {
		bin = "Ventoy2Disk.sh"
	}
	return &Multiboot{runner: run, bin: bin, stream: stream}
}

func (b *Multiboot) Kind() job.BackendKind { return job.BackendMultibootInstaller }

// Write installs onto the device. img is ignored.
func (b *Multiboot) Write(ctx context.Context, target device.BlockDevice, _ *image.Spec) (*job.Result, error) {
	out, err := b.runner.Run(ctx, runner.Command{
		Name:   b.bin,
		Args:   []string{"-I", target.Path},
		Stdin:  multibootAnswers,
		Stream: b.stream,
	})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", b.bin, err)
	}
	result := DeriveMultiboot(out)
	return &result, nil
}
