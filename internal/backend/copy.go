package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
)

// progressEvery is how often native copy progress is reported.
const progressEvery = 64 << 20

// copyImage copies src onto dst in blockSize chunks and flushes dst.
// dst is opened without truncation so block devices and pre-sized files
// behave the same.
func copyImage(ctx context.Context, src, dst string, blockSize uint64, progress io.Writer) (uint64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open image: %w", err)
	}
	defer in.Close()

	var total uint64
	if info, err := in.Stat(); err == nil {
		total = uint64(info.Size())
	}

	out, err := os.OpenFile(dst, os.O_WRONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("open target: %w", err)
	}
	defer out.Close()

	buf := make([]byte, blockSize)
	var copied, lastReport uint64
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}

		n, readErr := io.ReadFull(in, buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return copied, fmt.Errorf("write target at offset %d: %w", copied, err)
			}
			copied += uint64(n)
		}

		if progress != nil && copied-lastReport >= progressEvery {
			fmt.Fprintf(progress, "\r%s / %s copied", device.FormatSize(copied), device.FormatSize(total))
			lastReport = copied
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return copied, fmt.Errorf("read image at offset %d: %w", copied, readErr)
		}
	}
	if progress != nil && lastReport > 0 {
		fmt.Fprintln(progress)
	}

	if err := flush(out); err != nil {
		return copied, fmt.Errorf("flush target: %w", err)
	}
	return copied, nil
}
