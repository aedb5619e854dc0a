//go:build !linux

package backend

import "os"

func flush(f *os.File) error {
	return f.Sync()
}
