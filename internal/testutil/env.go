// Package testutil provides utilities for testing bootstick in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env is an isolated bootstick environment rooted in a temp directory.
type Env struct {
	Root       string
	ConfigPath string
	StateDir   string
	Sysfs      string
}

// SetupTestEnv points every bootstick path variable into a fresh temp
// directory so tests never touch the operator's config, the real job
// journal or the host's /sys. Cleanup is handled by t.TempDir.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := &Env{
		Root:       tmpDir,
		ConfigPath: filepath.Join(tmpDir, "config", "config.lua"),
		StateDir:   filepath.Join(tmpDir, "state"),
		Sysfs:      filepath.Join(tmpDir, "sys"),
	}

	t.Setenv("BOOTSTICK_CONFIG", env.ConfigPath)
	t.Setenv("BOOTSTICK_STATE_DIR", env.StateDir)
	t.Setenv("BOOTSTICK_SYSFS", env.Sysfs)
	t.Setenv("BOOTSTICK_LOG_LEVEL", "")

	dirs := []string{
		filepath.Dir(env.ConfigPath),
		env.StateDir,
		filepath.Join(env.Sysfs, "block"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return env
}

// WriteRemovable fakes the sysfs removable attribute of a block device.
func WriteRemovable(t *testing.T, sysfs, kname, value string) {
	t.Helper()

	dir := filepath.Join(sysfs, "block", kname)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "removable"), []byte(value+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write removable attribute for %s: %v", kname, err)
	}
}
