package testutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	vars := map[string]string{
		"BOOTSTICK_CONFIG":    env.ConfigPath,
		"BOOTSTICK_STATE_DIR": env.StateDir,
		"BOOTSTICK_SYSFS":     env.Sysfs,
	}
	for name, want := range vars {
		if got := os.Getenv(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
		if !strings.HasPrefix(want, env.Root) {
			t.Errorf("%s = %q is outside %s", name, want, env.Root)
		}
	}

	for _, dir := range []string{env.StateDir, filepath.Dir(env.ConfigPath), filepath.Join(env.Sysfs, "block")} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("directory %s does not exist", dir)
		}
	}

	if _, err := os.Stat(env.ConfigPath); !os.IsNotExist(err) {
		t.Errorf("config file should not exist yet: %v", err)
	}
}

func TestSetupTestEnv_Isolation(t *testing.T) {
	env1 := testutil.SetupTestEnv(t)

	t.Run("subtest", func(t *testing.T) {
		env2 := testutil.SetupTestEnv(t)
		if env1.Root == env2.Root {
			t.Error("expected different temp directories for different test contexts")
		}
	})
}

func TestWriteRemovable(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	testutil.WriteRemovable(t, env.Sysfs, "sdx", "1")

	data, err := os.ReadFile(filepath.Join(env.Sysfs, "block", "sdx", "removable"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.TrimSpace(string(data)) != "1" {
		t.Errorf("removable = %q, want 1", data)
	}
}
