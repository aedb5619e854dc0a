package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c2h5oh/datasize"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/platform"
)

func debianDetector() platform.Detector {
	return platform.StaticDetector{Info: &platform.Info{
		OS:       "linux",
		Arch:     "amd64",
		ArchRaw:  "amd64",
		Platform: "ubuntu",
		Family:   platform.FamilyDebian,
		Version:  "24.04",
	}}
}

func TestParser_ParseString_EmptyConfig(t *testing.T) {
	cfg, err := NewParser(nil).ParseString(context.Background(), "")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	want := Default()
	if cfg.Tools != want.Tools {
		t.Errorf("Tools = %+v, want %+v", cfg.Tools, want.Tools)
	}
	if cfg.Write != want.Write {
		t.Errorf("Write = %+v, want %+v", cfg.Write, want.Write)
	}
	if cfg.Prompt.ConfirmToken != "ERASE" {
		t.Errorf("ConfirmToken = %q, want ERASE", cfg.Prompt.ConfirmToken)
	}
	if cfg.StateDir != DefaultStateDir {
		t.Errorf("StateDir = %q, want %q", cfg.StateDir, DefaultStateDir)
	}
}

func TestParser_ParseString_Full(t *testing.T) {
	lua := `
bootstick = {
  tools = {
    dd = "/usr/bin/dd",
    windows_installer = "/opt/woeusb/woeusb",
  },
  write = {
    block_size = "8MB",
    method = "native",
    capacity_warn_ratio = 0.75,
  },
  prompt = {
    confirm_token = "WIPE",
    max_retries = 3,
  },
  safety = {
    protected_mounts = { "/srv", "/data" },
  },
  image = {
    checksum = false,
    keyring = "/usr/share/keyrings/debian.gpg",
  },
  log = { level = "debug" },
  state_dir = "/tmp/bootstick-state",
}
`
	cfg, err := NewParser(debianDetector()).ParseString(context.Background(), lua)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	if cfg.Tools.DD != "/usr/bin/dd" {
		t.Errorf("Tools.DD = %q", cfg.Tools.DD)
	}
	if cfg.Tools.WindowsInstaller != "/opt/woeusb/woeusb" {
		t.Errorf("Tools.WindowsInstaller = %q", cfg.Tools.WindowsInstaller)
	}
	if cfg.Tools.Lsblk != "lsblk" {
		t.Errorf("Tools.Lsblk = %q, want default", cfg.Tools.Lsblk)
	}
	if cfg.Write.BlockSize != 8*datasize.MB {
		t.Errorf("Write.BlockSize = %v, want 8MB", cfg.Write.BlockSize)
	}
	if cfg.Write.Method != "native" {
		t.Errorf("Write.Method = %q", cfg.Write.Method)
	}
	if cfg.Write.CapacityWarnRatio != 0.75 {
		t.Errorf("Write.CapacityWarnRatio = %v", cfg.Write.CapacityWarnRatio)
	}
	if cfg.Prompt.ConfirmToken != "WIPE" || cfg.Prompt.MaxRetries != 3 {
		t.Errorf("Prompt = %+v", cfg.Prompt)
	}
	if got := strings.Join(cfg.Safety.ProtectedMounts, ","); got != "/srv,/data" {
		t.Errorf("ProtectedMounts = %q", got)
	}
	if cfg.Image.Checksum {
		t.Error("Image.Checksum = true, want false")
	}
	if cfg.Image.Keyring != "/usr/share/keyrings/debian.gpg" {
		t.Errorf("Image.Keyring = %q", cfg.Image.Keyring)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.StateDir != "/tmp/bootstick-state" {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
}

func TestParser_ParseString_NumericBlockSize(t *testing.T) {
	cfg, err := NewParser(nil).ParseString(context.Background(), `bootstick = { write = { block_size = 1048576 } }`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if cfg.Write.BlockSize != datasize.MB {
		t.Errorf("BlockSize = %v, want 1MB", cfg.Write.BlockSize)
	}
}

func TestParser_ParseString_PlatformConditionals(t *testing.T) {
	lua := `
bootstick = {
  tools = {
    windows_installer = platform.is_debian_family and "woeusb" or "/opt/woeusb",
  },
  safety = {
    protected_mounts = {
      "/srv",
      platform.when(platform.distro ~= nil and platform.distro.id == "fedora", "/var/fedora"),
      platform.when(platform.is_linux, "/data"),
    },
  },
}
`
	cfg, err := NewParser(debianDetector()).ParseString(context.Background(), lua)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if cfg.Tools.WindowsInstaller != "woeusb" {
		t.Errorf("WindowsInstaller = %q, want woeusb", cfg.Tools.WindowsInstaller)
	}
	if got := strings.Join(cfg.Safety.ProtectedMounts, ","); got != "/srv,/data" {
		t.Errorf("ProtectedMounts = %q, want /srv,/data", got)
	}
}

func TestParser_ParseString_PlatformReadOnly(t *testing.T) {
	_, err := NewParser(debianDetector()).ParseString(context.Background(), `platform.os = "windows"`)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if !strings.Contains(parseErr.Detail, "read-only") {
		t.Errorf("Detail = %q, want read-only mention", parseErr.Detail)
	}
}

func TestParser_ParseString_DetectorError(t *testing.T) {
	boom := errors.New("no os-release")
	_, err := NewParser(platform.StaticDetector{Err: boom}).ParseString(context.Background(), "")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestParser_ParseString_Errors(t *testing.T) {
	tests := []struct {
		name      string
		lua       string
		wantParse bool
		wantField string
	}{
		{name: "syntax error", lua: `bootstick = {`, wantParse: true},
		{name: "runtime error", lua: `error("boom")`, wantParse: true},
		{name: "bootstick not a table", lua: `bootstick = "x"`, wantParse: true},
		{name: "section not a table", lua: `bootstick = { write = 5 }`, wantField: "write"},
		{name: "string field wrong type", lua: `bootstick = { tools = { dd = 5 } }`, wantField: "tools.dd"},
		{name: "bad size string", lua: `bootstick = { write = { block_size = "lots" } }`, wantField: "write.block_size"},
		{name: "fractional size", lua: `bootstick = { write = { block_size = 1.5 } }`, wantField: "write.block_size"},
		{name: "block size too small", lua: `bootstick = { write = { block_size = 256 } }`, wantField: "write.block_size"},
		{name: "block size unaligned", lua: `bootstick = { write = { block_size = 1000 } }`, wantField: "write.block_size"},
		{name: "unknown method", lua: `bootstick = { write = { method = "rsync" } }`, wantField: "write.method"},
		{name: "ratio out of range", lua: `bootstick = { write = { capacity_warn_ratio = 1.5 } }`, wantField: "write.capacity_warn_ratio"},
		{name: "fractional retries", lua: `bootstick = { prompt = { max_retries = 2.5 } }`, wantField: "prompt.max_retries"},
		{name: "negative retries", lua: `bootstick = { prompt = { max_retries = -1 } }`, wantField: "prompt.max_retries"},
		{name: "short token", lua: `bootstick = { prompt = { confirm_token = "y" } }`, wantField: "prompt.confirm_token"},
		{name: "padded token", lua: `bootstick = { prompt = { confirm_token = " ERASE" } }`, wantField: "prompt.confirm_token"},
		{name: "relative protected mount", lua: `bootstick = { safety = { protected_mounts = { "srv" } } }`, wantField: "safety.protected_mounts[0]"},
		{name: "protected mount not string", lua: `bootstick = { safety = { protected_mounts = { 1 } } }`, wantField: "safety.protected_mounts[]"},
		{name: "checksum not bool", lua: `bootstick = { image = { checksum = "yes" } }`, wantField: "image.checksum"},
		{name: "relative keyring", lua: `bootstick = { image = { keyring = "keys.gpg" } }`, wantField: "image.keyring"},
		{name: "bad log level", lua: `bootstick = { log = { level = "chatty" } }`, wantField: "log.level"},
		{name: "relative state dir", lua: `bootstick = { state_dir = "state" }`, wantField: "state_dir"},
	}

	parser := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseString(context.Background(), tt.lua)
			if err == nil {
				t.Fatal("ParseString() error = nil, want error")
			}
			if tt.wantParse {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("error = %T %v, want *ParseError", err, err)
				}
				return
			}
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("error = %T %v, want *ValidationError", err, err)
			}
			if valErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", valErr.Field, tt.wantField)
			}
		})
	}
}

func TestParser_ParseString_Timeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser(nil).ParseString(ctx, `while true do end`)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(dir, "config.lua")
		if err := os.WriteFile(path, []byte(`bootstick = { prompt = { max_retries = 5 } }`), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := NewParser(nil).ParseFile(context.Background(), path)
		if err != nil {
			t.Fatalf("ParseFile() error = %v", err)
		}
		if cfg.Prompt.MaxRetries != 5 {
			t.Errorf("MaxRetries = %d, want 5", cfg.Prompt.MaxRetries)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewParser(nil).ParseFile(context.Background(), filepath.Join(dir, "absent.lua"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("oversized file", func(t *testing.T) {
		path := filepath.Join(dir, "huge.lua")
		data := []byte("-- " + strings.Repeat("x", MaxConfigSize) + "\n")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := NewParser(nil).ParseFile(context.Background(), path)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) || parseErr.Message != "config file too large" {
			t.Errorf("error = %v, want config file too large", err)
		}
	})
}

func TestFormatError(t *testing.T) {
	err := &ParseError{
		Message: "Lua syntax error",
		Detail:  "<string> line:1: unexpected EOF\nstack traceback:\n\t[G]: ?",
	}

	short := FormatError(err, false)
	if short != "Lua syntax error: <string> line:1: unexpected EOF" {
		t.Errorf("FormatError(false) = %q", short)
	}

	verbose := FormatError(err, true)
	if !strings.Contains(verbose, "Details:") || !strings.Contains(verbose, "stack traceback") {
		t.Errorf("FormatError(true) = %q", verbose)
	}

	plain := errors.New("plain")
	if got := FormatError(plain, false); got != "plain" {
		t.Errorf("FormatError(plain) = %q", got)
	}
}
