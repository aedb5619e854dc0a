package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
)

// Config is the complete bootstick configuration.
type Config struct {
	Tools  Tools  `json:"tools"`
	Write  Write  `json:"write"`
	Prompt Prompt `json:"prompt"`
	Safety Safety `json:"safety"`
	Image  Image  `json:"image"`
	Log    Log    `json:"log"`

	// StateDir holds the job journal and the write lock.
	StateDir string `json:"state_dir"`

	// SysfsRoot is only settable from the environment.
	SysfsRoot string `json:"-"`
}

// Tools names the external programs bootstick runs.
type Tools struct {
	Lsblk              string `json:"lsblk"`
	File               string `json:"file"`
	DD                 string `json:"dd"`
	Sync               string `json:"sync"`
	Umount             string `json:"umount"`
	WindowsInstaller   string `json:"windows_installer"`
	MultibootInstaller string `json:"multiboot_installer"`
}

// Write tunes the raw copy backend.
type Write struct {
	BlockSize         datasize.ByteSize `json:"block_size"`
	Method            string            `json:"method"`
	CapacityWarnRatio float64           `json:"capacity_warn_ratio"`
}

// Prompt tunes operator interaction.
type Prompt struct {
	ConfirmToken string `json:"confirm_token"`
	// MaxRetries bounds re-prompting on invalid input; 0 is unbounded.
	MaxRetries int `json:"max_retries"`
}

// Safety extends the device filter.
type Safety struct {
	// ProtectedMounts are added to the built-in prefixes, never replacing them.
	ProtectedMounts []string `json:"protected_mounts,omitempty"`
}

// Image controls integrity checks on source images.
type Image struct {
	Checksum bool   `json:"checksum"`
	Keyring  string `json:"keyring,omitempty"`
}

// Log controls diagnostic output.
type Log struct {
	Level string `json:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tools: Tools{
			Lsblk:              "lsblk",
			File:               "file",
			DD:                 "dd",
			Sync:               "sync",
			Umount:             "umount",
			WindowsInstaller:   "woeusb",
			MultibootInstaller: "Ventoy2Disk.sh",
		},
		Write: Write{
			BlockSize:         4 * datasize.MB,
			Method:            "dd",
			CapacityWarnRatio: 0.9,
		},
		Prompt: Prompt{
			ConfirmToken: "ERASE",
			MaxRetries:   0,
		},
		Image: Image{
			Checksum: true,
		},
		Log: Log{
			Level: logger.DefaultLevel,
		},
		StateDir:  DefaultStateDir,
		SysfsRoot: "/sys",
	}
}

// JournalDir is where write job records are kept.
func (c *Config) JournalDir() string {
	return filepath.Join(c.StateDir, "jobs")
}

// Validate checks every field against the schema.
func (c *Config) Validate() error {
	tools := map[string]string{
		"tools.lsblk":               c.Tools.Lsblk,
		"tools.file":                c.Tools.File,
		"tools.dd":                  c.Tools.DD,
		"tools.sync":                c.Tools.Sync,
		"tools.umount":              c.Tools.Umount,
		"tools.windows_installer":   c.Tools.WindowsInstaller,
		"tools.multiboot_installer": c.Tools.MultibootInstaller,
	}
	for field, value := range tools {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "tool cannot be empty"}
		}
	}

	if c.Write.BlockSize < 512 || c.Write.BlockSize > MaxBlockSize {
		return &ValidationError{
			Field:   "write.block_size",
			Message: fmt.Sprintf("%s is out of range (512B to 1GB)", c.Write.BlockSize.HumanReadable()),
		}
	}
	if c.Write.BlockSize%512 != 0 {
		return &ValidationError{Field: "write.block_size", Message: "must be a multiple of 512 bytes"}
	}
	if c.Write.Method != "dd" && c.Write.Method != "native" {
		return &ValidationError{
			Field:   "write.method",
			Message: fmt.Sprintf("unknown method %q (want dd or native)", c.Write.Method),
		}
	}
	if c.Write.CapacityWarnRatio < 0 || c.Write.CapacityWarnRatio > 1 {
		return &ValidationError{
			Field:   "write.capacity_warn_ratio",
			Message: fmt.Sprintf("%v is out of range (0 to 1)", c.Write.CapacityWarnRatio),
		}
	}

	token := c.Prompt.ConfirmToken
	if token == "" || strings.TrimSpace(token) != token || strings.ContainsAny(token, "\r\n") {
		return &ValidationError{Field: "prompt.confirm_token", Message: "must be a non-empty word without surrounding whitespace"}
	}
	if len(token) < 3 {
		return &ValidationError{Field: "prompt.confirm_token", Message: "must be at least 3 characters"}
	}
	if c.Prompt.MaxRetries < 0 {
		return &ValidationError{Field: "prompt.max_retries", Message: "cannot be negative"}
	}

	for i, mp := range c.Safety.ProtectedMounts {
		if !filepath.IsAbs(mp) {
			return &ValidationError{
				Field:   fmt.Sprintf("safety.protected_mounts[%d]", i),
				Message: fmt.Sprintf("%q must be an absolute path", mp),
			}
		}
	}

	if c.Image.Keyring != "" && !filepath.IsAbs(c.Image.Keyring) {
		return &ValidationError{Field: "image.keyring", Message: "must be an absolute path"}
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return &ValidationError{Field: "log.level", Message: err.Error()}
	}

	if !filepath.IsAbs(c.StateDir) {
		return &ValidationError{Field: "state_dir", Message: "must be an absolute path"}
	}

	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}
