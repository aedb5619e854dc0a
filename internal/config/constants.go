package config

// Lua schema field names and globals
const (
	luaGlobalBootstick = "bootstick"

	luaFieldTools  = "tools"
	luaFieldWrite  = "write"
	luaFieldPrompt = "prompt"
	luaFieldSafety = "safety"
	luaFieldImage  = "image"
	luaFieldLog    = "log"

	luaFieldLsblk              = "lsblk"
	luaFieldFile               = "file"
	luaFieldDD                 = "dd"
	luaFieldSync               = "sync"
	luaFieldUmount             = "umount"
	luaFieldWindowsInstaller   = "windows_installer"
	luaFieldMultibootInstaller = "multiboot_installer"

	luaFieldBlockSize         = "block_size"
	luaFieldMethod            = "method"
	luaFieldCapacityWarnRatio = "capacity_warn_ratio"

	luaFieldConfirmToken = "confirm_token"
	luaFieldMaxRetries   = "max_retries"

	luaFieldProtectedMounts = "protected_mounts"

	luaFieldChecksum = "checksum"
	luaFieldKeyring  = "keyring"

	luaFieldLevel    = "level"
	luaFieldStateDir = "state_dir"
)

// Environment variables
const (
	EnvConfig   = "BOOTSTICK_CONFIG"
	EnvLogLevel = "BOOTSTICK_LOG_LEVEL"
	EnvStateDir = "BOOTSTICK_STATE_DIR"
	EnvSysfs    = "BOOTSTICK_SYSFS"
)

const (
	// DefaultEnvFile is the optional system-wide environment file.
	DefaultEnvFile = "/etc/bootstick/bootstick.env"
	// DefaultStateDir holds the job journal and write lock.
	DefaultStateDir = "/var/lib/bootstick"
	// MaxConfigSize bounds the config file read.
	MaxConfigSize = 1 << 20
	// MaxBlockSize bounds the raw copy block size.
	MaxBlockSize = 1 << 30
)
