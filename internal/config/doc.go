// Package config loads bootstick settings from a sandboxed Lua file.
//
// # Overview
//
// Settings live in a single Lua file that assigns a global `bootstick`
// table. Every key is optional; anything left out keeps its default. The
// file runs in a gopher-lua VM with os, io, module loading and debug
// removed, and with a read-only `platform` table so a config can branch on
// the host distribution:
//
//	bootstick = {
//	  tools = {
//	    windows_installer = platform.is_debian_family and "woeusb" or "/opt/woeusb/woeusb",
//	  },
//	  write = {
//	    block_size = "4MB",          -- human size or a byte count
//	    method = "dd",               -- "dd" or "native"
//	    capacity_warn_ratio = 0.9,   -- warn above this share of the device
//	  },
//	  prompt = {
//	    confirm_token = "ERASE",
//	    max_retries = 0,             -- 0 re-prompts forever
//	  },
//	  safety = {
//	    protected_mounts = { "/srv" }, -- added to /, /boot, /home, /usr
//	  },
//	  image = {
//	    checksum = true,
//	    keyring = "/usr/share/keyrings/debian-role-keys.gpg",
//	  },
//	  log = { level = "warn" },
//	  state_dir = "/var/lib/bootstick",
//	}
//
// # Resolution
//
// Load reads $BOOTSTICK_CONFIG, or config.lua under the operator's
// ~/.config/bootstick. A missing file yields the defaults. Environment
// variables (optionally seeded from /etc/bootstick/bootstick.env)
// override the file: BOOTSTICK_LOG_LEVEL, BOOTSTICK_STATE_DIR and
// BOOTSTICK_SYSFS.
//
// # Errors
//
// Lua errors surface as *ParseError; schema violations as *ValidationError.
package config
