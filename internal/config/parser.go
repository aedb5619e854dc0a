package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/platform"
)

// DefaultParseTimeout applies when the context carries no deadline.
const DefaultParseTimeout = 5 * time.Second

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// detector may be nil, in which case no platform table is injected.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile reads and parses a config file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(data) > MaxConfigSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s exceeds %d bytes", path, MaxConfigSize),
		}
	}
	return p.ParseString(ctx, string(data))
}

// ParseString parses a Lua config from a string. Unset keys keep their
// defaults.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultParseTimeout)
		defer cancel()
	}

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("config evaluation aborted: %w", ctx.Err())
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global bootstick table over the defaults.
func extractConfig(L *lua.LState) (*Config, error) {
	cfg := Default()

	root := L.GetGlobal(luaGlobalBootstick)
	switch root.Type() {
	case lua.LTNil:
		return cfg, nil
	case lua.LTTable:
	default:
		return nil, &ParseError{
			Message: "invalid 'bootstick' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}
	table := root.(*lua.LTable)

	x := &extractor{}

	if t := x.table(table, luaFieldTools, luaFieldTools); t != nil {
		x.str(t, luaFieldLsblk, "tools.lsblk", &cfg.Tools.Lsblk)
		x.str(t, luaFieldFile, "tools.file", &cfg.Tools.File)
		x.str(t, luaFieldDD, "tools.dd", &cfg.Tools.DD)
		x.str(t, luaFieldSync, "tools.sync", &cfg.Tools.Sync)
		x.str(t, luaFieldUmount, "tools.umount", &cfg.Tools.Umount)
		x.str(t, luaFieldWindowsInstaller, "tools.windows_installer", &cfg.Tools.WindowsInstaller)
		x.str(t, luaFieldMultibootInstaller, "tools.multiboot_installer", &cfg.Tools.MultibootInstaller)
	}

	if t := x.table(table, luaFieldWrite, luaFieldWrite); t != nil {
		x.size(t, luaFieldBlockSize, "write.block_size", &cfg.Write.BlockSize)
		x.str(t, luaFieldMethod, "write.method", &cfg.Write.Method)
		x.number(t, luaFieldCapacityWarnRatio, "write.capacity_warn_ratio", &cfg.Write.CapacityWarnRatio)
	}

	if t := x.table(table, luaFieldPrompt, luaFieldPrompt); t != nil {
		x.str(t, luaFieldConfirmToken, "prompt.confirm_token", &cfg.Prompt.ConfirmToken)
		x.integer(t, luaFieldMaxRetries, "prompt.max_retries", &cfg.Prompt.MaxRetries)
	}

	if t := x.table(table, luaFieldSafety, luaFieldSafety); t != nil {
		x.strings(t, luaFieldProtectedMounts, "safety.protected_mounts", &cfg.Safety.ProtectedMounts)
	}

	if t := x.table(table, luaFieldImage, luaFieldImage); t != nil {
		x.boolean(t, luaFieldChecksum, "image.checksum", &cfg.Image.Checksum)
		x.str(t, luaFieldKeyring, "image.keyring", &cfg.Image.Keyring)
	}

	if t := x.table(table, luaFieldLog, luaFieldLog); t != nil {
		x.str(t, luaFieldLevel, "log.level", &cfg.Log.Level)
	}

	x.str(table, luaFieldStateDir, "state_dir", &cfg.StateDir)

	if x.err != nil {
		return nil, x.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// extractor copies typed fields out of Lua tables, keeping the first
// type mismatch. Absent keys leave the target untouched.
type extractor struct {
	err error
}

func (x *extractor) mismatch(field, want string, got lua.LValue) {
	if x.err == nil {
		x.err = &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("expected %s, got %s", want, got.Type()),
		}
	}
}

func (x *extractor) table(t *lua.LTable, key, field string) *lua.LTable {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTTable:
		return v.(*lua.LTable)
	}
	x.mismatch(field, "table", v)
	return nil
}

func (x *extractor) str(t *lua.LTable, key, field string, dst *string) {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
	case lua.LTString:
		*dst = v.String()
	default:
		x.mismatch(field, "string", v)
	}
}

func (x *extractor) boolean(t *lua.LTable, key, field string, dst *bool) {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
	case lua.LTBool:
		*dst = bool(v.(lua.LBool))
	default:
		x.mismatch(field, "boolean", v)
	}
}

func (x *extractor) number(t *lua.LTable, key, field string, dst *float64) {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
	case lua.LTNumber:
		*dst = float64(lua.LVAsNumber(v))
	default:
		x.mismatch(field, "number", v)
	}
}

func (x *extractor) integer(t *lua.LTable, key, field string, dst *int) {
	var f float64
	before := x.err
	v := t.RawGetString(key)
	if v.Type() == lua.LTNil {
		return
	}
	x.number(t, key, field, &f)
	if x.err != before {
		return
	}
	if f != float64(int(f)) {
		x.mismatch(field, "integer", v)
		return
	}
	*dst = int(f)
}

// size accepts a byte count or a human size such as "4MB".
func (x *extractor) size(t *lua.LTable, key, field string, dst *datasize.ByteSize) {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
	case lua.LTNumber:
		n := float64(lua.LVAsNumber(v))
		if n < 0 || n != float64(uint64(n)) {
			x.mismatch(field, "whole byte count", v)
			return
		}
		*dst = datasize.ByteSize(uint64(n))
	case lua.LTString:
		parsed, err := datasize.ParseString(strings.TrimSpace(v.String()))
		if err != nil {
			if x.err == nil {
				x.err = &ValidationError{Field: field, Message: fmt.Sprintf("invalid size %q", v.String())}
			}
			return
		}
		*dst = parsed
	default:
		x.mismatch(field, "size", v)
	}
}

func (x *extractor) strings(t *lua.LTable, key, field string, dst *[]string) {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return
	case lua.LTTable:
	default:
		x.mismatch(field, "list of strings", v)
		return
	}

	var out []string
	v.(*lua.LTable).ForEach(func(_, item lua.LValue) {
		// nil entries come from platform conditionals.
		switch item.Type() {
		case lua.LTNil:
		case lua.LTString:
			out = append(out, item.String())
		default:
			x.mismatch(field+"[]", "string", item)
		}
	})
	*dst = out
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
