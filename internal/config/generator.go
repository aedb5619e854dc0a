package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Generator generates Lua configuration code from a Config.
type Generator struct {
	indent string
}

// NewGenerator creates a new Lua config generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ",
	}
}

// Generate renders cfg as a complete config file. Every field is written
// so the result doubles as a reference of the available keys.
func (g *Generator) Generate(cfg *Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	var buf bytes.Buffer

	buf.WriteString("-- bootstick configuration\n")
	buf.WriteString("-- Every key is optional. A read-only `platform` table is available.\n\n")
	buf.WriteString(luaGlobalBootstick + " = {\n")

	g.openSection(&buf, luaFieldTools)
	g.writeString(&buf, luaFieldLsblk, cfg.Tools.Lsblk)
	g.writeString(&buf, luaFieldFile, cfg.Tools.File)
	g.writeString(&buf, luaFieldDD, cfg.Tools.DD)
	g.writeString(&buf, luaFieldSync, cfg.Tools.Sync)
	g.writeString(&buf, luaFieldUmount, cfg.Tools.Umount)
	g.writeString(&buf, luaFieldWindowsInstaller, cfg.Tools.WindowsInstaller)
	g.writeString(&buf, luaFieldMultibootInstaller, cfg.Tools.MultibootInstaller)
	g.closeSection(&buf)

	g.openSection(&buf, luaFieldWrite)
	g.writeString(&buf, luaFieldBlockSize, cfg.Write.BlockSize.String())
	g.writeString(&buf, luaFieldMethod, cfg.Write.Method)
	g.writeRaw(&buf, luaFieldCapacityWarnRatio, strconv.FormatFloat(cfg.Write.CapacityWarnRatio, 'f', -1, 64))
	g.closeSection(&buf)

	g.openSection(&buf, luaFieldPrompt)
	g.writeString(&buf, luaFieldConfirmToken, cfg.Prompt.ConfirmToken)
	g.writeRaw(&buf, luaFieldMaxRetries, strconv.Itoa(cfg.Prompt.MaxRetries))
	g.closeSection(&buf)

	g.openSection(&buf, luaFieldSafety)
	buf.WriteString(strings.Repeat(g.indent, 2))
	buf.WriteString(luaFieldProtectedMounts + " = {")
	for i, mp := range cfg.Safety.ProtectedMounts {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(" ")
		buf.WriteString(g.quoteLuaString(mp))
	}
	if len(cfg.Safety.ProtectedMounts) > 0 {
		buf.WriteString(" ")
	}
	buf.WriteString("},\n")
	g.closeSection(&buf)

	g.openSection(&buf, luaFieldImage)
	g.writeRaw(&buf, luaFieldChecksum, strconv.FormatBool(cfg.Image.Checksum))
	if cfg.Image.Keyring != "" {
		g.writeString(&buf, luaFieldKeyring, cfg.Image.Keyring)
	}
	g.closeSection(&buf)

	g.openSection(&buf, luaFieldLog)
	g.writeString(&buf, luaFieldLevel, cfg.Log.Level)
	g.closeSection(&buf)

	buf.WriteString(g.indent)
	buf.WriteString(fmt.Sprintf("%s = %s,\n", luaFieldStateDir, g.quoteLuaString(cfg.StateDir)))
	buf.WriteString("}\n")

	return buf.String(), nil
}

func (g *Generator) openSection(buf *bytes.Buffer, name string) {
	buf.WriteString(g.indent)
	buf.WriteString(name)
	buf.WriteString(" = {\n")
}

func (g *Generator) closeSection(buf *bytes.Buffer) {
	buf.WriteString(g.indent)
	buf.WriteString("},\n")
}

func (g *Generator) writeString(buf *bytes.Buffer, key, value string) {
	g.writeRaw(buf, key, g.quoteLuaString(value))
}

func (g *Generator) writeRaw(buf *bytes.Buffer, key, value string) {
	buf.WriteString(g.indent)
	buf.WriteString(g.indent)
	buf.WriteString(key)
	buf.WriteString(" = ")
	buf.WriteString(value)
	buf.WriteString(",\n")
}

// quoteLuaString quotes a string for Lua, handling special characters.
func (g *Generator) quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
