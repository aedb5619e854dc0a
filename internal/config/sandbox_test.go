package config

import (
	"strings"
	"testing"
)

func TestSandboxLuaVM(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
		errMsg  string
	}{
		{name: "string library allowed", code: `x = string.upper("erase")`},
		{name: "table library allowed", code: `t = {"/srv"}; table.insert(t, "/data")`},
		{name: "math library allowed", code: `x = math.floor(4.5)`},
		{name: "basic functions allowed", code: `x = tostring(1); y = tonumber("2"); z = type(x)`},

		{name: "os blocked", code: `os.execute("dd if=/dev/zero of=/dev/sda")`, wantErr: true, errMsg: "attempt to index"},
		{name: "io blocked", code: `f = io.open("/etc/shadow")`, wantErr: true, errMsg: "attempt to index"},
		{name: "require blocked", code: `require("socket")`, wantErr: true, errMsg: "attempt to call"},
		{name: "dofile blocked", code: `dofile("/tmp/x.lua")`, wantErr: true, errMsg: "attempt to call"},
		{name: "loadfile blocked", code: `loadfile("/tmp/x.lua")`, wantErr: true, errMsg: "attempt to call"},
		{name: "load blocked", code: `load("return 1")`, wantErr: true, errMsg: "attempt to call"},
		{name: "loadstring blocked", code: `loadstring("return 1")`, wantErr: true, errMsg: "attempt to call"},
		{name: "debug blocked", code: `debug.getinfo(1)`, wantErr: true, errMsg: "attempt to index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newSandboxedVM()
			defer L.Close()

			err := L.DoString(tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DoString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}
