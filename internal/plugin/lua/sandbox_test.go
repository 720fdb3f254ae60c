package lua

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"
)

func TestSandboxRemovesLoaders(t *testing.T) {
	state := newTestState(t)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		assert.Equal(t, glua.LNil, state.GetGlobal(name), name)
	}
}

func TestSandboxLibrariesClosedByDefault(t *testing.T) {
	state := newTestState(t)

	for _, name := range []string{"io", "os", "debug"} {
		assert.Equal(t, glua.LNil, state.GetGlobal(name), name)
	}
	for _, name := range []string{"string", "table", "math", "coroutine"} {
		assert.NotEqual(t, glua.LNil, state.GetGlobal(name), name)
	}
}

func TestSandboxRequire(t *testing.T) {
	tests := []struct {
		name    string
		module  string
		grant   []Capability
		wantErr string
	}{
		{name: "safe module", module: "string"},
		{name: "unknown module", module: "socket", wantErr: "not available"},
		{name: "os without capability", module: "os", wantErr: "unsafe"},
		{name: "os with unsafe", module: "os", grant: []Capability{CapabilityUnsafe}},
		{name: "debug without capability", module: "debug", wantErr: "unsafe"},
		{name: "luarun without capability", module: ModuleName, wantErr: "process.spawn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newTestState(t)
			for _, c := range tt.grant {
				require.NoError(t, state.Sandbox().Grant(c))
			}

			err := state.DoString(context.Background(), `local m = require("`+tt.module+`")`)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSandboxPackagePathsCleared(t *testing.T) {
	state := newTestState(t)

	require.NoError(t, state.DoString(context.Background(), `p, c = package.path, package.cpath`))
	assert.Equal(t, glua.LString(""), state.GetGlobal("p"))
	assert.Equal(t, glua.LString(""), state.GetGlobal("c"))
}

func TestSandboxGrantUnsafeOpensLibraries(t *testing.T) {
	state := newTestState(t)

	require.NoError(t, state.Sandbox().Grant(CapabilityUnsafe))
	require.NoError(t, state.DoString(context.Background(), `t = type(os.time())`))
	assert.Equal(t, glua.LString("number"), state.GetGlobal("t"))
}

func TestSandboxGrantUnknown(t *testing.T) {
	state := newTestState(t)

	err := state.Sandbox().Grant("network")
	assert.ErrorIs(t, err, ErrUnknownCapability)
	assert.Empty(t, state.Sandbox().Capabilities())
}

func TestSandboxGrantAll(t *testing.T) {
	state := newTestState(t)
	sb := state.Sandbox()

	require.NoError(t, sb.GrantAll([]string{"unsafe", "process.spawn"}))
	assert.Equal(t, []Capability{CapabilityProcess, CapabilityUnsafe}, sb.Capabilities())

	err := sb.GrantAll([]string{"bogus"})
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestValidateCapabilities(t *testing.T) {
	assert.NoError(t, ValidateCapabilities(nil))
	assert.NoError(t, ValidateCapabilities([]string{"process.spawn", "unsafe"}))

	err := ValidateCapabilities([]string{"process.spawn", "bogus"})
	assert.ErrorIs(t, err, ErrUnknownCapability)
	assert.Contains(t, err.Error(), `"bogus"`)
}

func TestSandboxRevoke(t *testing.T) {
	state := newTestState(t)
	sb := state.Sandbox()

	require.NoError(t, sb.Grant(CapabilityProcess))
	assert.True(t, sb.HasCapability(CapabilityProcess))
	assert.NoError(t, sb.CheckCapability(CapabilityProcess))

	sb.Revoke(CapabilityProcess)
	assert.False(t, sb.HasCapability(CapabilityProcess))

	var ce *CapabilityError
	require.ErrorAs(t, sb.CheckCapability(CapabilityProcess), &ce)
	assert.Equal(t, CapabilityProcess, ce.Capability)
	assert.Equal(t, "capability not granted: process.spawn", ce.Error())
}
