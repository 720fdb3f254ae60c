// Package lua hosts Lua scripts for luarun.
//
// It wraps gopher-lua with a sandbox and exposes the process layer to
// scripts as the luarun module.
//
// # State
//
//	state, err := lua.NewState(lua.WithExecutionTimeout(30 * time.Second))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	lua.NewProcessModule(runner, 4096).Register(state)
//	if err := state.Sandbox().Grant(lua.CapabilityProcess); err != nil {
//	    return err
//	}
//	return state.DoFile(ctx, "build.lua")
//
// # Sandbox
//
// Scripts get the base, package, table, string, math and coroutine
// libraries. dofile, loadfile, load and loadstring are removed, and
// require only loads safe or preloaded modules. Gated modules need a
// capability:
//   - CapabilityProcess: require("luarun")
//   - CapabilityUnsafe: io, os and debug
//
// # The luarun module
//
//	local proc = require("luarun")
//	local p = assert(proc.spawn("echo hello"))
//	repeat
//	    local data, eof = proc.read(p.stdout)
//	    io.write(data)
//	until eof
//	proc.close(p.stdin); proc.close(p.stdout); proc.close(p.stderr)
//	print(proc.wait(p.handle))
//
// Handles and descriptors are plain integers. Each must be waited on or
// closed exactly once.
package lua
