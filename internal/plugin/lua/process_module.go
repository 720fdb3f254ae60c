package lua

import (
	"errors"
	"io"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luarun/internal/integration/process"
)

// ModuleName is the name scripts pass to require.
const ModuleName = "luarun"

// ProcessModule exposes a process.Runner to Lua as the luarun module.
//
// OS failures never raise: they come back as a nil or false first value
// followed by a message. Wrong argument types raise like any Lua builtin.
type ProcessModule struct {
	runner          *process.Runner
	defaultReadSize int
}

// NewProcessModule creates a module backed by runner. read calls without a
// size use defaultReadSize.
func NewProcessModule(runner *process.Runner, defaultReadSize int) *ProcessModule {
	if defaultReadSize <= 0 {
		defaultReadSize = process.DefaultReadSize
	}
	return &ProcessModule{
		runner:          runner,
		defaultReadSize: defaultReadSize,
	}
}

// Register preloads the module into s. Loading it still requires
// CapabilityProcess, checked by require and again by the loader itself.
func (m *ProcessModule) Register(s *State) {
	sandbox := s.Sandbox()
	s.Preload(ModuleName, func(L *lua.LState) int {
		if err := sandbox.CheckCapability(CapabilityProcess); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return m.Loader(L)
	})
}

// Loader builds the module table. It performs no capability check.
func (m *ProcessModule) Loader(L *lua.LState) int {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"spawn":     m.spawn,
		"wait":      m.wait,
		"terminate": m.terminate,
		"write":     m.write,
		"read":      m.read,
		"close":     m.close,
	})
	L.SetField(mod, "EXIT_INDETERMINATE", lua.LNumber(process.ExitIndeterminate))
	L.Push(mod)
	return 1
}

// spawn(cmd) -> {handle, pid, stdin, stdout, stderr, id} | nil, msg
func (m *ProcessModule) spawn(L *lua.LState) int {
	command := L.CheckString(1)

	rec, err := m.runner.Spawn(command)
	if err != nil {
		return pushFailure(L, lua.LNil, err)
	}

	t := L.NewTable()
	L.SetField(t, "handle", lua.LNumber(rec.Handle.Raw()))
	L.SetField(t, "pid", lua.LNumber(rec.Handle.Raw()))
	L.SetField(t, "stdin", lua.LNumber(rec.Stdin.Raw()))
	L.SetField(t, "stdout", lua.LNumber(rec.Stdout.Raw()))
	L.SetField(t, "stderr", lua.LNumber(rec.Stderr.Raw()))
	L.SetField(t, "id", lua.LString(rec.ID))
	L.Push(t)
	return 1
}

// wait(handle) -> code [, msg]
func (m *ProcessModule) wait(L *lua.LState) int {
	h := process.HandleFromRaw(L.CheckInt64(1))

	code, err := m.runner.Wait(h)
	if err != nil {
		return pushFailure(L, lua.LNumber(process.ExitIndeterminate), err)
	}
	L.Push(lua.LNumber(code))
	return 1
}

// terminate(handle) -> true | false, msg
func (m *ProcessModule) terminate(L *lua.LState) int {
	h := process.HandleFromRaw(L.CheckInt64(1))

	if err := m.runner.Terminate(h); err != nil {
		return pushFailure(L, lua.LFalse, err)
	}
	L.Push(lua.LTrue)
	return 1
}

// write(fd, data) -> n | nil, msg
func (m *ProcessModule) write(L *lua.LState) int {
	ep := process.EndpointFromRaw(L.CheckInt64(1))
	data := L.CheckString(2)

	n, err := m.runner.Write(ep, []byte(data))
	if err != nil {
		return pushFailure(L, lua.LNil, err)
	}
	L.Push(lua.LNumber(n))
	return 1
}

// read(fd [, size]) -> data, eof | nil, msg
func (m *ProcessModule) read(L *lua.LState) int {
	ep := process.EndpointFromRaw(L.CheckInt64(1))
	size := L.OptInt(2, m.defaultReadSize)

	data, err := m.runner.Read(ep, size)
	switch {
	case errors.Is(err, io.EOF):
		L.Push(lua.LString(""))
		L.Push(lua.LTrue)
		return 2
	case err != nil:
		return pushFailure(L, lua.LNil, err)
	}
	L.Push(lua.LString(data))
	L.Push(lua.LFalse)
	return 2
}

// close(fd) -> true | false, msg
func (m *ProcessModule) close(L *lua.LState) int {
	ep := process.EndpointFromRaw(L.CheckInt64(1))

	if err := m.runner.Close(ep); err != nil {
		return pushFailure(L, lua.LFalse, err)
	}
	L.Push(lua.LTrue)
	return 1
}

// pushFailure pushes first and the error message.
func pushFailure(L *lua.LState, first lua.LValue, err error) int {
	L.Push(first)
	L.Push(lua.LString(err.Error()))
	return 2
}
