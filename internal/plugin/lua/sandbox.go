package lua

import (
	"fmt"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Capability is a permission granted to scripts.
type Capability string

// Available capabilities.
const (
	// CapabilityProcess allows require("luarun").
	CapabilityProcess Capability = "process.spawn"

	// CapabilityUnsafe opens the full io, os and debug libraries.
	CapabilityUnsafe Capability = "unsafe"
)

var knownCapabilities = map[Capability]bool{
	CapabilityProcess: true,
	CapabilityUnsafe:  true,
}

// gatedModules maps modules that require() refuses without a capability.
var gatedModules = map[string]Capability{
	ModuleName: CapabilityProcess,
	"io":       CapabilityUnsafe,
	"os":       CapabilityUnsafe,
	"debug":    CapabilityUnsafe,
}

// safeModules may always be required.
var safeModules = map[string]bool{
	"_G":        true,
	"string":    true,
	"table":     true,
	"math":      true,
	"coroutine": true,
}

// Sandbox restricts a Lua state to the base libraries plus whatever its
// capabilities unlock.
type Sandbox struct {
	L *lua.LState

	mu           sync.RWMutex
	capabilities map[Capability]bool
}

// NewSandbox creates a sandbox for L with no capabilities.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{
		L:            L,
		capabilities: make(map[Capability]bool),
	}
}

// Install removes the chunk loaders and replaces require.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.installSafeRequire()
}

// installSafeRequire empties package.path and package.cpath and wraps
// require so that only safe and preloaded modules load, and gated modules
// load only with their capability.
func (s *Sandbox) installSafeRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))

		if loaded, ok := s.L.GetField(pkg, "loaded").(*lua.LTable); ok {
			var stale []string
			loaded.ForEach(func(k, _ lua.LValue) {
				if ks, ok := k.(lua.LString); ok && !safeModules[string(ks)] && string(ks) != "package" {
					stale = append(stale, string(ks))
				}
			})
			for _, key := range stale {
				loaded.RawSetString(key, lua.LNil)
			}
		}
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)

		if capability, gated := gatedModules[name]; gated {
			if !s.HasCapability(capability) {
				L.RaiseError("module %q requires the %q capability", name, capability)
			}
		} else if !safeModules[name] && !s.isPreloaded(name) {
			L.RaiseError("module %q is not available", name)
		}

		L.Push(originalRequire)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}

// isPreloaded reports whether package.preload has a loader for name.
func (s *Sandbox) isPreloaded(name string) bool {
	pkg, ok := s.L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return false
	}
	preload, ok := s.L.GetField(pkg, "preload").(*lua.LTable)
	if !ok {
		return false
	}
	return preload.RawGetString(name) != lua.LNil
}

// Grant enables a capability. Granting CapabilityUnsafe opens io, os and
// debug as globals.
func (s *Sandbox) Grant(c Capability) error {
	if !knownCapabilities[c] {
		return fmt.Errorf("%w: %q", ErrUnknownCapability, c)
	}

	s.mu.Lock()
	already := s.capabilities[c]
	s.capabilities[c] = true
	s.mu.Unlock()

	if c == CapabilityUnsafe && !already {
		lua.OpenIo(s.L)
		lua.OpenOs(s.L)
		lua.OpenDebug(s.L)
	}
	return nil
}

// GrantAll grants each named capability in order and stops at the first
// unknown name.
func (s *Sandbox) GrantAll(names []string) error {
	for _, name := range names {
		if err := s.Grant(Capability(name)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCapabilities reports the first name that Grant would reject.
func ValidateCapabilities(names []string) error {
	for _, name := range names {
		if !knownCapabilities[Capability(name)] {
			return fmt.Errorf("%w: %q", ErrUnknownCapability, name)
		}
	}
	return nil
}

// Revoke disables a capability. Libraries already opened stay open.
func (s *Sandbox) Revoke(c Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.capabilities, c)
}

// HasCapability returns true if the capability is granted.
func (s *Sandbox) HasCapability(c Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities[c]
}

// Capabilities returns the granted capabilities in sorted order.
func (s *Sandbox) Capabilities() []Capability {
	s.mu.RLock()
	defer s.mu.RUnlock()

	caps := make([]Capability, 0, len(s.capabilities))
	for c := range s.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// CheckCapability returns a *CapabilityError if c is not granted.
func (s *Sandbox) CheckCapability(c Capability) error {
	if !s.HasCapability(c) {
		return &CapabilityError{Capability: c}
	}
	return nil
}
