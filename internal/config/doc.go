// Package config provides the configuration for luarun.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← LUARUN_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← luarun.toml or luarun.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Layers 1 to 3 are merged as maps by the loader package and decoded into
// Config. Command line flags are applied by the caller on the result.
//
// # Example
//
//	[process]
//	shell = "/bin/sh"
//	default_read_size = 4096
//	max_read_bytes = 16777216
//	poll_interval = "10ms"
//
//	[lua]
//	execution_timeout = "0s"
//	capabilities = ["process.spawn"]
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[metrics]
//	addr = ""
package config
