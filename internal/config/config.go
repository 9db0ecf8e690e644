// Package config collects the runtime's tunables into a single struct
// built once in cmd/lumen, whose fields are passed to the constructors
// that use them (gc.New, snapshot.NewBoltStore) — no ambient global
// config object, mirroring how nomad's
// own client/config.Config is built once by the agent and passed down
// explicitly rather than read from package globals scattered across the
// client.
package config

import "github.com/hashicorp/go-hclog"

// Config holds every tunable named in spec §6.1/§6.3/§4.5/§4.6: the GC
// allocation threshold, the STM retry bound, the bootstrap snapshot
// path, and the two CLI debug flags that affect how a form is evaluated
// rather than what it evaluates to.
type Config struct {
	// GCThreshold is the allocation count that triggers a stop-the-world
	// mark-sweep collection (spec §4.5).
	GCThreshold int64

	// STMRetryLimit bounds how many times a single dosync transaction
	// restarts before surfacing a stm_retry_exhausted error (spec §4.6).
	STMRetryLimit int

	// SnapshotPath, if non-empty, is where the bootstrap snapshot cache
	// (spec §6.3) is read from and written to. Empty disables the cache
	// entirely: bootstrap sources are parsed and compiled every run.
	SnapshotPath string

	// TreeWalk records spec §6.1's --tree-walk flag. No tree-walking
	// backend exists and no code path reads this field; cmd/lumen rejects
	// --tree-walk before building a Config.
	TreeWalk bool

	// DumpBytecode records spec §6.1's --dump-bytecode flag. No code path
	// reads this field; no disassembly is printed.
	DumpBytecode bool

	// Log is the root logger every subsystem derives a Named() child
	// from. Never nil after New: defaults to hclog.NewNullLogger().
	Log hclog.Logger
}

// Default tunables, chosen to match internal/gc.New's own fallback
// threshold and spec §4.6's fixed retry bound.
const (
	DefaultGCThreshold   = 1 << 16
	DefaultSTMRetryLimit = 10000
)

// Option configures a Config built by New.
type Option func(*Config)

// WithGCThreshold overrides the GC's allocation-count collection trigger.
func WithGCThreshold(n int64) Option {
	return func(c *Config) { c.GCThreshold = n }
}

// WithSTMRetryLimit overrides the STM transaction retry bound.
func WithSTMRetryLimit(n int) Option {
	return func(c *Config) { c.STMRetryLimit = n }
}

// WithSnapshotPath sets the bootstrap snapshot cache's on-disk path.
func WithSnapshotPath(path string) Option {
	return func(c *Config) { c.SnapshotPath = path }
}

// WithTreeWalk selects the tree-walking backend instead of the VM.
func WithTreeWalk() Option {
	return func(c *Config) { c.TreeWalk = true }
}

// WithDumpBytecode enables bytecode disassembly output.
func WithDumpBytecode() Option {
	return func(c *Config) { c.DumpBytecode = true }
}

// WithLogger sets the root logger every subsystem's Named() child derives from.
func WithLogger(log hclog.Logger) Option {
	return func(c *Config) { c.Log = log }
}

// New builds a Config from defaults, applying opts in order so later
// options override earlier ones.
func New(opts ...Option) *Config {
	c := &Config{
		GCThreshold:   DefaultGCThreshold,
		STMRetryLimit: DefaultSTMRetryLimit,
		Log:           hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
