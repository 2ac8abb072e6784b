// Package manage provides the keyed-storage facade of datakit: typed reads
// and writes by key over a pluggable backend, fronted by the process cache,
// with per-key debounced persistence and change notifications through the
// bind registry.
//
// All shared state (cache, subscriber registry, pending throttle timers)
// hangs off an explicitly-constructed Core rather than package globals, so
// tests can build and reset an isolated world per case.
package manage

import (
	"github.com/caarlos0/env/v11"
	"github.com/dailyyoga/datakit/bind"
	"github.com/dailyyoga/datakit/cache"
	"github.com/dailyyoga/datakit/logger"
	"github.com/dailyyoga/datakit/throttle"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CoreConfig holds configuration shared by every manager on a Core.
type CoreConfig struct {
	// DebugPrefix is prepended to every namespace, keeping debug data sets
	// apart from release ones. Usually "" in release and "debug." in
	// development builds.
	// default: ""
	DebugPrefix string `mapstructure:"debug_prefix" env:"DATAKIT_DEBUG_PREFIX"`
	// SweepSpec is the cron spec (with seconds) for the janitor that prunes
	// dead subscribers.
	// default: "0 */5 * * * *" (every five minutes)
	SweepSpec string `mapstructure:"sweep_spec" env:"DATAKIT_SWEEP_SPEC"`
}

// DefaultCoreConfig returns the default core configuration
func DefaultCoreConfig() *CoreConfig {
	return &CoreConfig{
		SweepSpec: "0 */5 * * * *",
	}
}

// MergeDefaults fills zero-valued fields from the defaults and returns the config
func (c *CoreConfig) MergeDefaults() *CoreConfig {
	defaults := DefaultCoreConfig()
	if c.SweepSpec == "" {
		c.SweepSpec = defaults.SweepSpec
	}
	return c
}

// CoreConfigFromEnv loads the core configuration from environment variables.
func CoreConfigFromEnv() (*CoreConfig, error) {
	cfg := &CoreConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, ErrParseEnv(err)
	}
	return cfg.MergeDefaults(), nil
}

// Core owns the process-wide pieces every Manager composes: the in-memory
// cache, the bind registry with its delivery goroutine, and the throttle
// scheduler.
type Core struct {
	log         logger.Logger
	cache       *cache.Memory
	binds       *bind.Registry
	throttle    *throttle.Scheduler
	debugPrefix string
	sweepSpec   string
	janitor     *cron.Cron
}

// NewCore creates a Core. A nil configuration yields the defaults.
func NewCore(log logger.Logger, cfg *CoreConfig) *Core {
	if cfg == nil {
		cfg = DefaultCoreConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	return &Core{
		log:         log,
		cache:       cache.New(log),
		binds:       bind.NewRegistry(log),
		throttle:    throttle.NewScheduler(log),
		debugPrefix: cfg.DebugPrefix,
		sweepSpec:   cfg.SweepSpec,
	}
}

// Registry exposes the bind registry for hosts that publish or subscribe
// outside a Manager's key space.
func (c *Core) Registry() *bind.Registry {
	return c.binds
}

// StartJanitor schedules the periodic dead-subscriber sweep. Dead entries are
// pruned on every Send anyway; the janitor keeps quiet namespaces from
// accumulating entries whose owners are long gone.
func (c *Core) StartJanitor() error {
	if c.janitor != nil {
		return ErrJanitorRunning
	}
	j := cron.New(cron.WithSeconds())
	if _, err := j.AddFunc(c.sweepSpec, func() {
		c.binds.Sweep()
	}); err != nil {
		return ErrJanitor(err)
	}
	j.Start()
	c.janitor = j
	c.log.Info("janitor started", zap.String("spec", c.sweepSpec))
	return nil
}

// Reset drops all in-memory state: pending throttled writes are canceled
// without persisting, the cache is flushed and every subscriber removed.
// Backends are untouched. Intended for test isolation and logout flows.
func (c *Core) Reset() {
	c.throttle.CancelAll()
	c.cache.FlushAll()
	c.binds.RemoveAll()
}

// Close shuts the Core down: the janitor stops, pending throttled writes are
// persisted best-effort, and the delivery goroutine drains and exits.
func (c *Core) Close() {
	if c.janitor != nil {
		ctx := c.janitor.Stop()
		<-ctx.Done()
		c.janitor = nil
	}
	c.throttle.Flush()
	c.binds.Close()
}
