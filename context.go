package ddc

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ddcio/ddcci/dsa"
	"github.com/ddcio/ddcci/stats"
	"github.com/ddcio/ddcci/status"
)

// Context is the library facade of spec.md §4.10 (C10): idempotent
// initialization, safe-to-call-once teardown, and the stable operations
// built on top of C1-C9. spec.md §9 replaces the legacy process-wide
// singleton surface with this explicit, caller-owned value threaded
// through every operation.
type Context struct {
	mu          sync.Mutex
	initialized bool
	tornDown    bool

	Logger   *log.Logger
	Config   *Config
	Registry *Registry
	Stats    *stats.Registry
	DSAStore *dsa.Store
	CapCache *CapabilitiesCache

	lastErrMu sync.Mutex
	lastErr   map[uint64]*status.ErrorInfo // goroutine-id-equivalent -> detail
	lastErrSeq uint64
}

// NewContext constructs an uninitialized Context with a logger writing
// to stderr at Info level, matching the teacher's plain-stderr default.
func NewContext() *Context {
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.InfoLevel})
	return &Context{Logger: logger, lastErr: map[uint64]*status.ErrorInfo{}}
}

// Init performs discovery and loads persisted state. Calling Init twice
// returns invalid-operation without disturbing the first initialization
// (spec.md §4.10 "rejects second init").
func (c *Context) Init(cfg *Config) *status.ErrorInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return status.NewError(status.StatusInvalidOperation, "ddc.Context.Init", "already initialized")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c.Config = cfg
	c.Stats = stats.NewRegistry()

	if !cfg.DisableDisplaysCache {
		store, err := dsa.LoadStore(XDGStatePath("displays.yaml"))
		if err != nil {
			return status.NewError(status.StatusBadConfigurationFile, "ddc.Context.Init", err.Error())
		}
		c.DSAStore = store
	} else {
		c.DSAStore = dsa.NewStore()
	}

	if !cfg.DisableCapabilityCache {
		cache, err := LoadCapabilitiesCache(XDGStatePath("capabilities.yaml"))
		if err != nil {
			return status.NewError(status.StatusBadConfigurationFile, "ddc.Context.Init", err.Error())
		}
		c.CapCache = cache
	} else {
		c.CapCache = &CapabilitiesCache{entries: map[string]string{}}
	}

	registry, err := Scan(c.Logger, c.DSAStore, c.Stats, cfg)
	if err != nil {
		c.Logger.Error("discovery failed", "err", err)
		return status.NewError(status.StatusCommunicationFailed, "ddc.Context.Init", err.Error())
	}
	c.Registry = registry
	if cfg.HasSleepMultiplier {
		for _, d := range registry.Displays {
			d.Sleeper.SetUserOverride(cfg.SleepMultiplier)
		}
	}

	c.initialized = true
	return nil
}

// Teardown persists DSA and capability state under a single lock (spec.md
// §5 "written only during teardown, under a global teardown lock") and
// marks every display Removed. Safe to call at most once; a second call
// is a no-op rather than an error, matching "safe to call at most once".
func (c *Context) Teardown() *status.ErrorInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown || !c.initialized {
		return nil
	}
	for _, d := range c.Registry.Displays {
		if d.State() == StateCheckedWorking {
			attempts, retries := d.Sleeper.Counters()
			c.DSAStore.Put(d.IdentityKey(), dsa.PersistedEntry{
				Multiplier: d.Sleeper.Multiplier(),
				Attempts:   attempts,
				Retries:    retries,
			})
		}
		d.MarkRemoved()
	}
	if err := c.DSAStore.Save(); err != nil {
		c.Logger.Error("failed to persist DSA state", "err", err)
	}
	if err := c.CapCache.Save(); err != nil {
		c.Logger.Error("failed to persist capabilities cache", "err", err)
	}
	c.tornDown = true
	return nil
}

// recordLastError stores the full detail tree for the calling
// goroutine, the facade's stand-in for thread-local storage (spec.md
// §4.10). gid is caller-supplied since Go has no stable goroutine id;
// callers that need per-goroutine isolation should derive gid from
// context.Context or similar.
func (c *Context) recordLastError(gid uint64, err *status.ErrorInfo) {
	c.lastErrMu.Lock()
	defer c.lastErrMu.Unlock()
	c.lastErr[gid] = err
}

// LastError returns the most recent detail tree recorded for gid, if
// any.
func (c *Context) LastError(gid uint64) (*status.ErrorInfo, bool) {
	c.lastErrMu.Lock()
	defer c.lastErrMu.Unlock()
	e, ok := c.lastErr[gid]
	return e, ok
}

// Call wraps a single library operation: it records the error detail
// (if any) for gid and logs fatal/retries-exhausted outcomes at Error
// level, satisfying spec.md §7 "every fatal and every retries-exhausted
// is also written to the system log".
func (c *Context) Call(gid uint64, op string, fn func() *status.ErrorInfo) *status.ErrorInfo {
	start := time.Now()
	err := fn()
	c.Stats.Profile(op, time.Since(start))
	c.recordLastError(gid, err)
	if err == nil {
		return nil
	}
	switch err.Status {
	case status.StatusRetriesExhausted, status.StatusAllResponsesNull, status.StatusCommunicationFailed:
		c.Logger.Error(op+" failed", "status", err.Status, "detail", err.Error())
	}
	return err
}
