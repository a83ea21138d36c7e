package ddc

import (
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/ddcio/ddcci/discovery"
	"github.com/ddcio/ddcci/dsa"
	"github.com/ddcio/ddcci/i2c"
	"github.com/ddcio/ddcci/stats"
	"github.com/ddcio/ddcci/status"
	"github.com/ddcio/ddcci/usbhid"
)

// AsyncThreshold is the candidate count at or above which initial checks
// run concurrently (spec.md §4.8.3, default 3).
const AsyncThreshold = 3

// Registry is the read-only-after-discovery set of Display References
// (spec.md §5 "the global Display Reference registry is built once
// during discovery and thereafter read-only until teardown").
type Registry struct {
	Displays []*Display
}

// ByDispNo looks up a working display by its assigned positive number.
func (r *Registry) ByDispNo(n int) (*Display, bool) {
	for _, d := range r.Displays {
		if d.DispNo == n {
			return d, true
		}
	}
	return nil, false
}

// Scan runs the full discovery pipeline of spec.md §4.8: bus
// enumeration, initial-checks dialect detection (concurrently above
// AsyncThreshold candidates), display numbering, and phantom filtering.
// cfg.EnableUSB additionally enumerates the USB HID Monitor Control
// transport (step 6, spec.md §4.8.6) and merges its candidates into the
// same numbering pass; cfg.EDIDReadSize and cfg.DisableDynamicSleep
// (spec.md §6 "recognized option effects") are applied to every
// discovered Display. statsReg, if non-nil, is attached to every
// discovered Display so later C6 operations feed the C9 counters
// (spec.md §4.9); nil disables statistics collection.
func Scan(logger *log.Logger, store *dsa.Store, statsReg *stats.Registry, cfg *Config) (*Registry, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	buses, err := discovery.EnumerateBuses()
	if err != nil {
		return nil, fmt.Errorf("ddc: enumerate buses: %w", err)
	}

	candidates := make([]*Display, 0, len(buses))
	for _, busNum := range buses {
		e, err := discovery.ProbeEDID(busNum, cfg.EDIDReadSize)
		if err != nil {
			logger.Debug("bus is not a DDC/CI candidate", "bus", busNum, "err", err)
			continue
		}
		d := &Display{
			Path:     IOPath{Mode: IOModeI2C, I2CBus: busNum},
			EDID:     e,
			Model:    ModelKey{ManufacturerID: e.Identity.ManufacturerID, ModelName: e.ModelName, ProductCode: e.Identity.ProductCode},
			Stats:    statsReg,
			MaxTries: cfg.MaxTries,
		}
		d.Sleeper = seedSleeper(store, d.IdentityKey(), cfg)
		candidates = append(candidates, d)
	}

	if len(candidates) >= AsyncThreshold {
		var g errgroup.Group
		for _, d := range candidates {
			d := d
			g.Go(func() error {
				runInitialChecks(logger, d)
				return nil
			})
		}
		_ = g.Wait() // runInitialChecks never returns an error; per-display failure lives in d's state
	} else {
		for _, d := range candidates {
			runInitialChecks(logger, d)
		}
	}

	if cfg.EnableUSB {
		candidates = append(candidates, scanUSB(logger, store, statsReg, cfg)...)
	}

	assignDisplayNumbers(candidates)
	filterPhantoms(logger, candidates)

	return &Registry{Displays: candidates}, nil
}

// seedSleeper creates d's Sleeper from persisted state (if any) and
// applies cfg.DisableDynamicSleep by freezing the multiplier at
// whichever value it starts at (persisted, or 1.0) — the same
// userOverride mechanism a user-supplied sleep-multiplier uses, just
// seeded from the normal starting value instead of a pinned one
// (spec.md §6 "disable-dynamic-sleep ... no adaptation").
func seedSleeper(store *dsa.Store, key string, cfg *Config) *dsa.Sleeper {
	var sleeper *dsa.Sleeper
	if entry, ok := store.Get(key); ok {
		sleeper = dsa.NewSeeded(entry.Multiplier)
	} else {
		sleeper = dsa.New()
	}
	if cfg.DisableDynamicSleep {
		sleeper.SetUserOverride(sleeper.Multiplier())
	}
	return sleeper
}

// scanUSB enumerates HID Monitor Control candidates and probes each the
// way runInitialChecks probes an I2C bus, but with a single Get-VCP
// check rather than the full three-step dialect decision tree: USB HID
// feature reports carry an explicit "unsupported" bit (spec.md §4.8.6),
// so there is no byte-level ambiguity to resolve.
func scanUSB(logger *log.Logger, store *dsa.Store, statsReg *stats.Registry, cfg *Config) []*Display {
	cands, err := usbhid.EnumerateHIDCandidates()
	if err != nil {
		logger.Debug("USB HID enumeration failed", "err", err)
		return nil
	}

	displays := make([]*Display, 0, len(cands))
	for _, c := range cands {
		dev, err := usbhid.Open(c.BusNumber, c.DeviceNumber, c.Interface, c.ReportLen)
		if err != nil {
			logger.Debug("could not open USB HID candidate", "bus", c.BusNumber, "device", c.DeviceNumber, "err", err)
			continue
		}

		identity, idErr := c.ReadIdentity()
		d := &Display{
			Path:     IOPath{Mode: IOModeUSB, USBBus: c.BusNumber, USBDevice: c.DeviceNumber},
			Stats:    statsReg,
			MaxTries: cfg.MaxTries,
		}
		if idErr == nil {
			d.USBIdentity = &identity
		}
		d.Sleeper = seedSleeper(store, d.IdentityKey(), cfg)

		_, _, unsupported, getErr := dev.GetVCP(0x10)
		dev.Close()

		if getErr == nil && !unsupported {
			d.MarkWorking()
		} else {
			d.MarkNotWorking(false)
		}
		displays = append(displays, d)
	}
	return displays
}

// runInitialChecks opens the I2C bus for d and runs the dialect-
// detection decision tree of spec.md §4.8.2 against it.
func runInitialChecks(logger *log.Logger, d *Display) {
	bus, err := i2c.Open(d.Path.I2CBus)
	if err != nil {
		d.MarkNotWorking(false)
		return
	}
	defer bus.Close()
	detectDialect(logger, NewHandle(d), bus, d)
}

// detectDialect implements spec.md §4.8.2's dialect-detection decision
// tree given an already-open transport, factored out of
// runInitialChecks so it can be driven directly by a fake Transport in
// tests without real I2C hardware.
func detectDialect(logger *log.Logger, h *Handle, bus Transport, d *Display) {
	// (a) Get 0x00 — reserved, should be unsupported.
	valA, errA := GetVCP(h, bus, 0x00)
	switch {
	case errA == nil:
		// Non-error, all-zero value bytes: continue to (b).
		if valA.Current == 0 && valA.Maximum == 0 {
			checkB(logger, h, bus, d)
			return
		}
		d.AddDialect(DialectDoesNotIndicateUnsupported)
		d.MarkWorking()
	case errA.Status == status.StatusReportedUnsupported:
		d.AddDialect(DialectUsesDDCFlag)
		d.MarkWorking()
	case errA.Status == status.StatusNullResponse || errA.Status == status.StatusAllResponsesNull:
		checkC(logger, h, bus, d)
	case errA.Status == status.StatusDisplayBusy || errA.AllStatus(status.StatusDisplayBusy):
		d.MarkNotWorking(true)
	default:
		d.MarkNotWorking(false)
	}
}

// checkB is step (b): Get 0x41, also reserved.
func checkB(logger *log.Logger, h *Handle, bus Transport, d *Display) {
	val, err := GetVCP(h, bus, 0x41)
	switch {
	case err == nil && val.Current == 0 && val.Maximum == 0:
		d.AddDialect(DialectUsesAllZeroBytes)
		d.MarkWorking()
	case err != nil && err.Status == status.StatusReportedUnsupported:
		d.AddDialect(DialectUsesDDCFlag)
		d.MarkWorking()
	case err != nil && (err.Status == status.StatusNullResponse || err.Status == status.StatusAllResponsesNull):
		checkC(logger, h, bus, d)
	default:
		d.AddDialect(DialectDoesNotIndicateUnsupported)
		d.MarkWorking()
	}
}

// checkC is step (c): Get 0x10 (brightness), essentially universal.
func checkC(logger *log.Logger, h *Handle, bus Transport, d *Display) {
	_, err := GetVCP(h, bus, 0x10)
	if err == nil {
		d.AddDialect(DialectUsesNullResponse)
		d.MarkWorking()
		return
	}
	d.MarkNotWorking(false)
}

// assignDisplayNumbers implements spec.md §4.8.4.
func assignDisplayNumbers(candidates []*Display) {
	next := 1
	for _, d := range candidates {
		if d.State() == StateCheckedWorking {
			d.DispNo = next
			next++
			continue
		}
		if d.Dialect().Has(DialectBusy) {
			d.DispNo = DispBusy
		} else {
			d.DispNo = DispNotWorking
		}
	}
}

// filterPhantoms implements spec.md §4.8.5. USB Displays have no sysfs
// connector to inspect and are skipped — phantom filtering is an I2C/DRM
// sysfs concept with no USB analogue.
func filterPhantoms(logger *log.Logger, candidates []*Display) {
	working := map[string]*Display{}
	for _, d := range candidates {
		if d.State() == StateCheckedWorking {
			working[d.IdentityKey()] = d
		}
	}
	for _, d := range candidates {
		if d.Path.Mode != IOModeI2C || d.State() == StateCheckedWorking {
			continue
		}
		real, ok := working[d.IdentityKey()]
		if !ok {
			continue
		}
		attrs, err := discovery.ReadConnectorAttrs(d.Path.I2CBus)
		if err != nil {
			continue
		}
		if discovery.IsDisconnectedPhantom(attrs) {
			d.DispNo = DispPhantom
			d.PhantomOf = real
			logger.Debug("phantom display filtered", "bus", d.Path.I2CBus, "linkedTo", real.Path.I2CBus)
		}
	}
}
