package ddc

import (
	"sync"

	"github.com/ddcio/ddcci/dsa"
	"github.com/ddcio/ddcci/edid"
	"github.com/ddcio/ddcci/stats"
	"github.com/ddcio/ddcci/usbhid"
)

// Dialect is a bitset of the signalling idiosyncrasies discovery (C8)
// learns about a monitor (spec.md §3 "Dialect flags").
type Dialect uint16

const (
	DialectCommChecked Dialect = 1 << iota
	DialectCommWorking
	DialectUsesDDCFlag
	DialectUsesNullResponse
	DialectUsesAllZeroBytes
	DialectDoesNotIndicateUnsupported
	DialectBusy
	DialectRemoved
)

const unsupportedFlagsMask = DialectUsesDDCFlag | DialectUsesNullResponse | DialectUsesAllZeroBytes

// Has reports whether every bit in want is set.
func (d Dialect) Has(want Dialect) bool { return d&want == want }

// validUnsupportedFlags reports the invariant of spec.md §9: at most one
// of the three "uses ... for unsupported" flags is ever set.
func validUnsupportedFlags(d Dialect) bool {
	n := 0
	for _, f := range []Dialect{DialectUsesDDCFlag, DialectUsesNullResponse, DialectUsesAllZeroBytes} {
		if d.Has(f) {
			n++
		}
	}
	return n <= 1
}

// State is the per-display discovery state machine of spec.md §4.8.
type State int

const (
	StateUnchecked State = iota
	StateCheckedWorking
	StateCheckedNotWorking
	StateRemoved
)

// IOMode distinguishes the transport a Display Reference was discovered
// over (spec.md §3, §4.8.6).
type IOMode int

const (
	IOModeI2C IOMode = iota
	IOModeUSB
)

// Display numbering sentinels (spec.md §3 "sentinels for invalid, busy,
// phantom, removed"; §4.8 step 4 "appropriate negative sentinel").
const (
	DispNotWorking = -1
	DispPhantom    = -2
	DispBusy       = -3
	DispRemoved    = -4
)

// IOPath identifies where a Display Reference lives: either an I2C bus
// number or a USB bus+device pair, never both (spec.md §3).
type IOPath struct {
	Mode      IOMode
	I2CBus    int
	USBBus    int
	USBDevice int
}

// ModelKey is the manufacturer id + model name + product code tuple
// spec.md §3 names as the "monitor model key".
type ModelKey struct {
	ManufacturerID string
	ModelName      string
	ProductCode    uint16
}

// Display is a Display Reference: everything discovery learns about one
// physical monitor (spec.md §3). Created during discovery, read-only
// apart from its own mutex-guarded fields, and never recreated in
// place — a Removed Display stays in the registry as a tombstone.
type Display struct {
	mu sync.Mutex

	Path     IOPath
	DispNo   int
	EDID     *edid.EDID
	// USBIdentity is the identity tuple for a Display discovered over
	// the USB HID transport (spec.md §4.8.6); nil for an I2C Display,
	// where EDID already serves that purpose.
	USBIdentity *usbhid.Identity
	Model    ModelKey
	dialect  Dialect
	state    State
	PhantomOf *Display

	Sleeper *dsa.Sleeper

	// Stats records per-retry-class counters for every C6 operation run
	// against this display (spec.md §4.9, C9). Nil is valid and simply
	// means statistics are not collected.
	Stats *stats.Registry

	// MaxTries holds the config file's per-class retry ceiling overrides
	// (spec.md §6 "maxtries=a,b,c"), keyed by retryengine.Class.String().
	// A class absent from the map uses retryengine.DefaultMaxTries. Nil
	// is valid and means no overrides are configured.
	MaxTries map[string]int

	// DevPath is the opened transport's backing path, e.g. "/dev/i2c-3".
	DevPath string

	// lock is the C5 per-display operation lock (spec.md §4.5); created
	// lazily by NewHandle so a freshly-discovered Display need not carry
	// one around before it is ever opened.
	lock opLock
}

// IdentityKey returns the persistence/phantom-filtering key for d,
// whichever transport it was discovered over.
func (d *Display) IdentityKey() string {
	if d.EDID != nil {
		return d.EDID.Identity.Key()
	}
	if d.USBIdentity != nil {
		return d.USBIdentity.Key()
	}
	return ""
}

// Dialect returns the current dialect flags.
func (d *Display) Dialect() Dialect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialect
}

// SetDialect replaces the dialect flags, enforcing the at-most-one
// unsupported-signalling-flag invariant (spec.md §9 invariant list).
func (d *Display) SetDialect(flags Dialect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !validUnsupportedFlags(flags) {
		flags &^= unsupportedFlagsMask
	}
	d.dialect = flags
}

// AddDialect ORs flags into the current set, then re-validates.
func (d *Display) AddDialect(flags Dialect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	merged := d.dialect | flags
	if validUnsupportedFlags(merged) {
		d.dialect = merged
		return
	}
	// Keep whichever unsupported-signalling flag was already set; drop
	// the newly proposed one rather than silently accept two.
	d.dialect |= flags &^ unsupportedFlagsMask
}

// State returns the discovery state machine's current value.
func (d *Display) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// MarkWorking transitions Unchecked → (Checked, Working); sets the
// implied DialectCommChecked|DialectCommWorking bits.
func (d *Display) MarkWorking() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateCheckedWorking
	d.dialect |= DialectCommChecked | DialectCommWorking
}

// MarkNotWorking transitions Unchecked → (Checked, NotWorking); busy
// marks the busy sub-variant (spec.md §4.8.2a "if EBUSY, mark busy").
func (d *Display) MarkNotWorking(busy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateCheckedNotWorking
	d.dialect |= DialectCommChecked
	if busy {
		d.dialect |= DialectBusy
	}
}

// MarkRemoved is the terminal transition (explicit teardown or
// hot-unplug detection, spec.md §4.8 state machine).
func (d *Display) MarkRemoved() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateRemoved
	d.dialect |= DialectRemoved
}
