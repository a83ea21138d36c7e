// Package discovery provides the operating-system-facing leaf
// primitives behind display discovery (spec.md §4.8, C8): enumerating
// I2C bus device nodes, reading a candidate's EDID, and inspecting the
// sysfs connector attributes the phantom-filtering rule depends on. The
// orchestration of these primitives into the discovery algorithm lives
// in the root package, alongside the Display Reference type it builds.
package discovery

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ddcio/ddcci/edid"
	"github.com/ddcio/ddcci/i2c"
)

var busNodeRE = regexp.MustCompile(`^i2c-(\d+)$`)

// EnumerateBuses lists the I2C bus numbers with an accessible device
// node under /dev (spec.md §4.8.1 "inventory every I2C bus reported by
// the operating system whose device node is accessible").
func EnumerateBuses() ([]int, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	var buses []int
	for _, e := range entries {
		m := busNodeRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		buses = append(buses, n)
	}
	sort.Ints(buses)
	return buses, nil
}

// ProbeEDID opens the given bus, selects the EDID slave address, reads
// readSize bytes (128 for a base EDID block, 256 to also capture one
// extension block per the config file's edid-read-size option, spec.md
// §6) and parses them. A bus is a discovery candidate only if this
// succeeds (spec.md §4.8.1). readSize <= 0 defaults to edid.Size.
func ProbeEDID(busNumber int, readSize int) (*edid.EDID, error) {
	if readSize <= 0 {
		readSize = edid.Size
	}
	bus, err := i2c.Open(busNumber)
	if err != nil {
		return nil, err
	}
	defer bus.Close()

	if err := bus.SetSlaveAddress(i2c.EDIDAddress, false); err != nil {
		return nil, err
	}
	buf := make([]byte, readSize)
	n, err := bus.Read(buf)
	if err != nil {
		return nil, err
	}
	if n != readSize {
		return nil, edid.ErrWrongSize
	}
	return edid.Parse(buf)
}

// ConnectorAttrs is the subset of sysfs connector attributes the
// phantom-filtering rule inspects (spec.md §4.8.5).
type ConnectorAttrs struct {
	Status   string // e.g. "connected", "disconnected"
	Enabled  string // e.g. "enabled", "disabled"
	HasEDID  bool
}

// ReadConnectorAttrs follows /sys/bus/i2c/devices/i2c-N/device to the
// DRM connector directory (if any) and reads status, enabled and
// whether an edid attribute file is exposed (spec.md §4.8.5, §4.11
// "operating system input").
func ReadConnectorAttrs(busNumber int) (ConnectorAttrs, error) {
	base := filepath.Join("/sys/bus/i2c/devices", "i2c-"+strconv.Itoa(busNumber), "device")
	real, err := filepath.EvalSymlinks(base)
	if err != nil {
		return ConnectorAttrs{}, err
	}

	var attrs ConnectorAttrs
	attrs.Status = readTrimmed(filepath.Join(real, "status"))
	attrs.Enabled = readTrimmed(filepath.Join(real, "enabled"))
	if _, err := os.Stat(filepath.Join(real, "edid")); err == nil {
		attrs.HasEDID = true
	}
	return attrs, nil
}

func readTrimmed(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// IsDisconnectedPhantom applies spec.md §4.8.5's exact predicate: the
// connector reports disconnected, disabled, and exposes no edid
// attribute.
func IsDisconnectedPhantom(a ConnectorAttrs) bool {
	return a.Status == "disconnected" && a.Enabled == "disabled" && !a.HasEDID
}
