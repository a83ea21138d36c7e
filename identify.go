package ddc

import (
	"time"

	"github.com/ddcio/ddcci/dsa"
	"github.com/ddcio/ddcci/i2c"
	"github.com/ddcio/ddcci/packet"
	"github.com/ddcio/ddcci/retryengine"
	"github.com/ddcio/ddcci/status"
)

// Identify issues the identification request (opcode 0xE6, spec.md §6):
// a thin C6-shaped operation reusing the same C2/C3/C5 machinery as
// GetVCP/GetCapabilities but with no further interpretation of the
// reply, since the identification reply's payload is implementation-
// defined and ddcutil treats it as opaque diagnostic bytes.
func Identify(h *Handle, bus Transport) ([]byte, *status.ErrorInfo) {
	return readMultiPart(h, bus, "ddc.Identify", retryengine.ClassMultiPartRead,
		func(offset uint16) *packet.Packet { return packet.BuildIdentificationRequest(offset) },
		packet.OpIdentificationReply)
}

// SaveSettings issues the save-current-settings request (opcode 0xE2,
// spec.md §6): a fire-and-forget write, retried like any other
// write-only exchange (C3), with no reply to decode.
func SaveSettings(h *Handle, bus Transport) *status.ErrorInfo {
	site := "ddc.SaveSettings"
	_, errInfo := h.WithLock(site, func() (interface{}, *status.ErrorInfo) {
		sleeper := h.Display.Sleeper
		maxTries := maxTriesFor(h.Display, retryengine.ClassWriteOnly)
		tries := 0
		start := time.Now()
		_, rerr := retryengine.Run(retryengine.ClassWriteOnly, maxTries, nil, nil, site, func(try int) retryengine.Outcome {
			tries = try
			req, encErr := packet.Encode(packet.BuildSaveCurrentSettings(), true)
			if encErr != nil {
				return retryengine.Outcome{Err: status.NewError(status.StatusInvalidArgument, site, encErr.Error())}
			}
			if err := bus.SetSlaveAddress(i2c.DDCCIAddress, false); err != nil {
				return retryengine.Outcome{Err: classifyTransportErr(site, err, 0, 0), Retriable: true}
			}
			sleeper.Sleep(dsa.KindNextWrite)
			n, werr := bus.Write(req)
			if kind := i2c.Classify(werr, n, len(req)); kind != i2c.KindNone {
				e := classifyKind(site, kind, werr, nil)
				return retryengine.Outcome{Err: e, Retriable: kind == i2c.KindRetriable || kind == i2c.KindDisplayBusy}
			}
			return retryengine.Outcome{Value: true}
		})
		sleeper.Observe(maxInt(tries, 1))
		recordStats(h.Display, retryengine.ClassWriteOnly, maxInt(tries, 1), time.Since(start), rerr == nil)
		return true, rerr
	})
	return errInfo
}
