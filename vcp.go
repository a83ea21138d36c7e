package ddc

import (
	"time"

	"github.com/ddcio/ddcci/dsa"
	"github.com/ddcio/ddcci/i2c"
	"github.com/ddcio/ddcci/packet"
	"github.com/ddcio/ddcci/retryengine"
	"github.com/ddcio/ddcci/status"
)

// VCPValue is the result of a successful Get, spec.md §4.6 "value"
// variant: current and maximum value for the feature.
type VCPValue struct {
	FeatureCode byte
	Current     uint16
	Maximum     uint16
}

// transaction wraps the low-level write-then-read exchange every C6
// operation builds on: select the slave address, sleep per DSA, write
// the request, sleep again, read the reply. Returns the raw reply bytes
// or a classified *status.ErrorInfo.
func transaction(bus Transport, sleeper *dsa.Sleeper, site string, req []byte, replyLen int) ([]byte, *status.ErrorInfo) {
	if err := bus.SetSlaveAddress(i2c.DDCCIAddress, false); err != nil {
		return nil, classifyTransportErr(site, err, 0, 0)
	}
	sleeper.Sleep(dsa.KindNextWrite)
	n, err := bus.Write(req)
	if kind := i2c.Classify(err, n, len(req)); kind != i2c.KindNone {
		return nil, classifyKind(site, kind, err, nil)
	}
	sleeper.Sleep(dsa.KindWriteToRead)
	buf := make([]byte, replyLen)
	n, err = bus.Read(buf)
	if kind := i2c.Classify(err, n, replyLen); kind != i2c.KindNone {
		return nil, classifyKind(site, kind, err, buf[:n])
	}
	frame, ok := trimToDeclaredFrame(buf[:n])
	if !ok {
		return nil, classifyKind(site, i2c.KindRetriable, nil, buf[:n])
	}
	if isNullResponseFrame(frame) {
		return nil, status.NewError(status.StatusNullResponse, site, "null response")
	}
	return frame, nil
}

// trimToDeclaredFrame extracts the self-describing DDC/CI frame from a
// read buffer sized to a ceiling rather than an exact length. A real I2C
// read is all-or-nothing: it returns exactly the number of bytes
// requested (replyLen) whenever it succeeds at all, regardless of how
// short the monitor's actual reply was, so a multi-part fragment shorter
// than the request's ceiling still arrives as a full buffer with
// meaningless trailing bytes. The wire format's own length byte
// (spec.md §4.2) says where the real frame ends; everything past that is
// discarded rather than fed to Decode, which would otherwise reject the
// padded buffer as a length mismatch.
func trimToDeclaredFrame(got []byte) ([]byte, bool) {
	if len(got) < 3 {
		return nil, false
	}
	declared := int(got[1] & 0x7F)
	want := 2 + declared + 1
	if len(got) < want {
		return nil, false
	}
	return got[:want], true
}

func classifyTransportErr(site string, err error, got, want int) *status.ErrorInfo {
	return classifyKind(site, i2c.Classify(err, got, want), err, nil)
}

// isNullResponseFrame reports whether gotBytes is exactly the canonical
// null-response frame — dest, a length byte declaring zero payload
// (0x80), and a valid checksum (spec.md glossary: "a packet whose
// payload length byte is zero"). Anything else that came back short is
// garbled data, not a protocol-level null response.
func isNullResponseFrame(gotBytes []byte) bool {
	if len(gotBytes) != 3 {
		return false
	}
	_, err := packet.Decode(gotBytes, false)
	return err == nil
}

// classifyKind maps a transport Kind into the protocol status
// vocabulary. gotBytes is whatever was actually read when kind came
// from a read (nil for writes, or when err != nil and nothing was
// read). i2c.KindRetriable covers both a short/garbled read and a bare
// OS-level EAGAIN/ETIMEDOUT — only the former, when it decodes as the
// canonical null-response frame, is StatusNullResponse; every other
// retriable case is StatusShortRead (spec.md §7 requires the two be
// distinguishable by callers).
func classifyKind(site string, kind i2c.Kind, err error, gotBytes []byte) *status.ErrorInfo {
	msg := "transport error"
	if err != nil {
		msg = err.Error()
	}
	switch kind {
	case i2c.KindRetriable:
		if isNullResponseFrame(gotBytes) {
			return status.NewError(status.StatusNullResponse, site, msg)
		}
		return status.NewError(status.StatusShortRead, site, msg)
	case i2c.KindDisplayBusy:
		return status.NewError(status.StatusDisplayBusy, site, msg)
	case i2c.KindFatalForDisplay, i2c.KindFatalReport:
		return status.NewError(status.StatusCommunicationFailed, site, msg)
	default:
		return nil
	}
}

const vcpReplyWireLen = 10 // dest, len, opcode, feature, unsupported, 4 value bytes, checksum

// recordStats folds one logical operation's outcome into d's optional
// statistics registry (spec.md §4.9, C9). A nil registry is a no-op.
func recordStats(d *Display, class retryengine.Class, tries int, elapsed time.Duration, ok bool) {
	if d.Stats == nil {
		return
	}
	d.Stats.Class(class.String()).Record(tries, elapsed, ok)
}

// maxTriesFor resolves the retry ceiling for class against d's config
// overrides (spec.md §6 "maxtries=a,b,c,d"), falling back to
// retryengine.DefaultMaxTries when d carries no override for this class.
func maxTriesFor(d *Display, class retryengine.Class) int {
	if d.MaxTries != nil {
		if n, ok := d.MaxTries[class.String()]; ok {
			return n
		}
	}
	return retryengine.DefaultMaxTries(class)
}

// GetVCP performs a Get-feature exchange for feature on d, through h's
// serializer (spec.md §4.5/§4.6, C5+C6). All retries of this logical
// operation happen while d's lock is held.
func GetVCP(h *Handle, bus Transport, feature byte) (VCPValue, *status.ErrorInfo) {
	site := "ddc.GetVCP"
	result, errInfo := h.WithLock(site, func() (interface{}, *status.ErrorInfo) {
		maxTries := maxTriesFor(h.Display, retryengine.ClassWriteRead)
		sleeper := h.Display.Sleeper
		tries := 0
		start := time.Now()

		val, rerr := retryengine.Run(retryengine.ClassWriteRead, maxTries, nil, nil, site, func(try int) retryengine.Outcome {
			tries = try
			pkt := packet.BuildVCPRequest(feature)
			req, encErr := packet.Encode(pkt, true)
			if encErr != nil {
				return retryengine.Outcome{Err: status.NewError(status.StatusInvalidArgument, site, encErr.Error())}
			}
			raw, txErr := transaction(bus, sleeper, site, req, vcpReplyWireLen)
			if txErr != nil {
				retriable := txErr.Status == status.StatusNullResponse || txErr.Status == status.StatusShortRead || txErr.Status == status.StatusDisplayBusy
				return retryengine.Outcome{Err: txErr, Retriable: retriable}
			}
			decoded, decErr := packet.Decode(raw, false)
			if decErr != nil {
				return retryengine.Outcome{Err: status.NewError(status.StatusChecksumMismatch, site, decErr.Error()), Retriable: true}
			}
			reply, parseErr := packet.ParseVCPReply(decoded)
			if parseErr != nil {
				return retryengine.Outcome{Err: status.NewError(status.StatusInvalidResponse, site, parseErr.Error()), Retriable: true}
			}
			return retryengine.Outcome{Value: reply}
		})
		sleeper.Observe(maxInt(tries, 1))
		recordStats(h.Display, retryengine.ClassWriteRead, maxInt(tries, 1), time.Since(start), rerr == nil)
		if rerr != nil {
			return nil, rerr
		}
		reply := val.(*packet.VCPReply)
		if reply.Unsupported {
			return nil, status.NewError(status.StatusReportedUnsupported, site, "monitor reported feature unsupported")
		}
		return VCPValue{FeatureCode: reply.FeatureCode, Current: reply.CurValue, Maximum: reply.MaxValue}, nil
	})
	if errInfo != nil {
		return VCPValue{}, errInfo
	}
	return result.(VCPValue), nil
}

// SetVCP performs a Set-feature exchange, optionally verifying by
// reading the value back (spec.md §4.6 "value verification").
func SetVCP(h *Handle, bus Transport, feature byte, value uint16, verify bool) *status.ErrorInfo {
	site := "ddc.SetVCP"
	_, errInfo := h.WithLock(site, func() (interface{}, *status.ErrorInfo) {
		sleeper := h.Display.Sleeper
		maxTries := maxTriesFor(h.Display, retryengine.ClassWriteOnly)
		tries := 0
		start := time.Now()
		_, rerr := retryengine.Run(retryengine.ClassWriteOnly, maxTries, nil, nil, site, func(try int) retryengine.Outcome {
			tries = try
			pkt := packet.BuildVCPSet(feature, value)
			req, encErr := packet.Encode(pkt, true)
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
		if rerr != nil {
			return nil, rerr
		}
		return true, nil
	})
	if errInfo != nil {
		return errInfo
	}
	if !verify {
		return nil
	}
	time.Sleep(sleeperDelayForVerify(h))
	readback, errInfo := GetVCP(h, bus, feature)
	if errInfo != nil {
		return errInfo
	}
	if readback.Current != value {
		return status.NewError(status.StatusVerificationFailed, site, "readback did not match written value")
	}
	return nil
}

func sleeperDelayForVerify(h *Handle) time.Duration {
	return h.Display.Sleeper.Delay(dsa.KindNextWrite)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
