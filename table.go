package ddc

import (
	"time"

	"github.com/ddcio/ddcci/capabilities"
	"github.com/ddcio/ddcci/dsa"
	"github.com/ddcio/ddcci/i2c"
	"github.com/ddcio/ddcci/packet"
	"github.com/ddcio/ddcci/retryengine"
	"github.com/ddcio/ddcci/status"
)

const fragmentWireLen = 2 + packet.MaxPayloadLen + 1 // dest, len, checksum around up to 32 payload bytes

// readMultiPart drives one multi-part read exchange (capabilities or
// table read) to completion: request each fragment at the assembler's
// expected offset until a zero-length terminator arrives (spec.md §4.2,
// §4.6 "table read").
func readMultiPart(h *Handle, bus Transport, site string, class retryengine.Class, buildRequest func(offset uint16) *packet.Packet, wantOpcode byte) ([]byte, *status.ErrorInfo) {
	result, errInfo := h.WithLock(site, func() (interface{}, *status.ErrorInfo) {
		sleeper := h.Display.Sleeper
		asm := packet.NewAssembler()
		maxFragments := 64 // generous ceiling; a well-behaved monitor terminates far earlier

		for i := 0; i < maxFragments; i++ {
			maxTries := maxTriesFor(h.Display, class)
			tries := 0
			start := time.Now()
			val, rerr := retryengine.Run(class, maxTries, nil, nil, site, func(try int) retryengine.Outcome {
				tries = try
				req, encErr := packet.Encode(buildRequest(asm.NextOffset()), true)
				if encErr != nil {
					return retryengine.Outcome{Err: status.NewError(status.StatusInvalidArgument, site, encErr.Error())}
				}
				raw, txErr := transaction(bus, sleeper, site, req, fragmentWireLen)
				if txErr != nil {
					retriable := txErr.Status == status.StatusNullResponse || txErr.Status == status.StatusShortRead || txErr.Status == status.StatusDisplayBusy
					return retryengine.Outcome{Err: txErr, Retriable: retriable}
				}
				decoded, decErr := packet.Decode(raw, false)
				if decErr != nil {
					return retryengine.Outcome{Err: status.NewError(status.StatusChecksumMismatch, site, decErr.Error()), Retriable: true}
				}
				frag, fragErr := packet.ParseFragment(decoded, wantOpcode)
				if fragErr != nil {
					return retryengine.Outcome{Err: status.NewError(status.StatusInvalidResponse, site, fragErr.Error()), Retriable: true}
				}
				return retryengine.Outcome{Value: frag}
			})
			sleeper.Observe(maxInt(tries, 1))
			recordStats(h.Display, class, maxInt(tries, 1), time.Since(start), rerr == nil)
			if rerr != nil {
				return nil, rerr
			}
			frag := val.(packet.Fragment)
			done, addErr := asm.Add(frag)
			if addErr != nil {
				return nil, status.NewError(status.StatusInvalidResponse, site, addErr.Error())
			}
			if done {
				return asm.Bytes(), nil
			}
		}
		return nil, status.NewError(status.StatusInvalidResponse, site, "multi-part read did not terminate")
	})
	if errInfo != nil {
		return nil, errInfo
	}
	return result.([]byte), nil
}

// GetCapabilities reads and parses the monitor's capabilities string
// (spec.md §4.7, C7).
func GetCapabilities(h *Handle, bus Transport) (*capabilities.Tree, *status.ErrorInfo) {
	raw, errInfo := readMultiPart(h, bus, "ddc.GetCapabilities", retryengine.ClassMultiPartRead,
		func(offset uint16) *packet.Packet { return packet.BuildCapabilitiesRequest(offset) },
		packet.OpCapabilitiesReply)
	if errInfo != nil {
		return nil, errInfo
	}
	tree := capabilities.Parse(string(raw))
	tree.Raw = string(raw)
	return tree, nil
}

// GetTable reads a table-type feature's raw value (spec.md §4.6 "table
// read").
func GetTable(h *Handle, bus Transport, feature byte) ([]byte, *status.ErrorInfo) {
	return readMultiPart(h, bus, "ddc.GetTable", retryengine.ClassMultiPartRead,
		func(offset uint16) *packet.Packet { return packet.BuildTableReadRequest(feature, offset) },
		packet.OpTableReadReply)
}

// SetTable writes a table-type feature's raw value by segmenting it into
// ≤32-byte chunks with 2-byte offsets (spec.md §4.6 "table write").
func SetTable(h *Handle, bus Transport, feature byte, value []byte) *status.ErrorInfo {
	site := "ddc.SetTable"
	const chunkSize = packet.MaxPayloadLen - 4 // opcode + feature + 2-byte offset leave this much room per chunk

	_, errInfo := h.WithLock(site, func() (interface{}, *status.ErrorInfo) {
		sleeper := h.Display.Sleeper
		offset := 0
		for offset < len(value) || offset == 0 {
			end := offset + chunkSize
			if end > len(value) {
				end = len(value)
			}
			chunk := value[offset:end]

			maxTries := maxTriesFor(h.Display, retryengine.ClassMultiPartWrite)
			tries := 0
			start := time.Now()
			_, rerr := retryengine.Run(retryengine.ClassMultiPartWrite, maxTries, nil, nil, site, func(try int) retryengine.Outcome {
				tries = try
				pkt, buildErr := packet.BuildTableWriteFragment(feature, uint16(offset), chunk)
				if buildErr != nil {
					return retryengine.Outcome{Err: status.NewError(status.StatusInvalidArgument, site, buildErr.Error())}
				}
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
			recordStats(h.Display, retryengine.ClassMultiPartWrite, maxInt(tries, 1), time.Since(start), rerr == nil)
			if rerr != nil {
				return nil, rerr
			}
			if end == offset {
				break
			}
			offset = end
		}
		return true, nil
	})
	return errInfo
}
