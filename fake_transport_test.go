package ddc

import (
	"errors"
	"testing"

	"github.com/ddcio/ddcci/dsa"
	"github.com/ddcio/ddcci/packet"
	"github.com/ddcio/ddcci/stats"
	"github.com/stretchr/testify/require"
)

// fakeTransport scripts I2C wire responses for driving the real
// decode/classify/dialect pipeline without hardware (spec.md §8's seed
// scenarios). Each Read call consumes the next scripted response; Write
// always succeeds and just records what was sent.
type fakeTransport struct {
	responses []fakeResponse
	next      int
	writes    [][]byte
}

type fakeResponse struct {
	bytes []byte
	err   error
}

func (f *fakeTransport) SetSlaveAddress(addr int, force bool) error { return nil }

func (f *fakeTransport) Write(data []byte) (int, error) {
	f.writes = append(f.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (f *fakeTransport) Read(buf []byte) (int, error) {
	if f.next >= len(f.responses) {
		return 0, errors.New("fakeTransport: response script exhausted")
	}
	r := f.responses[f.next]
	f.next++
	if r.err != nil {
		return 0, r.err
	}
	return copy(buf, r.bytes), nil
}

// replyXORSeed is the monitor->host virtual source byte DDC/CI checksums
// XOR in (spec.md §4.2), mirroring packet.go's private xorSeed(false).
const replyXORSeed = 0x50

// nullResponseFrame builds the canonical null-response wire frame: a
// 3-byte dest/zero-length/checksum frame (spec.md glossary). packet.Encode
// cannot produce this (it always frames at least an opcode byte), so it
// is assembled by hand the same way packet.Decode validates it.
func nullResponseFrame(dest byte) []byte {
	lenByte := byte(0x80)
	ck := replyXORSeed ^ dest ^ lenByte
	return []byte{dest, lenByte, ck}
}

// padToCeiling pads wire with trailing filler up to total bytes,
// simulating a real I2C read: the transfer always returns the full
// requested buffer, so a reply shorter than the ceiling still arrives
// with meaningless bytes past its own declared length.
func padToCeiling(wire []byte, total int) []byte {
	out := make([]byte, total)
	copy(out, wire)
	for i := len(wire); i < total; i++ {
		out[i] = 0xFF
	}
	return out
}

func vcpReplyWire(t testing.TB, feature byte, unsupported bool, maxVal, curVal uint16) []byte {
	t.Helper()
	un := byte(0)
	if unsupported {
		un = 1
	}
	p := &packet.Packet{
		Destination: packet.HostAddress,
		Opcode:      packet.OpVCPReply,
		Data:        []byte{feature, un, byte(maxVal >> 8), byte(maxVal), byte(curVal >> 8), byte(curVal)},
	}
	wire, err := packet.Encode(p, false)
	require.NoError(t, err)
	return wire
}

func fragmentWire(t testing.TB, opcode byte, offset uint16, payload []byte) []byte {
	t.Helper()
	data := append([]byte{byte(offset >> 8), byte(offset)}, payload...)
	p := &packet.Packet{Destination: packet.HostAddress, Opcode: opcode, Data: data}
	wire, err := packet.Encode(p, false)
	require.NoError(t, err)
	return padToCeiling(wire, fragmentWireLen)
}

func newTestDisplay() *Display {
	return &Display{Sleeper: dsa.New(), Stats: stats.NewRegistry()}
}
