package ddc

import (
	"testing"

	"github.com/ddcio/ddcci/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetTableChunkingFitsPayloadBudget is a regression test for the
// off-by-one that once made BuildTableWriteFragment/chunkSize allow a
// chunk one byte too large to ever fit the 32-byte framed payload: a
// 30-byte table value must split into a 28-byte chunk and a 2-byte
// remainder, and every written frame must itself decode cleanly.
func TestSetTableChunkingFitsPayloadBudget(t *testing.T) {
	value := make([]byte, 30)
	for i := range value {
		value[i] = byte(i)
	}
	fake := &fakeTransport{}
	h := NewHandle(newTestDisplay())

	errInfo := SetTable(h, fake, 0xE6, value)
	require.Nil(t, errInfo)
	require.Len(t, fake.writes, 2)

	first, err := packet.Decode(fake.writes[0], true)
	require.NoError(t, err)
	assert.Equal(t, byte(packet.OpTableWrite), first.Opcode)
	assert.Equal(t, byte(0xE6), first.Data[0])
	assert.Equal(t, value[0:28], first.Data[3:])

	second, err := packet.Decode(fake.writes[1], true)
	require.NoError(t, err)
	offset := uint16(second.Data[1])<<8 | uint16(second.Data[2])
	assert.Equal(t, uint16(28), offset)
	assert.Equal(t, value[28:30], second.Data[3:])
}

// TestSetTableSmallValueSingleChunk covers a value that fits in one
// chunk: exactly one frame is written.
func TestSetTableSmallValueSingleChunk(t *testing.T) {
	fake := &fakeTransport{}
	h := NewHandle(newTestDisplay())

	errInfo := SetTable(h, fake, 0xE6, []byte{1, 2, 3})
	require.Nil(t, errInfo)
	assert.Len(t, fake.writes, 1)
}

// TestGetCapabilitiesMultiPart exercises a two-fragment multi-part read
// (one content fragment plus the zero-length terminator), end to end
// through the real assembler and parser.
func TestGetCapabilitiesMultiPart(t *testing.T) {
	content := []byte("(prot(monitor)type(lcd))")
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: fragmentWire(t, packet.OpCapabilitiesReply, 0, content)},
		{bytes: fragmentWire(t, packet.OpCapabilitiesReply, uint16(len(content)), nil)},
	}}
	h := NewHandle(newTestDisplay())

	tree, errInfo := GetCapabilities(h, fake)
	require.Nil(t, errInfo)
	assert.Equal(t, string(content), tree.Raw)
}

// TestGetTableMultiPart exercises GetTable's raw-bytes multi-part read.
func TestGetTableMultiPart(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: fragmentWire(t, packet.OpTableReadReply, 0, payload)},
		{bytes: fragmentWire(t, packet.OpTableReadReply, uint16(len(payload)), nil)},
	}}
	h := NewHandle(newTestDisplay())

	raw, errInfo := GetTable(h, fake, 0xE6)
	require.Nil(t, errInfo)
	assert.Equal(t, payload, raw)
}
