package ddc

import (
	"testing"

	"github.com/ddcio/ddcci/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: fragmentWire(t, packet.OpIdentificationReply, 0, payload)},
		{bytes: fragmentWire(t, packet.OpIdentificationReply, uint16(len(payload)), nil)},
	}}
	h := NewHandle(newTestDisplay())

	raw, errInfo := Identify(h, fake)
	require.Nil(t, errInfo)
	assert.Equal(t, payload, raw)
}

func TestSaveSettings(t *testing.T) {
	fake := &fakeTransport{}
	h := NewHandle(newTestDisplay())

	errInfo := SaveSettings(h, fake)
	require.Nil(t, errInfo)
	require.Len(t, fake.writes, 1)

	pkt, err := packet.Decode(fake.writes[0], true)
	require.NoError(t, err)
	assert.Equal(t, byte(packet.OpSaveCurrentSettings), pkt.Opcode)
}
