package usbhid

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encode writes a little-endian descriptor body with a big-endian
// 2-byte header in front, mirroring the wire layout ReadDescriptors
// expects (header read big-endian per the teacher's original code,
// body fields little-endian).
func encodeDescriptor(t *testing.T, descType DescriptorType, body interface{}) []byte {
	t.Helper()
	var bodyBuf bytes.Buffer
	require.NoError(t, binary.Write(&bodyBuf, binary.LittleEndian, body))

	var out bytes.Buffer
	require.NoError(t, binary.Write(&out, binary.BigEndian, DescriptorHeader{
		Length:         uint8(2 + bodyBuf.Len()),
		DescriptorType: descType,
	}))
	out.Write(bodyBuf.Bytes())
	return out.Bytes()
}

func TestReadDescriptorsFindsHIDInterfaceAndEndpoint(t *testing.T) {
	var blob bytes.Buffer
	blob.Write(encodeDescriptor(t, DescriptorTypeInterface, struct {
		BInterfaceNumber   uint8
		BAlternateSetting  uint8
		BNumEndpoints      uint8
		BInterfaceClass    ClassCode
		BInterfaceSubClass SubClass
		BInterfaceProtocol uint8
		IInterface         uint8
	}{BInterfaceNumber: 1, BNumEndpoints: 1, BInterfaceClass: ClassCodeInterfaceHID}))
	blob.Write(encodeDescriptor(t, DescriptorTypeEndpoint, struct {
		BEndpointAddress uint8
		BmAttributes     uint8
		WMaxPacketSize   uint16
		BInterval        uint8
	}{BEndpointAddress: 0x81, BmAttributes: 0x03, WMaxPacketSize: 16, BInterval: 10}))

	var iface *InterfaceDescriptor
	var epSize int
	err := ReadDescriptors(bytes.NewReader(blob.Bytes()), func(d Descriptor) {
		switch v := d.(type) {
		case *InterfaceDescriptor:
			iface = v
		case *EndpointDescriptor:
			epSize = int(v.WMaxPacketSize)
		}
	})
	require.NoError(t, err)
	require.NotNil(t, iface)
	assert.Equal(t, ClassCodeInterfaceHID, iface.BInterfaceClass)
	assert.Equal(t, 16, epSize)
}

func TestReadDescriptorsHandlesUnknownType(t *testing.T) {
	blob := encodeDescriptor(t, DescriptorType(0x7F), struct{ A, B uint8 }{1, 2})
	var sawUnknown bool
	err := ReadDescriptors(bytes.NewReader(blob), func(d Descriptor) {
		if _, ok := d.(*UnknownDescriptor); ok {
			sawUnknown = true
		}
	})
	require.NoError(t, err)
	assert.True(t, sawUnknown)
}
