package usbhid

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"reflect"
)

// Descriptor parsing, adapted from the teacher's generic reflection-based
// USB descriptor reader (Daedaluz-gousb's descriptor.go), trimmed to the
// descriptor kinds a HID Monitor Control interface actually carries:
// device, configuration, interface, endpoint and string. USB 3.x
// SuperSpeed companion descriptors and BOS capability descriptors have
// no DDC/CI analog and are dropped (see DESIGN.md).

type (
	DescriptorType uint8

	Descriptor interface {
		Type() DescriptorType
	}

	DescriptorHeader struct {
		Length         uint8
		DescriptorType DescriptorType
	}

	UnknownDescriptor struct {
		DescriptorHeader
		Data []byte
	}
)

const (
	DescriptorTypeDevice = DescriptorType(iota + 1)
	DescriptorTypeConfig
	DescriptorTypeString
	DescriptorTypeInterface
	DescriptorTypeEndpoint
)

// DescriptorTypeHID is the HID class descriptor (USB HID 1.11 §6.2.1),
// interleaved between a HID interface descriptor and its endpoints.
const DescriptorTypeHID = DescriptorType(0x21)

var descriptorMap = map[DescriptorType]reflect.Type{
	DescriptorTypeDevice:    reflect.TypeOf(DeviceDescriptor{}),
	DescriptorTypeConfig:    reflect.TypeOf(ConfigurationDescriptor{}),
	DescriptorTypeInterface: reflect.TypeOf(InterfaceDescriptor{}),
	DescriptorTypeEndpoint:  reflect.TypeOf(EndpointDescriptor{}),
	DescriptorTypeString:    reflect.TypeOf(StringDescriptor{}),
	DescriptorTypeHID:       reflect.TypeOf(HIDDescriptor{}),
}

func (h DescriptorHeader) Type() DescriptorType { return h.DescriptorType }

type (
	// DeviceDescriptor describes general information about a device.
	DeviceDescriptor struct {
		DescriptorHeader
		BcdUSB             uint16
		BDeviceClass       ClassCode
		BDeviceSubClass    SubClass
		BDeviceProtocol    uint8
		BMaxPacketSize0    uint8
		IDVendor           uint16
		IDProduct          uint16
		BcdDevice          uint16
		IManufacturer      uint8
		IProduct           uint8
		ISerialNumber      uint8
		BNumConfigurations uint8
	}

	// ConfigurationDescriptor describes one configuration of a device.
	ConfigurationDescriptor struct {
		DescriptorHeader
		WTotalLength        uint16
		BNumInterfaces      uint8
		BConfigurationValue uint8
		IConfiguration      uint8
		BmAttributes        uint8
		BMaxPower           uint8
	}

	// InterfaceDescriptor describes a specific interface within a
	// configuration. bInterfaceClass 0x03 (HID) with subclass/protocol
	// matching the USB Monitor Control class marks a candidate for
	// discovery's USB path (spec.md §4.8.6).
	InterfaceDescriptor struct {
		DescriptorHeader
		BInterfaceNumber   uint8
		BAlternateSetting  uint8
		BNumEndpoints      uint8
		BInterfaceClass    ClassCode
		BInterfaceSubClass SubClass
		BInterfaceProtocol uint8
		IInterface         uint8
	}

	// EndpointDescriptor contains the bandwidth requirements of an
	// interface's endpoint.
	EndpointDescriptor struct {
		DescriptorHeader
		BEndpointAddress uint8
		BmAttributes     uint8
		WMaxPacketSize   uint16
		BInterval        uint8
	}

	// StringDescriptor carries a UTF-16LE encoded string (or, at index
	// zero, the device's supported LANGID list).
	StringDescriptor struct {
		DescriptorHeader
		Data []byte
	}

	// HIDDescriptor is the HID class descriptor naming the report
	// descriptor's type and length (USB HID 1.11 §6.2.1).
	HIDDescriptor struct {
		DescriptorHeader
		BcdHID                 uint16
		CountryCode            uint8
		NumDescriptors         uint8
		ReportDescriptorType   uint8
		ReportDescriptorLength uint16
	}
)

const (
	EndpointDirectionIn = 0x80
)

func readDescriptorHeader(i io.Reader) (*DescriptorHeader, error) {
	header := &DescriptorHeader{}
	err := binary.Read(i, binary.BigEndian, header)
	return header, err
}

func newDescriptor(hdr DescriptorHeader) (any, reflect.Value) {
	if t, exist := descriptorMap[hdr.DescriptorType]; exist {
		x := reflect.New(t)
		x.Elem().Field(0).Set(reflect.ValueOf(hdr))
		return x.Interface(), x
	}
	x := reflect.New(reflect.TypeOf(UnknownDescriptor{}))
	x.Elem().Field(0).Set(reflect.ValueOf(hdr))
	return x.Interface(), x
}

func readDescriptor(header *DescriptorHeader, i io.Reader) (Descriptor, error) {
	descriptor, ptrVal := newDescriptor(*header)
	elem := ptrVal.Elem()

loop:
	for idx := 1; idx < elem.NumField(); idx++ {
		field := elem.Field(idx)
		dest := field.Addr().Interface()
		if field.Kind() == reflect.Slice && field.Type() == reflect.TypeOf([]uint8{}) {
			rest, err := ioutil.ReadAll(i)
			field.Set(reflect.ValueOf(rest))
			if err != nil {
				return nil, err
			}
			continue
		}
		if err := binary.Read(i, binary.LittleEndian, dest); err != nil {
			break loop
		}
	}
	return descriptor.(Descriptor), nil
}

// ReadDescriptors streams a sysfs "descriptors" blob, invoking cb for
// each parsed descriptor in order.
func ReadDescriptors(i io.Reader, cb func(d Descriptor)) error {
	for {
		hdr, err := readDescriptorHeader(i)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		body := make([]byte, int(hdr.Length)-2)
		if _, err := io.ReadFull(i, body); err != nil {
			return err
		}
		d, err := readDescriptor(hdr, bytes.NewReader(body))
		if err != nil {
			return err
		}
		cb(d)
	}
}
