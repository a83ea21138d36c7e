package usbhid

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
)

// Enumeration over /sys/bus/usb/devices, adapted from the teacher's
// sysfs.go (Daedaluz-gousb), trimmed to what discovery needs: finding
// HID-class interfaces and their bus/device/interface numbers plus the
// interrupt-IN endpoint's max packet size (spec.md §4.8.6 "enumerate USB
// HID devices whose interface matches the USB Monitor Control class").
const sysfsDeviceDir = "/sys/bus/usb/devices"

// Candidate is one HID interface discovery should probe as a possible
// Monitor Control transport.
type Candidate struct {
	BusNumber    int
	DeviceNumber int
	Interface    int
	ReportLen    int
	sysfsName    string
}

// Identity is the USB-side analogue of an EDID identity tuple (spec.md
// §3, §4.8.6): vendor/product/serial read straight from sysfs, since a
// HID Monitor Control device need not expose EDID over its HID
// interface the way it would over I2C slave 0x50.
type Identity struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
}

func (id Identity) Key() string {
	return fmt.Sprintf("usb-%04X-%04X-%s", id.VendorID, id.ProductID, id.Serial)
}

// ReadIdentity reads c's parent device's idVendor/idProduct/serial sysfs
// attributes. Devices that expose no serial attribute yield an empty
// Serial, matching real-world HID monitors that omit it.
func (c Candidate) ReadIdentity() (Identity, error) {
	vendor, err := readSysfsAttrHex(c.sysfsName, "idVendor")
	if err != nil {
		return Identity{}, err
	}
	product, err := readSysfsAttrHex(c.sysfsName, "idProduct")
	if err != nil {
		return Identity{}, err
	}
	serial, _ := ioutil.ReadFile(fmt.Sprintf("%s/%s/serial", sysfsDeviceDir, c.sysfsName))
	return Identity{VendorID: uint16(vendor), ProductID: uint16(product), Serial: strings.TrimSpace(string(serial))}, nil
}

func readSysfsAttrInt(devName, attr string) (int, error) {
	data, err := ioutil.ReadFile(fmt.Sprintf("%s/%s/%s", sysfsDeviceDir, devName, attr))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func readSysfsAttrHex(devName, attr string) (int, error) {
	data, err := ioutil.ReadFile(fmt.Sprintf("%s/%s/%s", sysfsDeviceDir, devName, attr))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 16, 64)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func openSysfsAttr(devName, attr string) (*os.File, error) {
	return os.Open(fmt.Sprintf("%s/%s/%s", sysfsDeviceDir, devName, attr))
}

func getDeviceAddress(devName string) (bus, dev int, err error) {
	bus, err = readSysfsAttrInt(devName, "busnum")
	if err != nil {
		return 0, 0, err
	}
	dev, err = readSysfsAttrInt(devName, "devnum")
	if err != nil {
		return 0, 0, err
	}
	return bus, dev, nil
}

// EnumerateHIDCandidates walks every USB device's binary descriptor
// blob and returns one Candidate per HID-class interface found.
func EnumerateHIDCandidates() ([]Candidate, error) {
	entries, err := ioutil.ReadDir(sysfsDeviceDir)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}
		f, err := openSysfsAttr(name, "descriptors")
		if err != nil {
			continue
		}
		bus, dev, addrErr := getDeviceAddress(name)
		if addrErr != nil {
			f.Close()
			continue
		}

		var curIface *InterfaceDescriptor
		var curEpMaxPacket int
		readErr := ReadDescriptors(f, func(d Descriptor) {
			switch desc := d.(type) {
			case *InterfaceDescriptor:
				if curIface != nil && curIface.BInterfaceClass == ClassCodeInterfaceHID {
					candidates = append(candidates, Candidate{
						BusNumber: bus, DeviceNumber: dev,
						Interface: int(curIface.BInterfaceNumber), ReportLen: curEpMaxPacket,
						sysfsName: name,
					})
				}
				curIface = desc
				curEpMaxPacket = 0
			case *EndpointDescriptor:
				if desc.BEndpointAddress&EndpointDirectionIn != 0 && int(desc.WMaxPacketSize) > curEpMaxPacket {
					curEpMaxPacket = int(desc.WMaxPacketSize)
				}
			}
		})
		f.Close()
		if readErr != nil {
			continue
		}
		if curIface != nil && curIface.BInterfaceClass == ClassCodeInterfaceHID {
			candidates = append(candidates, Candidate{
				BusNumber: bus, DeviceNumber: dev,
				Interface: int(curIface.BInterfaceNumber), ReportLen: curEpMaxPacket,
				sysfsName: name,
			})
		}
	}
	return candidates, nil
}
