// Package usbhid is the USB HID Monitor Control transport, symmetric to
// the i2c package from the protocol engine's point of view (spec.md §1,
// §4.1, §4.8.6). It is adapted from the teacher's usbfs ioctl wrapper
// and hid report-descriptor logic (Daedaluz-gousb's usbfs and hid
// packages), aimed at the USB Monitor Control class's VCP feature
// report instead of a general HID report.
package usbhid

import (
	"encoding/binary"
	"fmt"
	"syscall"

	"github.com/ddcio/ddcci/usbfs"
)

const (
	// Monitor Control class feature report IDs, per the USB Device
	// Class Definition for Monitor Devices: VCP requests travel as HID
	// feature report 0x02 ("Get/Set VCP opcode").
	reportIDVCP          = 0x02
	reportIDVESAVersion  = 0x01
	controlTimeoutMillis = 1000

	getReport = 0x01
	setReport = 0x09

	reqTypeGetFeature = 0xA1 // in | class | interface
	reqTypeSetFeature = 0x21 // out | class | interface
)

// Device is one opened USB Monitor Control HID device.
type Device struct {
	fd        int
	iface     int
	reportLen int
}

// Open opens the USB device node for busNumber/deviceNumber and claims
// iface, the interface advertising the Monitor Control HID class
// (spec.md §4.8.6 "USB HID device tree for the USB path").
func Open(busNumber, deviceNumber, iface, reportLen int) (*Device, error) {
	if reportLen <= 0 {
		reportLen = 8 // default: the Get VCP reply's report ID + opcode + feature + unsupported flag + 4 value bytes
	}
	fd, err := usbfs.OpenDevice(busNumber, deviceNumber)
	if err != nil {
		return nil, err
	}
	if err := usbfs.ClaimInterface(fd, iface); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("usbhid: claim interface %d: %w", iface, err)
	}
	return &Device{fd: fd, iface: iface, reportLen: reportLen}, nil
}

// Close releases the interface and closes the device node.
func (d *Device) Close() error {
	usbfs.ReleaseInterface(d.fd, d.iface)
	return syscall.Close(d.fd)
}

// GetFeatureReport issues a HID class GET_REPORT(Feature) control
// transfer for the given report ID.
func (d *Device) GetFeatureReport(reportID uint8) ([]byte, error) {
	buf := make([]byte, d.reportLen)
	value := uint16(0x03)<<8 | uint16(reportID) // report type 3 = Feature
	n, err := usbfs.ControlTransfer(d.fd, reqTypeGetFeature, getReport, value, uint16(d.iface), controlTimeoutMillis, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// SetFeatureReport issues a HID class SET_REPORT(Feature) control
// transfer.
func (d *Device) SetFeatureReport(reportID uint8, data []byte) error {
	value := uint16(0x03)<<8 | uint16(reportID)
	payload := append([]byte{reportID}, data...)
	_, err := usbfs.ControlTransfer(d.fd, reqTypeSetFeature, setReport, value, uint16(d.iface), controlTimeoutMillis, payload)
	return err
}

// GetVCP issues the Monitor Control class's "Get VCP Feature" request:
// a feature report carrying the opcode and feature code, read back with
// the monitor's reply in the same report layout DDC/CI's opcode 0x02
// reply uses (spec.md §4.6 — symmetric to the I2C VCP request/reply).
func (d *Device) GetVCP(feature byte) (current, maximum uint16, unsupported bool, err error) {
	req := make([]byte, d.reportLen-1)
	req[0] = 0x01 // VESA "Get VCP Feature" opcode
	req[1] = feature
	if setErr := d.SetFeatureReport(reportIDVCP, req); setErr != nil {
		return 0, 0, false, setErr
	}
	reply, getErr := d.GetFeatureReport(reportIDVCP)
	if getErr != nil {
		return 0, 0, false, getErr
	}
	if len(reply) < 8 {
		return 0, 0, false, fmt.Errorf("usbhid: short VCP feature report (%d bytes)", len(reply))
	}
	// reply layout: [reportID, opcode, feature, unsupported, maxHi, maxLo, curHi, curLo, ...]
	unsupported = reply[3] != 0
	maximum = binary.BigEndian.Uint16(reply[4:6])
	current = binary.BigEndian.Uint16(reply[6:8])
	return current, maximum, unsupported, nil
}

// SetVCP issues the Monitor Control class's "Set VCP Feature" request.
func (d *Device) SetVCP(feature byte, value uint16) error {
	req := make([]byte, d.reportLen-1)
	req[0] = 0x03 // VESA "Set VCP Feature" opcode
	req[1] = feature
	binary.BigEndian.PutUint16(req[2:4], value)
	return d.SetFeatureReport(reportIDVCP, req)
}
