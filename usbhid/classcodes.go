package usbhid

import "fmt"

// Class codes assigned by the USB-IF (https://www.usb.org/defined-class-codes),
// adapted from the teacher's classcodes.go. Only the handful relevant to
// identifying a HID Monitor Control interface are given names; everything
// else falls through to classCodeMap's "Unknown" formatting.

type (
	ClassCode uint8
	SubClass  uint8
)

func (code ClassCode) String() string {
	if s, ok := classCodeMap[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%.2X)", uint8(code))
}

const (
	ClassCodeInterfaceHID = ClassCode(0x03)
	// SubClassNone is the "no subclass" value a
	// Monitor Control device reports — it is not a boot-protocol
	// keyboard/mouse, so bInterfaceSubClass is 0.
	SubClassNone = SubClass(0x00)
)

var classCodeMap = map[ClassCode]string{
	0x00:                  "UseInterfaceDescriptors",
	ClassCodeInterfaceHID: "InterfaceHID",
}
