// Package ddc implements a DDC/CI protocol engine: packet framing, a
// bounded retry engine with adaptive inter-transaction delays, per-display
// serialization, display discovery over I2C (and optionally USB HID), and
// the VCP get/set/table exchange built on top of all of the above.
//
// See spec.md §1-§2 for the component breakdown this package implements
// (C5, C6, C9, C10); the leaf components live in the i2c, packet,
// retryengine, dsa, capabilities, discovery and usbhid subpackages.
package ddc
