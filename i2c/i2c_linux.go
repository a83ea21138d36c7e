// Package i2c is the raw I2C transport (spec.md §4.1, C1): opening
// /dev/i2c-N character devices, selecting the 7-bit slave address via
// ioctl, and framed read/write, with OS errors classified into the
// protocol-level error taxonomy the retry engine understands.
package i2c

import (
	"fmt"
	"sync/atomic"
	"syscall"

	ioctl "github.com/daedaluz/goioctl"
	"golang.org/x/sys/unix"
)

const (
	i2cSlave      = 0x0703
	i2cSlaveForce = 0x0706

	// DDCCIAddress is the I2C slave address DDC/CI command traffic uses.
	DDCCIAddress = 0x37
	// EDIDAddress is the I2C slave address EDID identification uses.
	EDIDAddress = 0x50
)

// Kind is the protocol-level classification of a transport failure
// (spec.md §4.1).
type Kind int

const (
	KindNone Kind = iota
	KindRetriable
	KindDisplayBusy
	KindFatalForDisplay
	KindFatalReport
)

func (k Kind) String() string {
	switch k {
	case KindRetriable:
		return "retriable"
	case KindDisplayBusy:
		return "display-busy"
	case KindFatalForDisplay:
		return "fatal-for-display"
	case KindFatalReport:
		return "fatal-and-report"
	default:
		return "none"
	}
}

// Classify maps a raw OS error (and, for reads, a short-read condition)
// into the transport error taxonomy of spec.md §4.1.
func Classify(err error, gotLen, wantLen int) Kind {
	if err == nil {
		if gotLen < wantLen {
			return KindRetriable
		}
		return KindNone
	}
	switch {
	case isErrno(err, unix.EAGAIN), isErrno(err, unix.ETIMEDOUT):
		return KindRetriable
	case isErrno(err, unix.EBUSY):
		return KindDisplayBusy
	case isErrno(err, unix.ENODEV), isErrno(err, unix.ENXIO):
		return KindFatalForDisplay
	default:
		return KindFatalReport
	}
}

func isErrno(err error, target unix.Errno) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	return unix.Errno(errno) == target
}

// Bus is an open handle on an I2C character device.
type Bus struct {
	fd     int
	closed atomic.Bool
}

// Open opens /dev/i2c-N read-write.
func Open(busNumber int) (*Bus, error) {
	path := fmt.Sprintf("/dev/i2c-%d", busNumber)
	fd, err := syscall.Open(path, syscall.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &Bus{fd: fd}, nil
}

// SetSlaveAddress selects the 7-bit slave address subsequent Read/Write
// calls talk to. Force requests the unchecked-ownership ioctl variant,
// used only after the normal variant reports display-busy (spec.md §4.1
// — "the core never forces by default").
func (b *Bus) SetSlaveAddress(addr int, force bool) error {
	req := uintptr(i2cSlave)
	if force {
		req = uintptr(i2cSlaveForce)
	}
	return ioctl.Ioctl(uintptr(b.fd), req, uintptr(addr))
}

// Write sends bytes to the currently selected slave address.
func (b *Bus) Write(data []byte) (int, error) {
	if b.closed.Load() {
		return 0, syscall.EBADF
	}
	return syscall.Write(b.fd, data)
}

// Read reads into buf from the currently selected slave address.
func (b *Bus) Read(buf []byte) (int, error) {
	if b.closed.Load() {
		return 0, syscall.EBADF
	}
	return syscall.Read(b.fd, buf)
}

// Close releases the underlying file descriptor. Safe to call once;
// subsequent calls return an error rather than double-closing.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("i2c: bus already closed")
	}
	return syscall.Close(b.fd)
}

// Fd exposes the raw descriptor for callers that need it (e.g. sysfs
// realpath correlation during discovery).
func (b *Bus) Fd() int { return b.fd }
