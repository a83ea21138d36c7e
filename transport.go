package ddc

// Transport is the minimal I2C surface every C6 operation needs:
// select a slave address, write a request, read a reply. *i2c.Bus
// satisfies this implicitly; tests substitute a scripted fake so the
// wire-decode-classify-dialect chain (GetVCP/SetVCP/GetCapabilities/
// GetTable/SetTable and the discovery dialect tree) can run against
// spec.md §8's seed scenarios without real hardware.
type Transport interface {
	SetSlaveAddress(addr int, force bool) error
	Write(data []byte) (int, error)
	Read(buf []byte) (int, error)
}
