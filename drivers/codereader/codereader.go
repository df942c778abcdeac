// Package codereader provides a driver for the SparkFun Tiny Code Reader,
// an I2C QR code scanner.
//
// The device continuously scans and latches the most recent decode. A single
// read transaction returns a little-endian uint16 content length followed by
// the content bytes; length 0 means nothing has been decoded since the last
// read. The device clears the latch once read.
package codereader

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Default I2C address.
const Address = 0x0C

// MaxContentLen is the device-side decode buffer size.
const MaxContentLen = 254

var ErrBadLength = errors.New("codereader: content length out of range")

// Device wraps an I2C connection to a Tiny Code Reader.
type Device struct {
	bus     drivers.I2C
	Address uint16

	buf [2 + MaxContentLen]byte
}

// New creates a driver handle. The I2C bus must already be configured; the
// reader needs no configuration.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, Address: Address}
}

// Connected probes the device with a minimal read.
func (d *Device) Connected() bool {
	return d.bus.Tx(d.Address, nil, d.buf[:2]) == nil
}

// Poll reads the latest decode. ok is false when no code has been decoded
// since the previous poll. The returned string is a copy; the internal
// buffer is reused across calls.
func (d *Device) Poll() (content string, ok bool, err error) {
	if err := d.bus.Tx(d.Address, nil, d.buf[:]); err != nil {
		return "", false, err
	}
	n := uint16(d.buf[0]) | uint16(d.buf[1])<<8
	if n == 0 {
		return "", false, nil
	}
	if n > MaxContentLen {
		return "", false, ErrBadLength
	}
	return string(d.buf[2 : 2+n]), true, nil
}
