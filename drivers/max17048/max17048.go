// Package max17048 provides a driver for the MAX17048 fuel gauge.
//
// Telemetry is integer-scaled from the 16-bit big-endian registers:
// VCELL at 78.125 µV/LSB, SOC at 1/256 %, CRATE at 0.208 %/hr.
package max17048

import (
	"tinygo.org/x/drivers"
)

// I2C address (fixed).
const Address = 0x36

// Registers.
const (
	regVCell   = 0x02
	regSOC     = 0x04
	regMode    = 0x06
	regVersion = 0x08
	regConfig  = 0x0C
	regCRate   = 0x16
	regCmd     = 0xFE
)

const cmdPOR = 0x5400

// Device wraps an I2C connection to a MAX17048.
type Device struct {
	bus     drivers.I2C
	Address uint16

	w [3]byte
	r [2]byte
}

// New creates a driver handle. The gauge needs no configuration; it models
// the cell continuously from power-on.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, Address: Address}
}

// Connected reports whether the gauge answers its version register.
func (d *Device) Connected() bool {
	_, err := d.Version()
	return err == nil
}

// Version returns the silicon version word.
func (d *Device) Version() (uint16, error) {
	return d.readWord(regVersion)
}

// CellMilliV returns the cell voltage in mV.
func (d *Device) CellMilliV() (int32, error) {
	raw, err := d.readWord(regVCell)
	if err != nil {
		return 0, err
	}
	// 78.125 µV/LSB.
	return int32((int64(raw) * 78125) / 1_000_000), nil
}

// SOCPct returns the modeled state of charge in percent.
func (d *Device) SOCPct() (float32, error) {
	raw, err := d.readWord(regSOC)
	if err != nil {
		return 0, err
	}
	return float32(raw) / 256, nil
}

// RatePctPerHour returns the charge (+) or discharge (-) rate in %/hour.
func (d *Device) RatePctPerHour() (float32, error) {
	raw, err := d.readWord(regCRate)
	if err != nil {
		return 0, err
	}
	return float32(int16(raw)) * 0.208, nil
}

// Reset issues a power-on reset of the gauge model.
func (d *Device) Reset() error {
	return d.writeWord(regCmd, cmdPOR)
}

func (d *Device) readWord(reg byte) (uint16, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	// Big-endian: HIGH then LOW.
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

func (d *Device) writeWord(reg byte, val uint16) error {
	d.w[0] = reg
	d.w[1] = byte(val >> 8)
	d.w[2] = byte(val)
	return d.bus.Tx(d.Address, d.w[:3], nil)
}
