// Package ism330 provides a driver for the ISM330DHCX 6-axis IMU
// (3-axis accelerometer + 3-axis gyroscope).
//
// The driver configures continuous output-data-rate sampling and exposes a
// poll API:
//
//	ready, err := d.DataReady()   // STATUS_REG check (fast)
//	err := d.ReadSample(&s)       // 12-byte burst read, gyro then accel
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package ism330

import (
	"errors"

	"tinygo.org/x/drivers"
)

// I2C addresses. AddressAlt applies when SDO/SA0 is pulled low.
const (
	Address    = 0x6B
	AddressAlt = 0x6A
)

// WhoAmI is the fixed chip identification byte.
const WhoAmI = 0x6B

// Registers.
const (
	regWhoAmI  = 0x0F
	regCtrl1XL = 0x10 // accelerometer ODR + full scale
	regCtrl2G  = 0x11 // gyroscope ODR + full scale
	regCtrl3C  = 0x12 // BDU, IF_INC, SW_RESET
	regStatus  = 0x1E
	regOutXLG  = 0x22 // gyro X low; accel follows at 0x28
)

// CTRL3_C bits.
const (
	ctrl3SwReset = 0x01
	ctrl3IfInc   = 0x04
	ctrl3BDU     = 0x40
)

// STATUS_REG bits.
const (
	statusXLDA = 0x01
	statusGDA  = 0x02
)

// Errors returned by the driver.
var (
	ErrWrongChip = errors.New("ism330: unexpected WHO_AM_I")
	ErrNotReady  = errors.New("ism330: data not ready")
)

// ODR selects the output data rate for both sensors.
type ODR uint8

const (
	ODR12Hz5 ODR = 0x1
	ODR26Hz  ODR = 0x2
	ODR52Hz  ODR = 0x3
	ODR104Hz ODR = 0x4 // nearest rate at or above 100 Hz sampling
	ODR208Hz ODR = 0x5
	ODR416Hz ODR = 0x6
)

// AccelRange selects the accelerometer full scale. The zero value keeps the
// current setting.
type AccelRange uint8

const (
	Accel2G AccelRange = iota + 1
	Accel4G
	Accel8G
	Accel16G
)

// CTRL1_XL FS_XL field codes, indexed by AccelRange-1.
var accelFS = [4]byte{0x0, 0x2, 0x3, 0x1}

// GyroRange selects the gyroscope full scale. The zero value keeps the
// current setting.
type GyroRange uint8

const (
	Gyro250DPS GyroRange = iota + 1
	Gyro500DPS
	Gyro1000DPS
	Gyro2000DPS
)

// CTRL2_G FS_G field codes, indexed by GyroRange-1.
var gyroFS = [4]byte{0x0, 0x1, 0x2, 0x3}

// Config controls sampling. Zero values select the defaults noted per field.
type Config struct {
	Address    uint16     // default 0x6B
	ODR        ODR        // default ODR104Hz
	AccelRange AccelRange // default Accel4G
	GyroRange  GyroRange  // default Gyro500DPS
}

// Device wraps an I2C connection to an ISM330DHCX.
type Device struct {
	bus     drivers.I2C
	Address uint16

	odr   ODR
	arng  AccelRange
	grng  GyroRange
	wbuf  [2]byte
	rbuf  [12]byte // reuse buffer to avoid allocations
	burst [1]byte
}

// New creates a driver handle. The I2C bus must already be configured.
// This function does not touch the hardware.
func New(bus drivers.I2C) *Device {
	return &Device{
		bus:     bus,
		Address: Address,
		odr:     ODR104Hz,
		arng:    Accel4G,
		grng:    Gyro500DPS,
	}
}

// Configure verifies chip identity, resets it, and enables continuous
// sampling at the configured rate and full scales.
func (d *Device) Configure(cfgs ...Config) error {
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Address != 0 {
			d.Address = c.Address
		}
		if c.ODR != 0 {
			d.odr = c.ODR
		}
		if c.AccelRange != 0 {
			d.arng = c.AccelRange
		}
		if c.GyroRange != 0 {
			d.grng = c.GyroRange
		}
	}

	id, err := d.readReg(regWhoAmI)
	if err != nil {
		return err
	}
	if id != WhoAmI {
		return ErrWrongChip
	}

	// Block data update + register auto-increment for burst reads.
	if err := d.writeReg(regCtrl3C, ctrl3BDU|ctrl3IfInc); err != nil {
		return err
	}
	if err := d.writeReg(regCtrl1XL, byte(d.odr)<<4|accelFS[d.arng-1]<<2); err != nil {
		return err
	}
	return d.writeReg(regCtrl2G, byte(d.odr)<<4|gyroFS[d.grng-1]<<2)
}

// Reset issues a software reset. The device needs ~50µs before reuse.
func (d *Device) Reset() error {
	return d.writeReg(regCtrl3C, ctrl3SwReset)
}

// Connected reports whether a device answering with the right WHO_AM_I is
// present on the bus.
func (d *Device) Connected() bool {
	id, err := d.readReg(regWhoAmI)
	return err == nil && id == WhoAmI
}

// DataReady reports whether both accelerometer and gyroscope have a fresh
// sample pending.
func (d *Device) DataReady() (bool, error) {
	st, err := d.readReg(regStatus)
	if err != nil {
		return false, err
	}
	return st&(statusXLDA|statusGDA) == (statusXLDA | statusGDA), nil
}

// Sample holds one raw 6-axis reading.
type Sample struct {
	RawGX, RawGY, RawGZ int16
	RawAX, RawAY, RawAZ int16

	arng AccelRange
	grng GyroRange
}

// ReadSample burst-reads all six axes into out. The read is a single bus
// transaction so both sensors come from the same output cycle.
func (d *Device) ReadSample(out *Sample) error {
	d.wbuf[0] = regOutXLG
	if err := d.bus.Tx(d.Address, d.wbuf[:1], d.rbuf[:]); err != nil {
		return err
	}
	b := d.rbuf[:]
	out.RawGX = int16(uint16(b[0]) | uint16(b[1])<<8)
	out.RawGY = int16(uint16(b[2]) | uint16(b[3])<<8)
	out.RawGZ = int16(uint16(b[4]) | uint16(b[5])<<8)
	out.RawAX = int16(uint16(b[6]) | uint16(b[7])<<8)
	out.RawAY = int16(uint16(b[8]) | uint16(b[9])<<8)
	out.RawAZ = int16(uint16(b[10]) | uint16(b[11])<<8)
	out.arng = d.arng
	out.grng = d.grng
	return nil
}

// Accelerometer sensitivities in µg/LSB per full scale.
func accelSensUG(r AccelRange) int32 {
	switch r {
	case Accel2G:
		return 61
	case Accel4G:
		return 122
	case Accel8G:
		return 244
	default:
		return 488
	}
}

// Gyroscope sensitivities in µdps/LSB per full scale.
func gyroSensUDPS(r GyroRange) int32 {
	switch r {
	case Gyro250DPS:
		return 8750
	case Gyro500DPS:
		return 17500
	case Gyro1000DPS:
		return 35000
	default:
		return 70000
	}
}

// AccelG returns acceleration in g for the three axes.
func (s Sample) AccelG() (x, y, z float32) {
	k := float32(accelSensUG(s.arng)) / 1e6
	return float32(s.RawAX) * k, float32(s.RawAY) * k, float32(s.RawAZ) * k
}

// GyroDPS returns angular rate in degrees per second for the three axes.
func (s Sample) GyroDPS() (x, y, z float32) {
	k := float32(gyroSensUDPS(s.grng)) / 1e6
	return float32(s.RawGX) * k, float32(s.RawGY) * k, float32(s.RawGZ) * k
}

func (d *Device) readReg(reg byte) (byte, error) {
	d.wbuf[0] = reg
	if err := d.bus.Tx(d.Address, d.wbuf[:1], d.burst[:1]); err != nil {
		return 0, err
	}
	return d.burst[0], nil
}

func (d *Device) writeReg(reg, val byte) error {
	d.wbuf[0] = reg
	d.wbuf[1] = val
	return d.bus.Tx(d.Address, d.wbuf[:2], nil)
}
