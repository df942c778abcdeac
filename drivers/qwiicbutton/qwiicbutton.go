// Package qwiicbutton provides a driver for the SparkFun Qwiic Button, an
// ATTiny-based I2C button with latched press/click event bits and a built-in
// LED.
//
// The device debounces in firmware; the host reads the status register and
// clears event bits once consumed:
//
//	pressed, _ := d.IsPressed()
//	clicked, _ := d.HasBeenClicked()
//	_ = d.ClearEventBits()
package qwiicbutton

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Default I2C address.
const Address = 0x6F

// DeviceID is the fixed identification byte.
const DeviceID = 0x5D

// Registers.
const (
	regID            = 0x00
	regStatus        = 0x03
	regInterruptCfg  = 0x04
	regDebounceTime  = 0x05 // uint16, ms
	regLEDBrightness = 0x19
	regLEDPulseCycle = 0x1A // uint16, ms
	regLEDOffTime    = 0x1C // uint16, ms
)

// Status register bits.
const (
	statusEventAvailable = 0x01
	statusHasBeenClicked = 0x02
	statusIsPressed      = 0x04
)

var ErrWrongChip = errors.New("qwiicbutton: unexpected device ID")

// Device wraps an I2C connection to a Qwiic Button.
type Device struct {
	bus     drivers.I2C
	Address uint16

	wbuf [3]byte
	rbuf [2]byte
}

// New creates a driver handle. The I2C bus must already be configured.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, Address: Address}
}

// Configure verifies the device identity and sets the firmware debounce
// window. debounceMs == 0 leaves the hardware default in place.
func (d *Device) Configure(debounceMs uint16) error {
	id, err := d.readReg(regID)
	if err != nil {
		return err
	}
	if id != DeviceID {
		return ErrWrongChip
	}
	if debounceMs != 0 {
		return d.writeWord(regDebounceTime, debounceMs)
	}
	return nil
}

// Connected reports whether a device answering with the right ID is present.
func (d *Device) Connected() bool {
	id, err := d.readReg(regID)
	return err == nil && id == DeviceID
}

// IsPressed reports the live (already debounced) button level.
func (d *Device) IsPressed() (bool, error) {
	st, err := d.readReg(regStatus)
	return st&statusIsPressed != 0, err
}

// HasBeenClicked reports the latched press-and-release event bit.
func (d *Device) HasBeenClicked() (bool, error) {
	st, err := d.readReg(regStatus)
	return st&statusHasBeenClicked != 0, err
}

// EventAvailable reports the latched any-event bit.
func (d *Device) EventAvailable() (bool, error) {
	st, err := d.readReg(regStatus)
	return st&statusEventAvailable != 0, err
}

// ClearEventBits clears the latched event bits, preserving the live pressed
// level (the device recomputes it on the next scan anyway).
func (d *Device) ClearEventBits() error {
	return d.writeReg(regStatus, 0x00)
}

// SetDebounceTime sets the firmware debounce window in milliseconds.
func (d *Device) SetDebounceTime(ms uint16) error {
	return d.writeWord(regDebounceTime, ms)
}

// LEDOff turns the built-in LED off.
func (d *Device) LEDOff() error {
	return d.LEDConfig(0, 0, 0)
}

// LEDOn sets the LED to a steady brightness (0..255).
func (d *Device) LEDOn(brightness uint8) error {
	return d.LEDConfig(brightness, 0, 0)
}

// LEDBlink pulses the LED: cycleMs per pulse, offMs between pulses.
func (d *Device) LEDBlink(brightness uint8, cycleMs, offMs uint16) error {
	return d.LEDConfig(brightness, cycleMs, offMs)
}

// LEDConfig writes the three LED registers. cycleMs == 0 means steady on
// (or off when brightness is 0).
func (d *Device) LEDConfig(brightness uint8, cycleMs, offMs uint16) error {
	if err := d.writeReg(regLEDBrightness, brightness); err != nil {
		return err
	}
	if err := d.writeWord(regLEDPulseCycle, cycleMs); err != nil {
		return err
	}
	return d.writeWord(regLEDOffTime, offMs)
}

func (d *Device) readReg(reg byte) (byte, error) {
	d.wbuf[0] = reg
	if err := d.bus.Tx(d.Address, d.wbuf[:1], d.rbuf[:1]); err != nil {
		return 0, err
	}
	return d.rbuf[0], nil
}

func (d *Device) writeReg(reg, val byte) error {
	d.wbuf[0] = reg
	d.wbuf[1] = val
	return d.bus.Tx(d.Address, d.wbuf[:2], nil)
}

func (d *Device) writeWord(reg byte, val uint16) error {
	d.wbuf[0] = reg
	d.wbuf[1] = byte(val) // low
	d.wbuf[2] = byte(val >> 8)
	return d.bus.Tx(d.Address, d.wbuf[:3], nil)
}
