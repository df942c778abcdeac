//go:build linux

package platform

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"m3logger/config"
	"m3logger/drivers/codereader"
	"m3logger/drivers/ism330"
	"m3logger/drivers/max17048"
	"m3logger/drivers/qwiicbutton"
	"m3logger/services/sensor"
)

// Open probes the I2C bus for the full peripheral set. The IMU and the
// button are required; the scanner, fuel gauge and GPS degrade to absent.
func Open(st config.Settings) (*Devices, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("platform: host init: %w", err)
	}
	bus, err := i2creg.Open(st.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("platform: i2c %q: %w", st.I2CBus, err)
	}

	d := &Devices{
		Retained: &FileRetained{Path: filepath.Join(filepath.Dir(st.KVPath), "bootrec.bin")},
	}
	d.closers = append(d.closers, bus)

	imu := ism330.New(bus)
	if err := imu.Configure(); err != nil {
		d.Close()
		return nil, fmt.Errorf("platform: imu: %w", err)
	}
	d.IMU = imuAdapter{dev: imu}

	btn := qwiicbutton.New(bus)
	if err := btn.Configure(uint16(qwiicDebounceMs)); err != nil {
		d.Close()
		return nil, fmt.Errorf("platform: button: %w", err)
	}
	d.Button = btn
	d.LED = buttonLED{dev: btn}

	rd := codereader.New(bus)
	if rd.Connected() {
		d.Reader = rd
	} else {
		log.Printf("platform: code reader absent, QR intake disabled")
		d.Reader = noReader{}
	}

	gauge := max17048.New(bus)
	if gauge.Connected() {
		d.Gauge = gauge
	} else {
		log.Printf("platform: fuel gauge absent, battery telemetry disabled")
	}

	if st.GPSPort != "" {
		port, err := serial.Open(serial.OpenOptions{
			PortName:        st.GPSPort,
			BaudRate:        st.GPSBaud,
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
		})
		if err != nil {
			log.Printf("platform: gps %s: %v, continuing without", st.GPSPort, err)
		} else {
			d.GPS = port
			d.closers = append(d.closers, port)
		}
	}

	d.Sleeper = &HostPower{Wait: func() { waitForPress(btn) }}
	return d, nil
}

// qwiicDebounceMs matches the monitor's software window so the hardware
// never reports presses the monitor would reject anyway.
const qwiicDebounceMs = 50

// WatchButtonEdge blocks on hardware edges from the button's interrupt line
// and invokes fire on each falling edge. Run it in its own goroutine; it
// returns when the pin cannot be watched.
func WatchButtonEdge(pinName string, fire func()) error {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return fmt.Errorf("platform: no gpio %q", pinName)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("platform: gpio %q: %w", pinName, err)
	}
	for {
		if pin.WaitForEdge(-1) {
			fire()
		}
	}
}

func waitForPress(btn *qwiicbutton.Device) {
	for {
		pressed, err := btn.IsPressed()
		if err == nil && pressed {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

type imuAdapter struct {
	dev *ism330.Device
}

func (a imuAdapter) Read() (sensor.Axes, error) {
	var s ism330.Sample
	if err := a.dev.ReadSample(&s); err != nil {
		return sensor.Axes{}, err
	}
	var out sensor.Axes
	out.AX, out.AY, out.AZ = s.AccelG()
	out.GX, out.GY, out.GZ = s.GyroDPS()
	return out, nil
}

// buttonLED drives the Qwiic button's onboard LED as the status indicator.
type buttonLED struct {
	dev *qwiicbutton.Device
}

func (l buttonLED) Off() error { return l.dev.LEDOff() }

func (l buttonLED) On(brightness uint8) error { return l.dev.LEDOn(brightness) }

func (l buttonLED) Blink(brightness uint8, cycleMs, offMs uint16) error {
	return l.dev.LEDBlink(brightness, cycleMs, offMs)
}

type noReader struct{}

func (noReader) Poll() (string, bool, error) { return "", false, nil }
