// Package platform assembles the peripheral implementations for the current
// target. The Linux build talks to real hardware; every other build gets
// simulated devices so the full loop runs on a workstation.
package platform

import (
	"io"
	"os"
	"path/filepath"

	"m3logger/services/battery"
	"m3logger/services/indicator"
	"m3logger/services/input"
	"m3logger/services/power"
	"m3logger/services/qrintake"
	"m3logger/services/sensor"
)

// Devices bundles what the services consume. GPS and Gauge may be nil when
// the peripheral is absent.
type Devices struct {
	IMU      sensor.IMU
	Button   input.Button
	LED      indicator.LED
	Reader   qrintake.Reader
	Gauge    battery.Gauge
	GPS      io.ReadCloser
	Retained power.RetainedStore
	Sleeper  power.Platform

	closers []io.Closer
}

// Close releases everything the factory opened.
func (d *Devices) Close() {
	for _, c := range d.closers {
		_ = c.Close()
	}
}

// FileRetained keeps the boot record in a file on internal storage. It
// stands in for power-domain-retained RAM: survives process restarts, is
// validated by its magic marker on every read.
type FileRetained struct {
	Path string
}

func (f *FileRetained) Read() ([]byte, error) {
	b, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

func (f *FileRetained) Write(b []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.Path, b, 0o600)
}

// HostPower implements the sleep primitive in userspace: Sleep blocks on the
// injected wait function (typically "until the button is pressed") and
// returns, simulating a wake.
type HostPower struct {
	Wait  func()
	Cause power.WakeCause
}

func (p *HostPower) ArmButtonWake() error { return nil }

func (p *HostPower) Sleep() error {
	if p.Wait != nil {
		p.Wait()
	}
	p.Cause = power.WakeButton
	return nil
}

func (p *HostPower) RawWakeCause() power.WakeCause { return p.Cause }
