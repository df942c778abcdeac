//go:build !linux

package platform

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"m3logger/config"
)

// Open on non-Linux hosts builds a fully simulated device. The button and
// code reader are driven through spool files under the spool directory, so a
// session can be exercised from another shell.
func Open(st config.Settings) (*Devices, error) {
	spool := filepath.Join(os.TempDir(), "m3logger")
	if err := os.MkdirAll(spool, 0o755); err != nil {
		return nil, err
	}

	return &Devices{
		IMU:      &SimIMU{},
		Button:   &SpoolButton{Path: filepath.Join(spool, "press")},
		LED:      &SimLED{},
		Reader:   &SpoolReader{Path: filepath.Join(spool, "qr.json")},
		Gauge:    &SimGauge{},
		Retained: &FileRetained{Path: filepath.Join(filepath.Dir(st.KVPath), "bootrec.bin")},
		Sleeper:  &HostPower{Wait: func() { time.Sleep(100 * time.Millisecond) }},
	}, nil
}

// WatchButtonEdge needs real GPIO; simulated builds rely on polling.
func WatchButtonEdge(string, func()) error {
	return errors.New("platform: gpio edges unsupported on this target")
}
