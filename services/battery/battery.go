// Package battery publishes fuel-gauge telemetry on the bus at a slow
// cadence. Purely observational; nothing in the recording path depends on
// it.
package battery

import (
	"log"
	"time"

	"m3logger/bus"
	"m3logger/types"
	"m3logger/x/mathx"
)

// Gauge is the narrow fuel-gauge contract.
type Gauge interface {
	CellMilliV() (int32, error)
	SOCPct() (float32, error)
	RatePctPerHour() (float32, error)
}

// DefaultInterval between telemetry reads.
const DefaultInterval = 30 * time.Second

// LowSOCPct triggers a warning log once per crossing.
const LowSOCPct = 15

// Monitor polls the gauge from the main loop.
type Monitor struct {
	gauge Gauge
	conn  *bus.Connection

	every    time.Duration
	lastRead time.Time
	warned   bool

	now func() time.Time
}

// New creates a monitor. conn may be nil.
func New(gauge Gauge, conn *bus.Connection) *Monitor {
	return &Monitor{gauge: gauge, conn: conn, every: DefaultInterval, now: time.Now}
}

// Tick reads and publishes at most once per interval. Gauge read failures
// are skipped quietly; the next interval retries.
func (m *Monitor) Tick() {
	now := m.now()
	if now.Sub(m.lastRead) < m.every {
		return
	}
	m.lastRead = now

	mv, err := m.gauge.CellMilliV()
	if err != nil {
		return
	}
	soc, err := m.gauge.SOCPct()
	if err != nil {
		return
	}
	rate, err := m.gauge.RatePctPerHour()
	if err != nil {
		return
	}
	// MAX17048 SOC can read slightly past the rails near full and empty.
	soc = mathx.Clamp(soc, 0, 100)

	if soc < LowSOCPct && !m.warned {
		m.warned = true
		log.Printf("battery: low charge: %.1f%% (%d mV)", soc, mv)
	} else if soc >= LowSOCPct {
		m.warned = false
	}

	if m.conn != nil {
		m.conn.Publish(m.conn.NewMessage(bus.Topic{"battery", "value"}, types.BatteryValue{
			MilliV:    mv,
			SOCPct:    soc,
			RatePctHr: rate,
		}, true))
	}
}
