// Package indicator renders the device state on the button's LED and
// mirrors it on the bus for diagnostics.
package indicator

import (
	"m3logger/bus"
)

// LED is the narrow output contract, satisfied by the button's built-in LED
// or a host fake.
type LED interface {
	Off() error
	On(brightness uint8) error
	Blink(brightness uint8, cycleMs, offMs uint16) error
}

// Pattern is one rendered indication.
type Pattern struct {
	Name       string
	Brightness uint8
	CycleMs    uint16 // 0 = steady
	OffMs      uint16
}

// State patterns. GPS lock brightens the steady states so a user can tell
// "idle, timestamps absolute" from "idle, timestamps relative" at a glance.
var (
	patternIdle       = Pattern{Name: "idle", Brightness: 16}
	patternIdleLocked = Pattern{Name: "idle_locked", Brightness: 64}
	patternAwaitQR    = Pattern{Name: "await_qr", Brightness: 128, CycleMs: 500, OffMs: 500}
	patternRecording  = Pattern{Name: "recording", Brightness: 255, CycleMs: 1000, OffMs: 0}
	patternConfig     = Pattern{Name: "config", Brightness: 128, CycleMs: 250, OffMs: 250}
	patternError      = Pattern{Name: "error", Brightness: 255, CycleMs: 100, OffMs: 100}
	patternOff        = Pattern{Name: "off"}
)

// Indicator maps logical state to an LED pattern. Owned by the main loop.
type Indicator struct {
	led  LED
	conn *bus.Connection
	cur  Pattern
}

// New creates an indicator. conn may be nil.
func New(led LED, conn *bus.Connection) *Indicator {
	return &Indicator{led: led, conn: conn, cur: Pattern{Name: "unset"}}
}

// Render applies the pattern for the given state and time-source lock. It is
// idempotent; re-rendering the current pattern does not touch the LED.
func (i *Indicator) Render(state string, locked bool) {
	p := patternFor(state, locked)
	if p == i.cur {
		return
	}
	i.cur = p

	var err error
	switch {
	case p.Brightness == 0:
		err = i.led.Off()
	case p.CycleMs == 0:
		err = i.led.On(p.Brightness)
	default:
		err = i.led.Blink(p.Brightness, p.CycleMs, p.OffMs)
	}
	_ = err // LED failures are cosmetic

	if i.conn != nil {
		i.conn.Publish(i.conn.NewMessage(bus.Topic{"indicator", "state"}, p.Name, true))
	}
}

// Off blanks the LED, used right before deep sleep.
func (i *Indicator) Off() {
	i.cur = patternOff
	_ = i.led.Off()
}

func patternFor(state string, locked bool) Pattern {
	switch state {
	case "IDLE":
		if locked {
			return patternIdleLocked
		}
		return patternIdle
	case "AWAITING_QR":
		return patternAwaitQR
	case "RECORDING":
		return patternRecording
	case "CONFIG":
		return patternConfig
	case "ERROR":
		return patternError
	default:
		return patternOff
	}
}
