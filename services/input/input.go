// Package input turns button edges into confirmed, debounced click events.
//
// Two detection paths feed one shared flag: a hardware edge callback (which
// must do nothing but set the flag) and a ~50 ms polling fallback that
// detects the not-pressed to pressed transition. Whichever fires first wins;
// confirmation and event clearing are idempotent so the paths cannot
// double-count a single physical press.
package input

import (
	"sync/atomic"
	"time"
)

// Button is the authoritative peripheral contract. The edge signal is only a
// hint; a click is confirmed against the device before it is acted on.
type Button interface {
	IsPressed() (bool, error)
	HasBeenClicked() (bool, error)
	ClearEventBits() error
}

const (
	// DefaultDebounce is the minimum spacing between two accepted presses.
	DefaultDebounce = 50 * time.Millisecond
	// DefaultPollInterval drives the no-interrupt fallback path.
	DefaultPollInterval = 50 * time.Millisecond
)

// Monitor tracks one button. SignalEdge is safe from any goroutine; every
// other method belongs to the main loop.
type Monitor struct {
	btn Button

	edge atomic.Bool

	debounce     time.Duration
	pollEvery    time.Duration
	lastAccepted time.Time
	haveAccepted bool
	lastLevel    bool
	lastPoll     time.Time

	rejected uint32 // debounce rejections, for diagnostics

	now func() time.Time
}

func NewMonitor(btn Button) *Monitor {
	return &Monitor{
		btn:       btn,
		debounce:  DefaultDebounce,
		pollEvery: DefaultPollInterval,
		now:       time.Now,
	}
}

// SignalEdge records a pending edge. Callable from an interrupt-style
// context: it only sets the flag.
func (m *Monitor) SignalEdge() {
	m.edge.Store(true)
}

// Poll runs the fallback edge detection at the poll cadence. Safe to call
// every tick; it only touches the peripheral once per interval.
func (m *Monitor) Poll() {
	now := m.now()
	if now.Sub(m.lastPoll) < m.pollEvery {
		return
	}
	m.lastPoll = now
	pressed, err := m.btn.IsPressed()
	if err != nil {
		return
	}
	if pressed && !m.lastLevel {
		m.edge.Store(true)
	}
	m.lastLevel = pressed
}

// Clicked consumes a pending edge: verifies it against the peripheral,
// clears the latched event bits, and applies the debounce window. A press
// exactly at the debounce threshold is rejected (inclusive boundary).
func (m *Monitor) Clicked() bool {
	if !m.edge.Swap(false) {
		return false
	}
	clicked, err := m.btn.HasBeenClicked()
	if err != nil {
		return false
	}
	if !clicked {
		// Spurious trigger; nothing latched on the device.
		return false
	}
	_ = m.btn.ClearEventBits()

	now := m.now()
	if m.haveAccepted && now.Sub(m.lastAccepted) <= m.debounce {
		m.rejected++
		return false
	}
	m.lastAccepted = now
	m.haveAccepted = true
	return true
}

// IsPressed reads the live debounced level for hold tracking.
func (m *Monitor) IsPressed() bool {
	pressed, err := m.btn.IsPressed()
	return err == nil && pressed
}

// Rejections returns the count of debounce-rejected presses.
func (m *Monitor) Rejections() uint32 { return m.rejected }

// Reset clears pending edges and hold tracking.
func (m *Monitor) Reset() {
	m.edge.Store(false)
	m.haveAccepted = false
	m.lastLevel = false
	_ = m.btn.ClearEventBits()
}
