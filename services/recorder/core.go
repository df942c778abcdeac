// Package recorder is the state machine core: it owns currentState, drives
// one state handler per loop tick, and is the only place component failures
// turn into transitions.
package recorder

import (
	"log"
	"time"

	"m3logger/bus"
	"m3logger/services/indicator"
	"m3logger/services/input"
	"m3logger/services/netconfig"
	"m3logger/services/power"
	"m3logger/services/qrintake"
	"m3logger/services/sensor"
	"m3logger/services/storage"
	"m3logger/services/timesync"
	"m3logger/types"
)

// Deps are the collaborators the core drives. All calls happen from the main
// loop; none of these are shared with other goroutines except through their
// own documented seams.
type Deps struct {
	Conn    *bus.Connection
	Input   *input.Monitor
	Sampler *sensor.Sampler
	Store   *storage.Store
	Intake  *qrintake.Intake
	Clock   *timesync.Service
	Power   *power.Controller
	Net     *netconfig.Manager
	Ind     *indicator.Indicator
}

// Config carries the core's timing knobs. Zero values take the defaults
// noted per field.
type Config struct {
	LongPress     time.Duration // hold this long for CONFIG; default 3000ms
	IdleTimeout   time.Duration // inactivity before deep sleep; default 5000ms
	ScanTimeout   time.Duration // QR wait bound; default 30s
	ErrorRecovery time.Duration // auto-recovery from ERROR; default 60s
	StatsInterval time.Duration // recording stats cadence; default 5s
	ProbeTimeout  time.Duration // candidate config probe bound; default 5s
	SleepEnabled  bool          // gate deep sleep (off for bench runs)
}

func (c *Config) applyDefaults() {
	if c.LongPress <= 0 {
		c.LongPress = 3000 * time.Millisecond
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5000 * time.Millisecond
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = 30 * time.Second
	}
	if c.ErrorRecovery <= 0 {
		c.ErrorRecovery = 60 * time.Second
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 5 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = netconfig.DefaultProbeTimeout
	}
}

// Core owns all mutable state machine data. Single-threaded by contract.
type Core struct {
	deps Deps
	cfg  Config

	state State
	entry time.Time

	handlers [numStates]handler

	// IDLE hold tracking
	pressStart   time.Time
	tracking     bool
	lastActivity time.Time

	// CONFIG entered by a still-held long press: its release must not be
	// mistaken for a cancel click.
	swallowRelease bool

	// RECORDING
	lastStats time.Time

	now func() time.Time
}

func NewCore(deps Deps, cfg Config) *Core {
	cfg.applyDefaults()
	c := &Core{
		deps: deps,
		cfg:  cfg,
		now:  time.Now,
	}
	c.handlers = [numStates]handler{
		StateIdle:       idleHandler{},
		StateAwaitingQR: awaitQRHandler{},
		StateRecording:  recordingHandler{},
		StateConfig:     configHandler{},
		StateError:      errorHandler{},
	}
	return c
}

// State returns the current state.
func (c *Core) State() State { return c.state }

// Boot sets the initial state without a transition: IDLE normally, ERROR
// when the storage medium was unavailable at startup (the device still boots
// for diagnostics).
func (c *Core) Boot(storageOK bool) {
	c.state = StateIdle
	if !storageOK {
		c.state = StateError
		log.Printf("recorder: storage unavailable at boot, starting in ERROR")
	}
	c.entry = c.now()
	c.handlers[c.state].enter(c)
	c.publishState()
	c.render()
}

// Tick runs exactly one iteration of the cooperative loop.
func (c *Core) Tick() {
	c.deps.Clock.Tick()
	c.deps.Input.Poll()
	c.handlers[c.state].tick(c)
}

// Run drives Tick at the given cadence until ctx is done.
func (c *Core) Run(done <-chan struct{}, tickEvery time.Duration) {
	if tickEvery <= 0 {
		tickEvery = time.Millisecond
	}
	t := time.NewTicker(tickEvery)
	defer t.Stop()
	for {
		select {
		case <-done:
			// Leave no session behind on shutdown.
			if c.state == StateRecording {
				c.transition(StateIdle, "shutdown")
			}
			return
		case <-t.C:
			c.Tick()
		}
	}
}

// transition applies the legality table. Same-state requests are no-ops;
// illegal requests are logged, published, and dropped without touching
// currentState. Legal ones run exit actions, swap state, run entry actions,
// and re-render the indicator.
func (c *Core) transition(to State, reason string) bool {
	if to == c.state {
		return true
	}
	from := c.state
	if !legal(from, to) {
		log.Printf("recorder: illegal transition %s -> %s (%s) rejected", from, to, reason)
		c.publishTransition(from, to, reason, false)
		return false
	}

	c.handlers[from].exit(c)
	c.state = to
	c.entry = c.now()
	c.handlers[to].enter(c)

	log.Printf("recorder: %s -> %s (%s)", from, to, reason)
	c.publishTransition(from, to, reason, true)
	c.publishState()
	c.render()
	return true
}

func (c *Core) render() {
	if c.deps.Ind != nil {
		c.deps.Ind.Render(c.state.String(), c.deps.Clock.IsLocked())
	}
}

func (c *Core) publishState() {
	if c.deps.Conn == nil {
		return
	}
	msg := c.deps.Conn.NewMessage(bus.Topic{"recorder", "state"},
		types.RecorderState{State: c.state.String(), TSms: c.deps.Clock.NowMs()}, true)
	c.deps.Conn.Publish(msg)
}

func (c *Core) publishTransition(from, to State, reason string, ok bool) {
	if c.deps.Conn == nil {
		return
	}
	msg := c.deps.Conn.NewMessage(bus.Topic{"recorder", "transition"}, types.Transition{
		From:   from.String(),
		To:     to.String(),
		Reason: reason,
		Legal:  ok,
		TSms:   c.deps.Clock.NowMs(),
	}, false)
	c.deps.Conn.Publish(msg)
}

func (c *Core) publishStats(st types.SamplerStats) {
	if c.deps.Conn == nil {
		return
	}
	c.deps.Conn.Publish(c.deps.Conn.NewMessage(bus.Topic{"recorder", "stats"}, st, false))
}

func (c *Core) publishSession(rec types.SessionRecord) {
	if c.deps.Conn == nil {
		return
	}
	c.deps.Conn.Publish(c.deps.Conn.NewMessage(bus.Topic{"recorder", "session"}, rec, false))
}
