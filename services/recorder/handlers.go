package recorder

import (
	"context"
	"log"

	"m3logger/errcode"
	"m3logger/services/input"
	"m3logger/services/qrintake"
)

// handler splits the three per-state concerns the core dispatches: entry
// actions, the per-tick body, and exit actions.
type handler interface {
	enter(c *Core)
	tick(c *Core)
	exit(c *Core)
}

// ---- IDLE ----

type idleHandler struct{}

func (idleHandler) enter(c *Core) {
	c.tracking = false
	c.deps.Input.Reset()
	c.lastActivity = c.now()
}

func (idleHandler) tick(c *Core) {
	now := c.now()
	pressed := c.deps.Input.IsPressed()

	switch {
	case pressed && !c.tracking:
		c.tracking = true
		c.pressStart = now
		c.lastActivity = now
	case pressed && c.tracking:
		// Long press fires while still held; no need to wait for release.
		if now.Sub(c.pressStart) >= c.cfg.LongPress {
			c.transition(StateConfig, "long_press")
			return
		}
	case !pressed && c.tracking:
		c.tracking = false
		c.lastActivity = now
		held := now.Sub(c.pressStart)
		// Consume the latched click so it cannot fire again later.
		c.deps.Input.Clicked()
		if held >= c.cfg.LongPress {
			c.transition(StateConfig, "long_press")
		} else if held > input.DefaultDebounce {
			c.transition(StateAwaitingQR, "short_press")
		}
		return
	}

	if !c.tracking && c.cfg.SleepEnabled && !c.deps.Store.Active() &&
		now.Sub(c.lastActivity) >= c.cfg.IdleTimeout {
		// Pre-sleep ordering: storage released, indicator dark, then the
		// retained record write and wake arming inside EnterSleep.
		if err := c.deps.Store.Unmount(); err != nil {
			log.Printf("recorder: unmount before sleep failed: %v", err)
			c.transition(StateError, "sleep_failed")
			return
		}
		if c.deps.Ind != nil {
			c.deps.Ind.Off()
		}
		if err := c.deps.Power.EnterSleep(c.state.String()); err != nil {
			log.Printf("recorder: sleep entry failed: %v", err)
			c.transition(StateError, "sleep_failed")
			return
		}
		// Host platforms return on simulated wake. The medium may have been
		// swapped while asleep.
		if err := c.deps.Store.Mount(); err != nil {
			log.Printf("recorder: storage unavailable after wake: %v", err)
			c.transition(StateError, "storage_unavailable")
			return
		}
		c.lastActivity = c.now()
		c.render()
	}
}

func (idleHandler) exit(c *Core) {
	c.tracking = false
}

// ---- AWAITING_QR ----

type awaitQRHandler struct{}

func (awaitQRHandler) enter(c *Core) {
	c.deps.Intake.Reset()
}

func (awaitQRHandler) tick(c *Core) {
	if c.deps.Input.Clicked() {
		c.transition(StateIdle, "cancel_click")
		return
	}
	if c.now().Sub(c.entry) >= c.cfg.ScanTimeout {
		c.transition(StateIdle, "scan_timeout")
		return
	}

	raw, ok, err := c.deps.Intake.Poll()
	if err != nil {
		log.Printf("recorder: qr poll failed: %v", err)
		return
	}
	if !ok {
		return
	}
	meta, err := qrintake.ParseMetadata(raw)
	if err != nil {
		// Bad payload: log and keep waiting; the user can rescan.
		log.Printf("recorder: metadata rejected (%s): %v", errcode.Of(err), err)
		return
	}
	if err := c.deps.Store.StartSession(meta, c.deps.Clock.ISOTimestamp()); err != nil {
		log.Printf("recorder: session start failed: %v", err)
		c.transition(StateError, "session_start_failed")
		return
	}
	c.transition(StateRecording, "session_started")
}

func (awaitQRHandler) exit(c *Core) {}

// ---- RECORDING ----

type recordingHandler struct{}

func (recordingHandler) enter(c *Core) {
	c.deps.Sampler.Start()
	c.lastStats = c.entry
}

func (recordingHandler) tick(c *Core) {
	if c.deps.Input.Clicked() {
		// End the session here rather than in exit, so a close failure can
		// still pick the destination state.
		if err := c.endSession(); err != nil {
			c.transition(StateError, "session_end_failed")
		} else {
			c.transition(StateIdle, "stop_click")
		}
		return
	}

	// GPS position is read once per tick, not once per sample, to keep the
	// bus free for the 100 Hz deadline.
	if c.deps.Sampler.Ready() {
		lat, lon := c.deps.Clock.Position()
		if err := c.deps.Sampler.Sample(c.deps.Clock.NowMs(), lat, lon); err != nil {
			switch errcode.Of(err) {
			case errcode.BufferFull:
				// Counted as loss by the ring.
			default:
				log.Printf("recorder: sample read failed: %v", err)
			}
		}
	}

	ring := c.deps.Sampler.Ring()
	for {
		s, ok := ring.Pop()
		if !ok {
			break
		}
		if err := c.deps.Store.WriteSample(s); err != nil {
			log.Printf("recorder: sample write failed: %v", err)
			c.transition(StateError, "sample_write_failed")
			return
		}
	}
	if err := c.deps.Store.MaybeSync(); err != nil {
		log.Printf("recorder: durability sync failed: %v", err)
		c.transition(StateError, "sync_failed")
		return
	}

	now := c.now()
	if now.Sub(c.lastStats) >= c.cfg.StatsInterval {
		c.lastStats = now
		st := c.deps.Sampler.Stats()
		log.Printf("recorder: session %s: %.1f Hz, %.2f%% loss, %d read failures",
			c.deps.Store.SessionID(), st.ActualRateHz, st.LossPct, st.ReadFailures)
		c.publishStats(st)
	}
}

// exit is the safety net for paths that leave RECORDING without ending the
// session first (error escalation, shutdown). The stop path ends it from
// tick so a close failure can still escalate to ERROR.
func (recordingHandler) exit(c *Core) {
	_ = c.endSession()
}

// endSession stops sampling, drains the ring, and closes out the session.
// Idempotent: a no-op when no run is active. The file handle is released
// even when the final flush fails, and the failure is returned.
func (c *Core) endSession() error {
	if !c.deps.Sampler.Running() {
		return nil
	}

	// Move any still-buffered samples across before the final flush. Once a
	// write is refused the rest cannot reach the file either; they are
	// counted as loss, never silently discarded.
	ring := c.deps.Sampler.Ring()
	var drainErr error
	for {
		s, ok := ring.Pop()
		if !ok {
			break
		}
		if err := c.deps.Store.WriteSample(s); err != nil {
			drainErr = err
			n := ring.Discard()
			log.Printf("recorder: final drain failed, %d samples lost: %v", n, err)
			break
		}
	}

	st := c.deps.Sampler.Stop()
	rec, err := c.deps.Store.EndSession(st, c.deps.Clock.Source(), c.deps.Clock.IsLocked())
	if err != nil {
		log.Printf("recorder: session end failed: %v", err)
		return err
	}
	if rec.SessionID != "" {
		log.Printf("recorder: session %s complete: %d samples, %.1f Hz",
			rec.SessionID, rec.Samples, rec.ActualRateHz)
		c.publishStats(st)
		c.publishSession(rec)
	}
	return drainErr
}

// ---- CONFIG ----

type configHandler struct{}

func (configHandler) enter(c *Core) {
	c.deps.Intake.Reset()
	c.swallowRelease = c.deps.Input.IsPressed()
}

func (configHandler) tick(c *Core) {
	if c.swallowRelease {
		if c.deps.Input.IsPressed() {
			return
		}
		c.swallowRelease = false
		c.deps.Input.Clicked()
	}
	if c.deps.Input.Clicked() {
		c.transition(StateIdle, "cancel_click")
		return
	}
	if c.now().Sub(c.entry) >= c.cfg.ScanTimeout {
		c.transition(StateIdle, "config_timeout")
		return
	}

	raw, ok, err := c.deps.Intake.Poll()
	if err != nil {
		log.Printf("recorder: qr poll failed: %v", err)
		return
	}
	if !ok {
		return
	}
	cand, err := qrintake.ParseDeviceConfig(raw)
	if err != nil {
		log.Printf("recorder: config rejected (%s): %v", errcode.Of(err), err)
		return
	}

	// Bounded connectivity test; a failure discards the candidate and the
	// active config stays as it was.
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProbeTimeout)
	err = c.deps.Net.ApplyCandidate(ctx, cand)
	cancel()
	if err != nil {
		log.Printf("recorder: candidate config discarded: %v", err)
		c.transition(StateIdle, "config_failed")
		return
	}
	log.Printf("recorder: network config applied")
	c.transition(StateIdle, "config_applied")
}

func (configHandler) exit(c *Core) {}

// ---- ERROR ----

type errorHandler struct{}

func (errorHandler) enter(c *Core) {
	c.deps.Input.Reset()
}

func (errorHandler) tick(c *Core) {
	if c.deps.Input.Clicked() {
		c.transition(StateIdle, "manual_recovery")
		return
	}
	if c.now().Sub(c.entry) > c.cfg.ErrorRecovery {
		c.transition(StateIdle, "auto_recovery")
	}
}

func (errorHandler) exit(c *Core) {}
