// Package sensor owns the 100 Hz sampling path: a timing gate, one bounded
// peripheral read per due interval, and a fixed-capacity ring the storage
// layer drains.
package sensor

import (
	"time"

	"m3logger/types"
	"m3logger/x/timex"
)

// Axes is one 6-axis reading in engineering units.
type Axes struct {
	AX, AY, AZ float32 // g
	GX, GY, GZ float32 // deg/s
}

// IMU is the narrow contract the sampler needs from the motion sensor. Read
// performs exactly one bounded peripheral transaction.
type IMU interface {
	Read() (Axes, error)
}

// DefaultRingCap absorbs ~200 ms of samples at 100 Hz, the worst-case stall
// of one storage flush+sync.
const DefaultRingCap = 20

// Sampler drives fixed-cadence reads into the ring. Not safe for concurrent
// use; it is owned by the main loop.
type Sampler struct {
	imu  IMU
	ring *Ring

	period      time.Duration
	lastAttempt time.Time
	started     time.Time
	running     bool

	collected    uint32
	readFailures uint32

	now func() time.Time
}

// NewSampler creates a sampler at the given rate with a default-sized ring.
func NewSampler(imu IMU, rateHz uint32) *Sampler {
	return &Sampler{
		imu:    imu,
		ring:   NewRing(DefaultRingCap),
		period: timex.PeriodFromHz(rateHz),
		now:    time.Now,
	}
}

// Ring exposes the sample ring for draining.
func (s *Sampler) Ring() *Ring { return s.ring }

// Start resets all counters and cursors and begins a sampling run.
func (s *Sampler) Start() {
	s.ring.Reset()
	s.collected = 0
	s.readFailures = 0
	s.started = s.now()
	s.lastAttempt = s.started
	s.running = true
}

// Stop ends the run and returns the final statistics.
func (s *Sampler) Stop() types.SamplerStats {
	st := s.Stats()
	s.running = false
	return st
}

func (s *Sampler) Running() bool { return s.running }

// Ready reports whether at least one sampling interval has elapsed since the
// last attempt. The reference time advances on the attempt, not on success,
// so a failed read cannot cause runaway retries.
func (s *Sampler) Ready() bool {
	if !s.running {
		return false
	}
	now := s.now()
	if now.Sub(s.lastAttempt) < s.period {
		return false
	}
	s.lastAttempt = now
	return true
}

// Sample performs one read and pushes the result, stamped with tsMs and the
// caller's cached position, into the ring. A read failure leaves the ring
// untouched and is counted separately from buffer-full loss.
func (s *Sampler) Sample(tsMs int64, lat, lon float64) error {
	ax, err := s.imu.Read()
	if err != nil {
		s.readFailures++
		return err
	}
	sm := types.Sample{
		TimestampMs: tsMs,
		Lat:         lat,
		Lon:         lon,
		AccelX:      ax.AX, AccelY: ax.AY, AccelZ: ax.AZ,
		GyroX: ax.GX, GyroY: ax.GY, GyroZ: ax.GZ,
	}
	if err := s.ring.Push(sm); err != nil {
		return err
	}
	s.collected++
	return nil
}

// Stats returns internally consistent statistics for the current run:
// rate = collected / elapsed wall time, loss% = lost / (collected + lost).
func (s *Sampler) Stats() types.SamplerStats {
	st := types.SamplerStats{
		Collected:    s.collected,
		Lost:         s.ring.Lost(),
		ReadFailures: s.readFailures,
	}
	if elapsed := s.now().Sub(s.started); elapsed > 0 {
		st.ActualRateHz = float32(float64(s.collected) / elapsed.Seconds())
	}
	if total := s.collected + st.Lost; total > 0 {
		st.LossPct = float32(st.Lost) * 100 / float32(total)
	}
	return st
}
