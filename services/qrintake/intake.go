package qrintake

import (
	"time"
)

// Reader is the narrow scanner contract: ok is false when nothing new has
// been decoded since the previous poll.
type Reader interface {
	Poll() (content string, ok bool, err error)
}

// DefaultPollInterval bounds I2C traffic to the scanner.
const DefaultPollInterval = 250 * time.Millisecond

// Intake rate-limits scanner polling. Owned by the main loop.
type Intake struct {
	rd       Reader
	every    time.Duration
	lastPoll time.Time

	now func() time.Time
}

// NewIntake creates an intake polling at DefaultPollInterval unless an
// override is given.
func NewIntake(rd Reader, every ...time.Duration) *Intake {
	in := &Intake{rd: rd, every: DefaultPollInterval, now: time.Now}
	if len(every) > 0 && every[0] > 0 {
		in.every = every[0]
	}
	return in
}

// Poll returns a newly scanned payload at most once per poll interval. Safe
// to call every tick.
func (i *Intake) Poll() (raw []byte, ok bool, err error) {
	now := i.now()
	if now.Sub(i.lastPoll) < i.every {
		return nil, false, nil
	}
	i.lastPoll = now
	content, ok, err := i.rd.Poll()
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(content), true, nil
}

// Reset clears the rate limiter so the next Poll hits the device
// immediately. Called on entering a scanning state.
func (i *Intake) Reset() {
	i.lastPoll = time.Time{}
}
