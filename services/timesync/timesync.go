// Package timesync supplies the timestamp every sample and log entry carry.
//
// Two underlying sources: GPS time from NMEA RMC sentences (accurate, only
// when locked) and the free-running monotonic clock (always available).
// While locked, NowMs returns epoch milliseconds extrapolated from the last
// fix; otherwise it returns milliseconds since boot. Lock state is reported
// faithfully: a fix older than the staleness window drops the lock, and the
// losing-lock transition is logged and published the moment Tick detects it.
package timesync

import (
	"bufio"
	"io"
	"log"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"

	"m3logger/bus"
	"m3logger/types"
)

// Source names reported by Source() and carried in session records.
const (
	SourceGPS  = "gps"
	SourceMono = "mono"
)

// DefaultStaleAfter drops the lock when no valid fix arrives in time.
const DefaultStaleAfter = 5000 * time.Millisecond

// Service is safe for concurrent use: the NMEA feeder goroutine writes,
// the main loop reads.
type Service struct {
	mu sync.Mutex

	locked   bool
	refEpoch time.Time // GPS time at the last valid fix
	refMono  time.Time // local clock at the last valid fix
	lat, lon float64

	boot       time.Time
	staleAfter time.Duration

	conn *bus.Connection
	now  func() time.Time
}

// New creates a time source anchored at boot. conn may be nil.
func New(conn *bus.Connection) *Service {
	s := &Service{
		staleAfter: DefaultStaleAfter,
		conn:       conn,
		now:        time.Now,
	}
	s.boot = s.now()
	return s
}

// Feed consumes NMEA sentences from r until read error or EOF. Run it in
// its own goroutine; malformed sentences are skipped.
func (s *Service) Feed(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		sent, err := nmea.Parse(line)
		if err != nil {
			continue
		}
		rmc, ok := sent.(nmea.RMC)
		if !ok {
			continue
		}
		s.UpdateFromRMC(rmc)
	}
}

// UpdateFromRMC ingests one RMC fix. Invalid fixes are ignored; staleness
// handles the eventual lock loss.
func (s *Service) UpdateFromRMC(rmc nmea.RMC) {
	if rmc.Validity != nmea.ValidRMC {
		return
	}
	fix := time.Date(
		2000+rmc.Date.YY, time.Month(rmc.Date.MM), rmc.Date.DD,
		rmc.Time.Hour, rmc.Time.Minute, rmc.Time.Second,
		rmc.Time.Millisecond*int(time.Millisecond), time.UTC,
	)

	s.mu.Lock()
	wasLocked := s.locked
	s.locked = true
	s.refEpoch = fix
	s.refMono = s.now()
	s.lat = rmc.Latitude
	s.lon = rmc.Longitude
	s.mu.Unlock()

	if !wasLocked {
		log.Printf("timesync: gps lock acquired (%s)", fix.Format(time.RFC3339))
		s.publishState()
	}
}

// Tick runs the periodic staleness check. Call it from the main loop.
func (s *Service) Tick() {
	s.mu.Lock()
	lost := s.locked && s.now().Sub(s.refMono) > s.staleAfter
	if lost {
		s.locked = false
	}
	s.mu.Unlock()

	if lost {
		log.Printf("timesync: gps lock lost, falling back to monotonic clock")
		s.publishState()
	}
}

// IsLocked reports whether the accurate source currently holds a valid fix.
func (s *Service) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Source reports which clock NowMs currently derives from.
func (s *Service) Source() string {
	if s.IsLocked() {
		return SourceGPS
	}
	return SourceMono
}

// NowMs returns epoch milliseconds when locked, milliseconds since boot
// otherwise.
func (s *Service) NowMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.locked {
		return s.refEpoch.Add(now.Sub(s.refMono)).UnixMilli()
	}
	return now.Sub(s.boot).Milliseconds()
}

// ISOTimestamp returns an ISO-8601 string. Unlocked, it renders the relative
// clock as an offset marker rather than a fake absolute time.
func (s *Service) ISOTimestamp() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.locked {
		return s.refEpoch.Add(now.Sub(s.refMono)).UTC().Format(time.RFC3339)
	}
	return "boot+" + now.Sub(s.boot).Truncate(time.Millisecond).String()
}

// Position returns the last cached fix coordinates, 0,0 when none. Read once
// per tick by the recording path, not once per sample.
func (s *Service) Position() (lat, lon float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lat, s.lon
}

func (s *Service) publishState() {
	if s.conn == nil {
		return
	}
	s.mu.Lock()
	state := types.TimeSourceState{Source: SourceMono, Locked: s.locked}
	if s.locked {
		state.Source = SourceGPS
	}
	s.mu.Unlock()
	state.TSms = s.NowMs()
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"timesource", "state"}, state, true))
}
