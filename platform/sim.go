package platform

import (
	"math"
	"os"
	"sync"
	"time"

	"m3logger/services/sensor"
)

// SimIMU synthesizes a gravity vector plus a slow oscillation so recorded
// files have recognizable, non-constant traces.
type SimIMU struct {
	start time.Time
	once  sync.Once
}

func (s *SimIMU) Read() (sensor.Axes, error) {
	s.once.Do(func() { s.start = time.Now() })
	t := time.Since(s.start).Seconds()
	return sensor.Axes{
		AX: 0.02 * float32(math.Sin(2*math.Pi*0.5*t)),
		AY: 0.02 * float32(math.Cos(2*math.Pi*0.5*t)),
		AZ: 1.0,
		GX: 5 * float32(math.Sin(2*math.Pi*0.2*t)),
		GY: 0,
		GZ: 2 * float32(math.Cos(2*math.Pi*0.2*t)),
	}, nil
}

// SpoolButton reports a press when its marker file exists and consumes the
// file, so `touch <path>` from another shell acts as one button click.
type SpoolButton struct {
	Path string

	mu      sync.Mutex
	clicked bool
}

func (b *SpoolButton) poll() {
	if _, err := os.Stat(b.Path); err != nil {
		return
	}
	_ = os.Remove(b.Path)
	b.mu.Lock()
	b.clicked = true
	b.mu.Unlock()
}

func (b *SpoolButton) IsPressed() (bool, error) {
	b.poll()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clicked, nil
}

func (b *SpoolButton) HasBeenClicked() (bool, error) {
	b.poll()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clicked, nil
}

func (b *SpoolButton) ClearEventBits() error {
	b.mu.Lock()
	b.clicked = false
	b.mu.Unlock()
	return nil
}

// SpoolReader returns the contents of its spool file once per drop, standing
// in for the code reader: write a payload to the file to "scan" it.
type SpoolReader struct {
	Path string
}

func (r *SpoolReader) Poll() (string, bool, error) {
	b, err := os.ReadFile(r.Path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	_ = os.Remove(r.Path)
	if len(b) == 0 {
		return "", false, nil
	}
	return string(b), true, nil
}

// SimLED records the last rendered pattern instead of driving hardware.
type SimLED struct {
	mu   sync.Mutex
	last string
}

func (l *SimLED) Off() error { return l.set("off") }

func (l *SimLED) On(uint8) error { return l.set("on") }

func (l *SimLED) Blink(uint8, uint16, uint16) error { return l.set("blink") }

func (l *SimLED) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

func (l *SimLED) set(mode string) error {
	l.mu.Lock()
	l.last = mode
	l.mu.Unlock()
	return nil
}

// SimGauge discharges linearly from full at about one percent a minute.
type SimGauge struct {
	start time.Time
	once  sync.Once
}

func (g *SimGauge) soc() float32 {
	g.once.Do(func() { g.start = time.Now() })
	soc := 100 - float32(time.Since(g.start).Minutes())
	if soc < 0 {
		soc = 0
	}
	return soc
}

func (g *SimGauge) CellMilliV() (int32, error) {
	return 3300 + int32(g.soc()*9), nil
}

func (g *SimGauge) SOCPct() (float32, error) { return g.soc(), nil }

func (g *SimGauge) RatePctPerHour() (float32, error) { return -60, nil }
