package battery

import (
	"errors"
	"testing"
	"time"

	"m3logger/bus"
	"m3logger/types"
)

type fakeGauge struct {
	mv   int32
	soc  float32
	rate float32
	err  error
}

func (f *fakeGauge) CellMilliV() (int32, error)       { return f.mv, f.err }
func (f *fakeGauge) SOCPct() (float32, error)         { return f.soc, f.err }
func (f *fakeGauge) RatePctPerHour() (float32, error) { return f.rate, f.err }

func TestPublishesRetainedValue(t *testing.T) {
	conn := bus.NewBus(8).NewConnection("test")
	m := New(&fakeGauge{mv: 3850, soc: 76.5, rate: -4.2}, conn)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }
	m.every = time.Second

	now = now.Add(2 * time.Second)
	m.Tick()

	sub := conn.Subscribe(bus.Topic{"battery", "value"})
	select {
	case msg := <-sub.Channel():
		v, ok := msg.Payload.(types.BatteryValue)
		if !ok || v.MilliV != 3850 || v.SOCPct != 76.5 {
			t.Fatalf("payload = %#v", msg.Payload)
		}
	default:
		t.Fatal("no retained battery value")
	}
}

func TestSOCClampedToRails(t *testing.T) {
	conn := bus.NewBus(8).NewConnection("test")
	m := New(&fakeGauge{mv: 4200, soc: 103.2}, conn)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	now = now.Add(DefaultInterval)
	m.Tick()

	sub := conn.Subscribe(bus.Topic{"battery", "value"})
	select {
	case msg := <-sub.Channel():
		v := msg.Payload.(types.BatteryValue)
		if v.SOCPct != 100 {
			t.Fatalf("SOCPct = %v, want 100", v.SOCPct)
		}
	default:
		t.Fatal("no retained battery value")
	}
}

func TestRateLimited(t *testing.T) {
	g := &fakeGauge{soc: 50}
	m := New(g, nil)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	now = now.Add(DefaultInterval)
	m.Tick()
	first := m.lastRead
	m.Tick() // same instant: skipped
	if m.lastRead != first {
		t.Fatal("second tick read the gauge early")
	}
}

func TestGaugeErrorSkipped(t *testing.T) {
	conn := bus.NewBus(8).NewConnection("test")
	m := New(&fakeGauge{err: errors.New("nak")}, conn)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	now = now.Add(DefaultInterval)
	m.Tick()

	sub := conn.Subscribe(bus.Topic{"battery", "value"})
	select {
	case <-sub.Channel():
		t.Fatal("value published despite gauge failure")
	default:
	}
}
