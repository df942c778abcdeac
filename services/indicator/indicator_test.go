package indicator

import (
	"testing"
)

type fakeLED struct {
	calls []string
}

func (f *fakeLED) Off() error { f.calls = append(f.calls, "off"); return nil }
func (f *fakeLED) On(b uint8) error {
	f.calls = append(f.calls, "on")
	return nil
}
func (f *fakeLED) Blink(b uint8, cycle, off uint16) error {
	f.calls = append(f.calls, "blink")
	return nil
}

func TestRenderIdempotent(t *testing.T) {
	led := &fakeLED{}
	ind := New(led, nil)

	ind.Render("IDLE", false)
	ind.Render("IDLE", false)
	ind.Render("IDLE", false)
	if len(led.calls) != 1 {
		t.Fatalf("LED touched %d times for one pattern, want 1", len(led.calls))
	}
}

func TestRenderPerState(t *testing.T) {
	led := &fakeLED{}
	ind := New(led, nil)

	ind.Render("RECORDING", false)
	ind.Render("ERROR", false)
	ind.Render("IDLE", true)
	want := []string{"blink", "blink", "on"}
	if len(led.calls) != len(want) {
		t.Fatalf("calls = %v", led.calls)
	}
	for i := range want {
		if led.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", led.calls, want)
		}
	}
}

func TestLockChangesIdlePattern(t *testing.T) {
	led := &fakeLED{}
	ind := New(led, nil)

	ind.Render("IDLE", false)
	ind.Render("IDLE", true) // lock acquired re-renders
	if len(led.calls) != 2 {
		t.Fatalf("calls = %v, want two renders", led.calls)
	}
}
