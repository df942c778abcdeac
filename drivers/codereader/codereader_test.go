package codereader

import (
	"errors"
	"testing"
)

type fakeBus struct {
	payload []byte // length prefix + content served on next read
	fail    error
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.fail != nil {
		return f.fail
	}
	copy(r, f.payload)
	// Device latch clears once read.
	f.payload = nil
	return nil
}

func framed(s string) []byte {
	b := make([]byte, 2+len(s))
	b[0] = byte(len(s))
	b[1] = byte(len(s) >> 8)
	copy(b[2:], s)
	return b
}

func TestPollDecodesContent(t *testing.T) {
	b := &fakeBus{payload: framed(`{"test_id":"RUN00042"}`)}
	d := New(b)

	content, ok, err := d.Poll()
	if err != nil || !ok {
		t.Fatalf("Poll = %q, %v, %v; want content", content, ok, err)
	}
	if content != `{"test_id":"RUN00042"}` {
		t.Fatalf("content = %q", content)
	}

	// Latch cleared: second poll sees nothing.
	_, ok, err = d.Poll()
	if err != nil || ok {
		t.Fatalf("second Poll ok = %v, %v; want false", ok, err)
	}
}

func TestPollEmpty(t *testing.T) {
	d := New(&fakeBus{})
	if _, ok, err := d.Poll(); ok || err != nil {
		t.Fatalf("Poll on idle device = %v, %v; want false, nil", ok, err)
	}
}

func TestPollLengthOutOfRange(t *testing.T) {
	d := New(&fakeBus{payload: []byte{0xFF, 0xFF}})
	if _, _, err := d.Poll(); !errors.Is(err, ErrBadLength) {
		t.Fatalf("Poll = %v, want ErrBadLength", err)
	}
}

func TestPollBusError(t *testing.T) {
	d := New(&fakeBus{fail: errors.New("nak")})
	if _, _, err := d.Poll(); err == nil {
		t.Fatal("Poll: expected bus error")
	}
}
