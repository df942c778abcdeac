package max17048

import (
	"errors"
	"math"
	"testing"
)

type fakeBus struct {
	regs [256]byte
	fail error
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.fail != nil {
		return f.fail
	}
	if len(r) > 0 {
		for i := range r {
			r[i] = f.regs[int(w[0])+i]
		}
		return nil
	}
	for i := 1; i < len(w); i++ {
		f.regs[int(w[0])+i-1] = w[i]
	}
	return nil
}

func (f *fakeBus) putWord(reg byte, v uint16) {
	f.regs[reg] = byte(v >> 8)
	f.regs[reg+1] = byte(v)
}

func TestCellMilliV(t *testing.T) {
	b := &fakeBus{}
	// 3.70 V = 3700000 µV / 78.125 µV = 47360 LSB.
	b.putWord(regVCell, 47360)
	d := New(b)
	mv, err := d.CellMilliV()
	if err != nil {
		t.Fatalf("CellMilliV: %v", err)
	}
	if mv != 3700 {
		t.Fatalf("mv = %d, want 3700", mv)
	}
}

func TestSOCPct(t *testing.T) {
	b := &fakeBus{}
	b.putWord(regSOC, 87*256+128) // 87.5%
	d := New(b)
	soc, err := d.SOCPct()
	if err != nil {
		t.Fatalf("SOCPct: %v", err)
	}
	if math.Abs(float64(soc)-87.5) > 0.001 {
		t.Fatalf("soc = %v, want 87.5", soc)
	}
}

func TestRateSigned(t *testing.T) {
	b := &fakeBus{}
	rateRaw := int16(-50)
	b.putWord(regCRate, uint16(rateRaw)) // discharging
	d := New(b)
	rate, err := d.RatePctPerHour()
	if err != nil {
		t.Fatalf("RatePctPerHour: %v", err)
	}
	if math.Abs(float64(rate)-(-10.4)) > 0.001 {
		t.Fatalf("rate = %v, want -10.4", rate)
	}
}

func TestBusErrorPropagates(t *testing.T) {
	d := New(&fakeBus{fail: errors.New("nak")})
	if _, err := d.SOCPct(); err == nil {
		t.Fatal("SOCPct: expected bus error")
	}
}
