// Package power owns sleep entry and wake classification. The boot record
// lives in a platform-provided retained store that survives deep sleep; it
// is never trusted unless the magic marker matches.
package power

import (
	"encoding/binary"
	"log"

	"m3logger/errcode"
)

// Magic marks a boot record written by this firmware.
const Magic = 0xDEADBEEF

// recordLen is the encoded boot record size: magic, boot count, state, valid.
const recordLen = 4 + 4 + 1 + 1

// WakeCause classifies why execution resumed.
type WakeCause uint8

const (
	WakeFirstBoot WakeCause = iota
	WakeButton
	WakeTimer
	WakeOther
)

func (c WakeCause) String() string {
	switch c {
	case WakeFirstBoot:
		return "first_boot"
	case WakeButton:
		return "button"
	case WakeTimer:
		return "timer"
	default:
		return "other"
	}
}

// BootRecord is the sleep-surviving state snapshot.
type BootRecord struct {
	BootCount uint32
	LastState string
	Valid     bool
}

// State codes persisted in the record.
var stateCodes = map[string]uint8{
	"IDLE": 0, "AWAITING_QR": 1, "RECORDING": 2, "CONFIG": 3, "ERROR": 4,
}

var stateNames = [5]string{"IDLE", "AWAITING_QR", "RECORDING", "CONFIG", "ERROR"}

func encodeRecord(r BootRecord) []byte {
	b := make([]byte, recordLen)
	binary.LittleEndian.PutUint32(b[0:], Magic)
	binary.LittleEndian.PutUint32(b[4:], r.BootCount)
	b[8] = stateCodes[r.LastState]
	if r.Valid {
		b[9] = 1
	}
	return b
}

// decodeRecord rejects anything without the magic marker.
func decodeRecord(b []byte) (BootRecord, bool) {
	if len(b) < recordLen || binary.LittleEndian.Uint32(b[0:]) != Magic {
		return BootRecord{}, false
	}
	r := BootRecord{
		BootCount: binary.LittleEndian.Uint32(b[4:]),
		Valid:     b[9] == 1,
	}
	if int(b[8]) < len(stateNames) {
		r.LastState = stateNames[b[8]]
	} else {
		return BootRecord{}, false
	}
	return r, true
}

// RetainedStore is the platform capability holding the record across sleep.
type RetainedStore interface {
	Read() ([]byte, error)
	Write([]byte) error
}

// Platform supplies the sleep and wake primitives.
type Platform interface {
	// ArmButtonWake configures the single external wake source.
	ArmButtonWake() error
	// Sleep enters deep sleep. On real hardware it does not return; host
	// platforms may return on simulated wake.
	Sleep() error
	// RawWakeCause reports the platform wake reason for the current boot.
	RawWakeCause() WakeCause
}

// Controller mediates between the core and the platform.
type Controller struct {
	store RetainedStore
	plat  Platform

	boot      BootRecord
	bootKnown bool
}

func NewController(store RetainedStore, plat Platform) *Controller {
	return &Controller{store: store, plat: plat}
}

// EnterSleep persists the boot record, arms the button wake source, and
// issues the platform sleep call, in that order. Preconditions (no open
// session, storage closed) are the caller's responsibility.
func (c *Controller) EnterSleep(lastState string) error {
	rec := BootRecord{
		BootCount: c.record().BootCount + 1,
		LastState: lastState,
		Valid:     true,
	}
	if err := c.store.Write(encodeRecord(rec)); err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "enter_sleep", Err: err}
	}
	if err := c.plat.ArmButtonWake(); err != nil {
		return &errcode.E{C: errcode.Error, Op: "enter_sleep", Msg: "arm wake", Err: err}
	}
	log.Printf("power: entering deep sleep (boot %d, state %s)", rec.BootCount, lastState)
	return c.plat.Sleep()
}

// record lazily reads and caches the retained record for this boot.
func (c *Controller) record() BootRecord {
	if c.bootKnown {
		return c.boot
	}
	c.bootKnown = true
	b, err := c.store.Read()
	if err != nil {
		return c.boot
	}
	if rec, ok := decodeRecord(b); ok {
		c.boot = rec
	}
	return c.boot
}

// ClassifyWakeCause combines the platform wake reason with record validity.
// A magic mismatch is always first-boot, never a stale prior state.
func (c *Controller) ClassifyWakeCause() WakeCause {
	rec := c.record()
	if !rec.Valid {
		return WakeFirstBoot
	}
	cause := c.plat.RawWakeCause()
	if cause == WakeFirstBoot {
		return WakeFirstBoot
	}
	return cause
}

// RestoreState returns the logical state to resume in. Anything but a clean
// wake restarts in IDLE.
func (c *Controller) RestoreState() string {
	if c.ClassifyWakeCause() == WakeFirstBoot {
		return "IDLE"
	}
	rec := c.record()
	if rec.LastState == "" {
		return "IDLE"
	}
	return rec.LastState
}

// BootCount reports how many sleep cycles the record has seen.
func (c *Controller) BootCount() uint32 { return c.record().BootCount }
