package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"m3logger/errcode"
	"m3logger/types"
)

func meta() types.SessionMeta {
	return types.SessionMeta{
		TestID:      "ABC12345",
		Description: "bench test",
		Labels:      []string{"x"},
	}
}

func newTestStore(t *testing.T, cfgs ...Config) *Store {
	t.Helper()
	s := New(t.TempDir(), cfgs...)
	if err := s.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return s
}

func TestMountUnavailableRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))
	if err := s.Mount(); !errcode.Is(err, errcode.StorageUnavail) {
		t.Fatalf("Mount = %v, want StorageUnavail", err)
	}
}

func TestSingleActiveSession(t *testing.T) {
	s := newTestStore(t)
	if err := s.StartSession(meta(), "2026-08-24T10:00:00Z"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := s.StartSession(meta(), ""); !errcode.Is(err, errcode.SessionActive) {
		t.Fatalf("second StartSession = %v, want SessionActive", err)
	}
	if _, err := s.EndSession(types.SamplerStats{}, "mono", false); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
}

func TestUnmountRefusedWhileSessionOpen(t *testing.T) {
	s := newTestStore(t)
	if err := s.StartSession(meta(), "2026-08-24T10:00:00Z"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := s.Unmount(); !errcode.Is(err, errcode.SessionActive) {
		t.Fatalf("Unmount with open session = %v, want SessionActive", err)
	}
	if _, err := s.EndSession(types.SamplerStats{}, "mono", false); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := s.Unmount(); err != nil {
		t.Fatalf("Unmount after end = %v", err)
	}
}

func TestFlushReusesBufferCapacity(t *testing.T) {
	s := newTestStore(t, Config{WriteBufCap: 4})
	if err := s.StartSession(meta(), "2026-08-24T10:00:00Z"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	for i := 0; i < 25; i++ {
		if err := s.WriteSample(types.Sample{TimestampMs: int64(i)}); err != nil {
			t.Fatalf("WriteSample %d: %v", i, err)
		}
	}
	// Many fill-and-flush cycles must keep reusing the original backing
	// array on the recording path.
	if got := cap(s.buf); got != 4 {
		t.Fatalf("write buffer capacity = %d, want 4", got)
	}
	if _, err := s.EndSession(types.SamplerStats{}, "mono", false); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
}

func TestWriteSampleWithoutSession(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteSample(types.Sample{}); !errcode.Is(err, errcode.NoSession) {
		t.Fatalf("WriteSample = %v, want NoSession", err)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	s := newTestStore(t)
	// Ending with nothing started is a successful no-op.
	if rec, err := s.EndSession(types.SamplerStats{}, "mono", false); err != nil || rec.SessionID != "" {
		t.Fatalf("EndSession = %+v, %v; want empty no-op", rec, err)
	}

	if err := s.StartSession(meta(), ""); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := s.EndSession(types.SamplerStats{}, "mono", false); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	// Second call for the same session: no-op, no duplicate index entry.
	if _, err := s.EndSession(types.SamplerStats{}, "mono", false); err != nil {
		t.Fatalf("repeat EndSession: %v", err)
	}
	recs, err := s.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("index entries = %d, want 1", len(recs))
	}
}

func TestCSVRoundTripUnderFlushInterleaving(t *testing.T) {
	// Tiny write buffer so fills and explicit syncs interleave.
	s := newTestStore(t, Config{WriteBufCap: 3, SyncInterval: time.Nanosecond})
	if err := s.StartSession(meta(), ""); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	const n = 50
	for i := 0; i < n; i++ {
		sm := types.Sample{
			TimestampMs: int64(i * 10),
			AccelX:      float32(i),
			GyroZ:       -float32(i),
		}
		if err := s.WriteSample(sm); err != nil {
			t.Fatalf("WriteSample %d: %v", i, err)
		}
		if i%7 == 0 {
			if err := s.MaybeSync(); err != nil {
				t.Fatalf("MaybeSync at %d: %v", i, err)
			}
		}
	}
	rec, err := s.EndSession(types.SamplerStats{ActualRateHz: 100}, "gps", true)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if rec.Samples != n {
		t.Fatalf("record samples = %d, want %d", rec.Samples, n)
	}

	f, err := os.Open(filepath.Join(s.root, DataDir, rec.Filename))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != n+1 {
		t.Fatalf("rows = %d, want header + %d", len(rows), n)
	}
	if rows[0][0] != "test_id" || rows[0][1] != "timestamp_ms" {
		t.Fatalf("header = %v", rows[0])
	}
	for i, row := range rows[1:] {
		if row[0] != "ABC12345" {
			t.Fatalf("row %d test_id = %q", i, row[0])
		}
		ts, _ := strconv.ParseInt(row[1], 10, 64)
		if ts != int64(i*10) {
			t.Fatalf("row %d timestamp = %d, want %d (gap or reorder)", i, ts, i*10)
		}
		ax, _ := strconv.ParseFloat(row[2], 64)
		if int(ax) != i {
			t.Fatalf("row %d accel_x = %v, want %d", i, ax, i)
		}
	}
}

func TestPositionColumns(t *testing.T) {
	s := newTestStore(t, Config{RecordPosition: true})
	if err := s.StartSession(meta(), ""); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := s.WriteSample(types.Sample{Lat: 51.5, Lon: -0.12}); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	rec, err := s.EndSession(types.SamplerStats{}, "gps", true)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	f, _ := os.Open(filepath.Join(s.root, DataDir, rec.Filename))
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if got := len(rows[0]); got != 10 {
		t.Fatalf("columns = %d, want 10 with lat/lon", got)
	}
	if rows[0][8] != "lat" || rows[0][9] != "lon" {
		t.Fatalf("header = %v", rows[0])
	}
}

func TestSanitizeName(t *testing.T) {
	if got := SanitizeName("a/b:c*1"); got != "a_b_c_1" {
		t.Fatalf("SanitizeName = %q", got)
	}
}

func TestUniqueSessionIDs(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if err := s.StartSession(meta(), ""); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	first := s.SessionID()
	if _, err := s.EndSession(types.SamplerStats{}, "mono", false); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	// Same wall clock second: the id must still be unique.
	if err := s.StartSession(meta(), ""); err != nil {
		t.Fatalf("second StartSession: %v", err)
	}
	if s.SessionID() == first {
		t.Fatalf("duplicate session id %q", first)
	}
	if _, err := s.EndSession(types.SamplerStats{}, "mono", false); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
}

func TestIndexRecordsAppend(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.StartSession(meta(), "2026-08-24T10:00:00Z"); err != nil {
			t.Fatalf("StartSession %d: %v", i, err)
		}
		if _, err := s.EndSession(types.SamplerStats{ActualRateHz: 99.5}, "gps", true); err != nil {
			t.Fatalf("EndSession %d: %v", i, err)
		}
	}
	recs, err := s.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("index entries = %d, want 3", len(recs))
	}
	for _, r := range recs {
		if r.TestID != "ABC12345" || r.StartTime != "2026-08-24T10:00:00Z" || !r.GPSLocked {
			t.Fatalf("bad index record: %+v", r)
		}
	}
}
