// Package storage owns the session lifecycle on removable media: one CSV
// file per session, a FIFO write buffer flushed on fill or on a periodic
// durability interval, and an append-only session index.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"m3logger/errcode"
	"m3logger/types"
)

const (
	// DataDir is the logging directory under the storage root.
	DataDir = "data"
	// IndexFile is the append-only session index inside DataDir, one JSON
	// record per line.
	IndexFile = "metadata.json"

	// DefaultWriteBufCap batches rows between file writes.
	DefaultWriteBufCap = 20
	// DefaultSyncInterval bounds how much data a power loss can take.
	DefaultSyncInterval = 5000 * time.Millisecond
)

// Config controls non-default store behaviour.
type Config struct {
	WriteBufCap  int
	SyncInterval time.Duration
	// RecordPosition adds lat/lon columns to the CSV.
	RecordPosition bool
}

// Store manages at most one active session. Owned by the main loop; not safe
// for concurrent use.
type Store struct {
	root string
	cfg  Config

	f        *os.File
	w        *bufio.Writer
	buf      []types.Sample
	active   bool
	meta     types.SessionMeta
	sessID   string
	filename string
	startISO string
	started  time.Time
	written  uint32
	lastSync time.Time

	now func() time.Time
}

// New creates a store rooted at the given directory. The directory is not
// touched until Mount.
func New(root string, cfgs ...Config) *Store {
	cfg := Config{}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.WriteBufCap <= 0 {
		cfg.WriteBufCap = DefaultWriteBufCap
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	return &Store{
		root: root,
		cfg:  cfg,
		buf:  make([]types.Sample, 0, cfg.WriteBufCap),
		now:  time.Now,
	}
}

// Mount verifies the medium is present and writable and creates the logging
// directory. Returns errcode.StorageUnavail when the root is missing.
func (s *Store) Mount() error {
	if fi, err := os.Stat(s.root); err != nil || !fi.IsDir() {
		return &errcode.E{C: errcode.StorageUnavail, Op: "mount", Msg: s.root, Err: err}
	}
	dir := filepath.Join(s.root, DataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &errcode.E{C: errcode.StorageUnavail, Op: "mount", Err: err}
	}
	return nil
}

// Unmount releases the medium ahead of power-down. It refuses while a
// session is open; outside a session the store holds no file handles, so
// this is purely the ordering point for the pre-sleep sequence.
func (s *Store) Unmount() error {
	if s.active {
		return errcode.SessionActive
	}
	return nil
}

// Active reports whether a session is open.
func (s *Store) Active() bool { return s.active }

// SessionID returns the id of the open session, or "".
func (s *Store) SessionID() string { return s.sessID }

// SamplesWritten returns the monotonic per-session write counter.
func (s *Store) SamplesWritten() uint32 { return s.written }

// SanitizeName replaces characters unsafe for FAT-style filesystems.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

// newSessionID derives a unique timestamp-based id, probing the data
// directory for collisions.
func (s *Store) newSessionID(testID string) string {
	base := s.now().Format("20060102_150405")
	id := base
	for n := 1; ; n++ {
		path := filepath.Join(s.root, DataDir, id+"_"+SanitizeName(testID)+".csv")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return id
		}
		id = base + "_" + strconv.Itoa(n)
	}
}

// StartSession opens the session file and writes the CSV header. Rejects
// with errcode.SessionActive when a session is already open.
func (s *Store) StartSession(meta types.SessionMeta, startISO string) error {
	if s.active {
		return errcode.SessionActive
	}
	s.sessID = s.newSessionID(meta.TestID)
	s.filename = s.sessID + "_" + SanitizeName(meta.TestID) + ".csv"
	path := filepath.Join(s.root, DataDir, s.filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "start_session", Err: err}
	}
	w := bufio.NewWriter(f)
	header := "test_id,timestamp_ms,accel_x,accel_y,accel_z,gyro_x,gyro_y,gyro_z"
	if s.cfg.RecordPosition {
		header += ",lat,lon"
	}
	if _, err := w.WriteString(header + "\n"); err != nil {
		f.Close()
		os.Remove(path)
		return &errcode.E{C: errcode.StorageWrite, Op: "start_session", Err: err}
	}

	s.f = f
	s.w = w
	s.buf = s.buf[:0]
	s.meta = meta
	s.startISO = startISO
	s.started = s.now()
	s.written = 0
	s.lastSync = s.started
	s.active = true
	return nil
}

// WriteSample appends one sample to the write buffer, flushing to the file
// when the buffer fills. Returns errcode.NoSession when no session is open.
func (s *Store) WriteSample(sm types.Sample) error {
	if !s.active {
		return errcode.NoSession
	}
	s.buf = append(s.buf, sm)
	if len(s.buf) >= s.cfg.WriteBufCap {
		return s.flush()
	}
	return nil
}

// MaybeSync flushes and fsyncs once per durability interval. Call every tick
// while recording.
func (s *Store) MaybeSync() error {
	if !s.active {
		return nil
	}
	now := s.now()
	if now.Sub(s.lastSync) < s.cfg.SyncInterval {
		return nil
	}
	s.lastSync = now
	if err := s.flush(); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "sync", Err: err}
	}
	if err := s.f.Sync(); err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "sync", Err: err}
	}
	return nil
}

// flush writes every buffered sample to the file in FIFO order. A write
// failure is surfaced immediately; samples already written are not
// rewritten, the rest shift to the front and stay buffered. The backing
// array is reused so the recording path stays allocation-free.
func (s *Store) flush() error {
	for i, sm := range s.buf {
		if err := s.writeRow(sm); err != nil {
			n := copy(s.buf, s.buf[i:])
			s.buf = s.buf[:n]
			return &errcode.E{C: errcode.StorageWrite, Op: "flush", Err: err}
		}
		s.written++
	}
	s.buf = s.buf[:0]
	return nil
}

func (s *Store) writeRow(sm types.Sample) error {
	var err error
	if s.cfg.RecordPosition {
		_, err = fmt.Fprintf(s.w, "%s,%d,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,%.6f,%.6f\n",
			s.meta.TestID, sm.TimestampMs,
			sm.AccelX, sm.AccelY, sm.AccelZ,
			sm.GyroX, sm.GyroY, sm.GyroZ,
			sm.Lat, sm.Lon)
	} else {
		_, err = fmt.Fprintf(s.w, "%s,%d,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f\n",
			s.meta.TestID, sm.TimestampMs,
			sm.AccelX, sm.AccelY, sm.AccelZ,
			sm.GyroX, sm.GyroY, sm.GyroZ)
	}
	return err
}

// EndSession flushes, syncs, closes the file, and appends the summary record
// to the session index. Ending with no session open is a successful no-op,
// so a second call for the same session is safe. The file handle is closed
// even when the final flush fails.
func (s *Store) EndSession(st types.SamplerStats, timeSource string, gpsLocked bool) (types.SessionRecord, error) {
	if !s.active {
		return types.SessionRecord{}, nil
	}
	s.active = false

	flushErr := s.flush()
	if flushErr == nil {
		if err := s.w.Flush(); err != nil {
			flushErr = &errcode.E{C: errcode.StorageWrite, Op: "end_session", Err: err}
		}
	}
	if flushErr == nil {
		if err := s.f.Sync(); err != nil {
			flushErr = &errcode.E{C: errcode.StorageWrite, Op: "end_session", Err: err}
		}
	}
	closeErr := s.f.Close()
	s.f = nil
	s.w = nil
	s.buf = s.buf[:0]

	if flushErr != nil {
		return types.SessionRecord{}, flushErr
	}
	if closeErr != nil {
		return types.SessionRecord{}, &errcode.E{C: errcode.StorageWrite, Op: "end_session", Err: closeErr}
	}

	rec := types.SessionRecord{
		SessionID:    s.sessID,
		TestID:       s.meta.TestID,
		Description:  s.meta.Description,
		Labels:       s.meta.Labels,
		StartTime:    s.startISO,
		DurationMs:   s.now().Sub(s.started).Milliseconds(),
		Samples:      s.written,
		ActualRateHz: st.ActualRateHz,
		Filename:     s.filename,
		TimeSource:   timeSource,
		GPSLocked:    gpsLocked,
	}
	if err := s.appendIndex(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// appendIndex appends one JSON record per line; the index is only appended
// to after the session data is durable.
func (s *Store) appendIndex(rec types.SessionRecord) error {
	path := filepath.Join(s.root, DataDir, IndexFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "index", Err: err}
	}
	defer f.Close()
	b, err := json.Marshal(rec)
	if err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "index", Err: err}
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "index", Err: err}
	}
	return f.Sync()
}

// ReadIndex parses the session index. Blank and unparseable lines are
// skipped; a power cut can tear the last line and must not hide the rest.
func (s *Store) ReadIndex() ([]types.SessionRecord, error) {
	path := filepath.Join(s.root, DataDir, IndexFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recs []types.SessionRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec types.SessionRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, sc.Err()
}
