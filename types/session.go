package types

// Session metadata limits. The QR intake validates against these before a
// session can start; storage trusts validated metadata.
const (
	TestIDLen         = 8  // exactly 8 alphanumeric chars
	MaxDescriptionLen = 64 // 1..64 chars
	MaxLabels         = 10 // 1..10 labels
	MaxLabelLen       = 32 // 1..32 chars each
)

// SessionMeta is the validated session-metadata QR payload.
type SessionMeta struct {
	TestID      string   `json:"test_id"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
}

// SessionRecord is one entry in the append-only session index
// (metadata.json). Written after the session CSV is durably flushed.
type SessionRecord struct {
	SessionID    string   `json:"session_id"`
	TestID       string   `json:"test_id"`
	Description  string   `json:"description"`
	Labels       []string `json:"labels"`
	StartTime    string   `json:"start_time"` // ISO-8601 when locked
	DurationMs   int64    `json:"duration_ms"`
	Samples      uint32   `json:"samples"`
	ActualRateHz float32  `json:"actual_rate_hz"`
	Filename     string   `json:"filename"`
	TimeSource   string   `json:"time_source"` // "gps" or "mono"
	GPSLocked    bool     `json:"gps_locked"`
}
