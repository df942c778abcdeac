package types

// ---- IMU sample ----

// Sample is one IMU reading. Lat/Lon are 0.0 when no GPS fix is available
// (the 0,0 sentinel is documented in the CSV schema).
type Sample struct {
	TimestampMs int64   // per timesync contract: epoch ms when locked, monotonic ms otherwise
	Lat         float64 // decimal degrees, 0.0 if unknown
	Lon         float64 // decimal degrees, 0.0 if unknown
	AccelX      float32 // g
	AccelY      float32
	AccelZ      float32
	GyroX       float32 // deg/s
	GyroY       float32
	GyroZ       float32
}

// ---- Recorder bus payloads ----

// RecorderState is published retained on recorder/state.
type RecorderState struct {
	State string `json:"state"`
	TSms  int64  `json:"ts_ms"`
}

// Transition is published on recorder/transition for every accepted or
// rejected transition request.
type Transition struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
	Legal  bool   `json:"legal"`
	TSms   int64  `json:"ts_ms"`
}

// SamplerStats is published on recorder/stats every stats interval while
// recording, and once at session end.
type SamplerStats struct {
	Collected    uint32  `json:"collected"`
	Lost         uint32  `json:"lost"`
	ReadFailures uint32  `json:"read_failures"`
	ActualRateHz float32 `json:"actual_rate_hz"`
	LossPct      float32 `json:"loss_pct"`
}

// ---- Time source ----

type TimeSourceState struct {
	Source string `json:"source"` // "gps" or "mono"
	Locked bool   `json:"locked"`
	TSms   int64  `json:"ts_ms"`
}

// ---- Battery telemetry ----

// BatteryValue is published retained on battery/value.
type BatteryValue struct {
	MilliV    int32   `json:"mv"`
	SOCPct    float32 `json:"soc_pct"`
	RatePctHr float32 `json:"rate_pct_hr"` // charge/discharge rate, %/hour
}
