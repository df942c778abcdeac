package errcode

// Code is a stable, log- and bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Intake / parsing
	InvalidPayload Code = "invalid_payload" // structurally unparseable
	InvalidParams  Code = "invalid_params"  // well-formed but out of bounds
	WrongShape     Code = "wrong_shape"     // payload is the other QR shape

	// State machine
	IllegalTransition Code = "illegal_transition"

	// Sampling
	BufferFull Code = "buffer_full"
	SensorRead Code = "sensor_read"

	// Storage
	SessionActive  Code = "session_active"
	NoSession      Code = "no_session"
	StorageWrite   Code = "storage_write"
	StorageUnavail Code = "storage_unavailable"

	// Network / peripherals
	ProbeFailed Code = "probe_failed"
	NotLocked   Code = "not_locked"
	Timeout     Code = "timeout"
	Unsupported Code = "unsupported"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Is reports whether err carries the given code.
func Is(err error, c Code) bool { return Of(err) == c }
