package recorder

// State is the single authoritative mode of the device.
type State uint8

const (
	StateIdle State = iota
	StateAwaitingQR
	StateRecording
	StateConfig
	StateError
	numStates
)

var stateNames = [numStates]string{"IDLE", "AWAITING_QR", "RECORDING", "CONFIG", "ERROR"}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// legalEdges is the fixed transition adjacency, one bit per target state.
var legalEdges = [numStates]uint8{
	StateIdle:       1<<StateAwaitingQR | 1<<StateConfig | 1<<StateError,
	StateAwaitingQR: 1<<StateRecording | 1<<StateIdle | 1<<StateError,
	StateRecording:  1<<StateIdle | 1<<StateError,
	StateConfig:     1<<StateIdle | 1<<StateError,
	StateError:      1 << StateIdle,
}

func legal(from, to State) bool {
	return from < numStates && to < numStates && legalEdges[from]&(1<<to) != 0
}
