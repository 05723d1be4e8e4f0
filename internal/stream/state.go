package stream

// State is the controller's connection and streaming mode. Exactly one
// mode is active at a time.
type State int

const (
	StateDisconnected State = iota
	StateIdle
	StateStreamingSimple
	StateStreamingBinary
	// StateStreaming is the single-variant streaming mode; it drives the
	// binary pipeline.
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateIdle:
		return "idle"
	case StateStreamingSimple:
		return "streaming_simple"
	case StateStreamingBinary:
		return "streaming_binary"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Streaming reports whether s is any streaming mode.
func (s State) Streaming() bool {
	return s == StateStreamingSimple || s == StateStreamingBinary || s == StateStreaming
}

// Binary reports whether s emits framed packets.
func (s State) Binary() bool {
	return s == StateStreamingBinary || s == StateStreaming
}

// startTarget returns the state a start command leads to.
func startTarget(c Command) (State, bool) {
	switch c {
	case CmdStartSimple:
		return StateStreamingSimple, true
	case CmdStartStream:
		return StateStreamingBinary, true
	case CmdStart:
		return StateStreaming, true
	}
	return 0, false
}

// stopTarget returns the streaming state a stop command ends.
func stopTarget(c Command) (State, bool) {
	switch c {
	case CmdStopSimple:
		return StateStreamingSimple, true
	case CmdStopStream:
		return StateStreamingBinary, true
	case CmdStop:
		return StateStreaming, true
	}
	return 0, false
}
