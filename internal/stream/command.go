package stream

import (
	"fmt"
	"strings"
)

// Variant selects the command vocabulary and state shape.
type Variant int

const (
	// VariantDual has separate simple (text heartbeat) and binary modes.
	VariantDual Variant = iota
	// VariantSingle has a single binary Streaming mode driven by START/STOP.
	VariantSingle
)

// ParseVariant maps a configuration string to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "", "dual":
		return VariantDual, nil
	case "single":
		return VariantSingle, nil
	default:
		return 0, fmt.Errorf("unknown variant %q: expected dual or single", s)
	}
}

func (v Variant) String() string {
	if v == VariantSingle {
		return "single"
	}
	return "dual"
}

// Command is a recognised host instruction.
type Command int

const (
	CmdUnknown Command = iota
	CmdStart
	CmdStop
	CmdStartSimple
	CmdStopSimple
	CmdStartStream
	CmdStopStream
)

var commandTokens = map[Command]string{
	CmdStart:       "START",
	CmdStop:        "STOP",
	CmdStartSimple: "START_SIMPLE",
	CmdStopSimple:  "STOP_SIMPLE",
	CmdStartStream: "START_STREAM",
	CmdStopStream:  "STOP_STREAM",
}

func (c Command) String() string {
	if s, ok := commandTokens[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseCommand recognises a token from the variant's vocabulary. Tokens are
// case sensitive; surrounding whitespace and line endings are ignored.
func ParseCommand(v Variant, text string) (Command, bool) {
	token := strings.TrimSpace(text)
	switch v {
	case VariantSingle:
		switch token {
		case "START":
			return CmdStart, true
		case "STOP":
			return CmdStop, true
		}
	default:
		switch token {
		case "START_SIMPLE":
			return CmdStartSimple, true
		case "STOP_SIMPLE":
			return CmdStopSimple, true
		case "START_STREAM":
			return CmdStartStream, true
		case "STOP_STREAM":
			return CmdStopStream, true
		}
	}
	return CmdUnknown, false
}
