package telemetry

// FirstSeq is the id of the first packet of a session and the id that
// follows 255.
const FirstSeq uint8 = 1

// NextSeq returns the id following seq. 0 is never produced.
func NextSeq(seq uint8) uint8 {
	if seq == 255 {
		return FirstSeq
	}
	return seq + 1
}

// Encoder accumulates samples and emits a Packet for every
// SamplesPerPacket of them. It owns the sequence counter for one streaming
// session. The zero value is not ready; use NewEncoder.
type Encoder struct {
	buf    [SamplesPerPacket]uint16
	cursor int
	seq    uint8
}

func NewEncoder() *Encoder {
	return &Encoder{seq: FirstSeq}
}

// Accumulate appends sample to the buffer. When the buffer is full it
// returns the completed packet stamped with nowMs and true; otherwise the
// zero Packet and false.
func (e *Encoder) Accumulate(sample uint16, nowMs uint32) (Packet, bool) {
	e.buf[e.cursor] = sample & SampleMask
	e.cursor++
	if e.cursor < SamplesPerPacket {
		return Packet{}, false
	}

	p := Packet{
		Seq:         e.seq,
		TimestampMs: nowMs,
		Samples:     e.buf,
	}
	e.cursor = 0
	e.seq = NextSeq(e.seq)
	return p, true
}

// Reset drops any partially filled buffer and restarts the sequence at 1.
// No short packet is ever flushed.
func (e *Encoder) Reset() {
	e.buf = [SamplesPerPacket]uint16{}
	e.cursor = 0
	e.seq = FirstSeq
}

// Pending reports how many samples are buffered for the next packet.
func (e *Encoder) Pending() int { return e.cursor }

// Seq returns the id the next completed packet will carry.
func (e *Encoder) Seq() uint8 { return e.seq }
