package telemetry

// SequenceTracker watches packet ids on the receiving side. Gaps in the
// sequence are how packet loss is detected; the device never retries.
type SequenceTracker struct {
	Received   int
	Missing    int
	Duplicates int

	last    uint8
	started bool
}

// Observe records one received id and returns how many packets were lost
// immediately before it.
func (t *SequenceTracker) Observe(seq uint8) int {
	t.Received++
	if !t.started {
		t.started = true
		t.last = seq
		return 0
	}
	if seq == t.last {
		t.Duplicates++
		return 0
	}

	lost := 0
	for want := NextSeq(t.last); want != seq; want = NextSeq(want) {
		lost++
		if lost > 254 {
			// seq is not reachable from last (e.g. 0); count it as a restart
			lost = 0
			break
		}
	}
	t.Missing += lost
	t.last = seq
	return lost
}

// LossRatio returns missing / (received + missing), or 0 before any packet.
func (t *SequenceTracker) LossRatio() float64 {
	total := t.Received + t.Missing
	if total == 0 {
		return 0
	}
	return float64(t.Missing) / float64(total)
}
