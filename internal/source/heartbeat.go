package source

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Shape describes one synthetic heartbeat. Durations are per segment;
// the TP flat segment absorbs whatever remains of the beat period.
// Amplitudes are in millivolts at the electrode.
type Shape struct {
	P   time.Duration
	PR  time.Duration
	QRS time.Duration
	ST  time.Duration
	T   time.Duration

	PAmp float64
	QAmp float64
	RAmp float64
	SAmp float64
	TAmp float64
}

// DefaultShape is a textbook lead II beat.
func DefaultShape() Shape {
	return Shape{
		P:    80 * time.Millisecond,
		PR:   80 * time.Millisecond,
		QRS:  100 * time.Millisecond,
		ST:   120 * time.Millisecond,
		T:    160 * time.Millisecond,
		PAmp: 0.25,
		QAmp: -0.15,
		RAmp: 1.2,
		SAmp: -0.3,
		TAmp: 0.35,
	}
}

// Active returns the total duration of the P wave through the T wave.
func (s Shape) Active() time.Duration {
	return s.P + s.PR + s.QRS + s.ST + s.T
}

// MaxBPM returns the fastest rate whose beat period still fits every
// segment of s.
func (s Shape) MaxBPM() float64 {
	active := s.Active()
	if active <= 0 {
		return math.Inf(1)
	}
	return float64(time.Minute) / float64(active)
}

// ADCModel converts electrode millivolts to converter codes.
type ADCModel struct {
	Gain     float64 // front end amplification
	Baseline float64 // volts added to the amplified signal
	VRef     float64 // converter full scale in volts
	Max      float64 // largest code
}

// DefaultADCModel matches a 12-bit converter behind an instrumentation
// amplifier biased at mid rail.
func DefaultADCModel() ADCModel {
	return ADCModel{Gain: 100, Baseline: 1.5, VRef: 3.3, Max: MaxSample}
}

// ToADC converts one millivolt reading to a code, clamping at the rails.
func (m ADCModel) ToADC(mV float64) uint16 {
	vin := m.Baseline + mV*m.Gain/1000
	vin = math.Max(0, math.Min(m.VRef, vin))
	return uint16(math.Round(vin / m.VRef * m.Max))
}

// GenerateHeartbeat builds a table of beats heartbeats at bpm sampled at
// fs Hz, converted with model. It is a one-off setup step; the result is
// replayed by TableSource.
func GenerateHeartbeat(shape Shape, model ADCModel, bpm float64, fs int, beats int) ([]uint16, error) {
	if bpm <= 0 || fs <= 0 || beats <= 0 {
		return nil, fmt.Errorf("invalid heartbeat parameters: bpm=%v fs=%d beats=%d", bpm, fs, beats)
	}

	period := time.Duration(float64(time.Minute) / bpm)
	if active := shape.Active(); active > period {
		return nil, fmt.Errorf("beat segments last %v, longer than the %v period at %.0f bpm", active, period, bpm)
	}

	n := func(d time.Duration) int {
		return int(math.Round(d.Seconds() * float64(fs)))
	}

	var beat []float64
	beat = append(beat, bump(n(shape.P), shape.PAmp)...)
	beat = append(beat, flat(n(shape.PR))...)
	beat = append(beat, qrs(n(shape.QRS), shape.QAmp, shape.RAmp, shape.SAmp)...)
	beat = append(beat, flat(n(shape.ST))...)
	beat = append(beat, bump(n(shape.T), shape.TAmp)...)
	if tp := n(period) - len(beat); tp > 0 {
		beat = append(beat, flat(tp)...)
	}

	table := make([]uint16, 0, len(beat)*beats)
	for i := 0; i < beats; i++ {
		for _, mV := range beat {
			table = append(table, model.ToADC(mV))
		}
	}
	return table, nil
}

func flat(n int) []float64 {
	return make([]float64, n)
}

// bump is a half sine of height amp over n samples (P and T waves).
func bump(n int, amp float64) []float64 {
	if n <= 0 {
		return nil
	}
	phase := grid(n, 0, math.Pi)
	for i, x := range phase {
		phase[i] = amp * math.Sin(x)
	}
	return phase
}

// qrs is a piecewise linear Q dip, R spike and S dip over n samples, with
// the segment split 1:2:1 between the three deflections.
func qrs(n int, q, r, s float64) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	x := grid(n, 0, 1)
	for i, t := range x {
		switch {
		case t < 0.25:
			out[i] = tri(t/0.25) * q
		case t < 0.75:
			out[i] = tri((t-0.25)/0.5) * r
		default:
			out[i] = tri((t-0.75)/0.25) * s
		}
	}
	return out
}

// tri rises linearly from 0 to 1 at u=0.5 and back to 0 at u=1.
func tri(u float64) float64 {
	return 1 - math.Abs(2*u-1)
}

// grid returns n evenly spaced points in [lo, hi).
func grid(n int, lo, hi float64) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	step := (hi - lo) / float64(n)
	return floats.Span(make([]float64, n), lo, hi-step)
}
