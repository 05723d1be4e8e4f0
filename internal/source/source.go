// Package source provides the sample producers that feed the streaming
// pipeline: a hardware ADC reader, a synthetic waveform replay and a ramp
// test pattern.
package source

import (
	"fmt"
	"sync"

	"github.com/banshee-data/heartstream/internal/monitoring"
)

// MaxSample is the largest 12-bit sample value.
const MaxSample = 4095

// Source produces one raw sample per call. Next must not block.
type Source interface {
	Next() uint16
}

// Kind selects a Source variant from configuration.
type Kind string

const (
	KindADC       Kind = "adc"
	KindSynthetic Kind = "synthetic"
	KindCounter   Kind = "counter"
)

// ParseKind validates a configured source kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindADC, KindSynthetic, KindCounter:
		return k, nil
	case "":
		return KindSynthetic, nil
	default:
		return "", fmt.Errorf("unknown source kind %q: expected adc, synthetic or counter", s)
	}
}

// RawReader is the analog front end: one conversion per call.
type RawReader interface {
	ReadRaw() uint16
}

// RawReaderFunc adapts a function to RawReader.
type RawReaderFunc func() uint16

func (f RawReaderFunc) ReadRaw() uint16 { return f() }

// ADCSource reads live samples from a RawReader. Reads before Init return
// 0 instead of touching an unconfigured converter.
type ADCSource struct {
	reader RawReader
	ready  bool
	warned sync.Once
}

func NewADCSource(r RawReader) *ADCSource {
	return &ADCSource{reader: r}
}

// Init marks the converter as configured.
func (a *ADCSource) Init() error {
	if a.reader == nil {
		return fmt.Errorf("adc source has no reader")
	}
	a.ready = true
	return nil
}

func (a *ADCSource) Next() uint16 {
	if !a.ready {
		a.warned.Do(func() {
			monitoring.Logf("adc: read before init, returning 0")
		})
		return 0
	}
	return a.reader.ReadRaw()
}

// TableSource replays a precomputed table, wrapping to the start after the
// last entry.
type TableSource struct {
	table []uint16
	pos   int
}

func NewTableSource(table []uint16) *TableSource {
	return &TableSource{table: table}
}

func (t *TableSource) Next() uint16 {
	if len(t.table) == 0 {
		return 0
	}
	v := t.table[t.pos]
	t.pos++
	if t.pos == len(t.table) {
		t.pos = 0
	}
	return v
}

// Len returns the table length.
func (t *TableSource) Len() int { return len(t.table) }

// CounterSource emits 1, 2, 3, ... wrapping modulo 4096. A host can check
// that the decoded stream is consecutive to find dropped samples.
type CounterSource struct {
	n uint16
}

func (c *CounterSource) Next() uint16 {
	c.n = (c.n + 1) & MaxSample
	return c.n
}
