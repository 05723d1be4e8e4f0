package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heartstream/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"adc", "synthetic", "counter"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), k)
	}

	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindSynthetic, k)

	_, err = ParseKind("ADC")
	assert.Error(t, err)
}

func TestTableSourceWraps(t *testing.T) {
	src := NewTableSource([]uint16{5, 6, 7})
	var got []uint16
	for i := 0; i < 7; i++ {
		got = append(got, src.Next())
	}
	assert.Equal(t, []uint16{5, 6, 7, 5, 6, 7, 5}, got)
	assert.Equal(t, 3, src.Len())
}

func TestTableSourceEmpty(t *testing.T) {
	src := NewTableSource(nil)
	assert.Zero(t, src.Next())
	assert.Zero(t, src.Next())
}

func TestCounterSourceWrapsAt4096(t *testing.T) {
	var c CounterSource
	assert.Equal(t, uint16(1), c.Next())
	for i := 2; i < 4095; i++ {
		c.Next()
	}
	assert.Equal(t, uint16(4095), c.Next())
	assert.Equal(t, uint16(0), c.Next())
	assert.Equal(t, uint16(1), c.Next())
}

func TestADCSourceRequiresInit(t *testing.T) {
	calls := 0
	src := NewADCSource(RawReaderFunc(func() uint16 {
		calls++
		return 2048
	}))

	assert.Zero(t, src.Next())
	assert.Zero(t, calls)

	require.NoError(t, src.Init())
	assert.Equal(t, uint16(2048), src.Next())
	assert.Equal(t, 1, calls)

	assert.Error(t, NewADCSource(nil).Init())
}

func TestToADC(t *testing.T) {
	m := DefaultADCModel()
	assert.Equal(t, uint16(1861), m.ToADC(0)) // 1.5/3.3*4095
	assert.Equal(t, uint16(0), m.ToADC(-100))
	assert.Equal(t, uint16(MaxSample), m.ToADC(100))
}

func TestGenerateHeartbeat(t *testing.T) {
	const fs = 250
	table, err := GenerateHeartbeat(DefaultShape(), DefaultADCModel(), 60, fs, 3)
	require.NoError(t, err)
	require.Len(t, table, 3*fs)

	// every beat is identical
	assert.Equal(t, table[:fs], table[fs:2*fs])

	baseline := DefaultADCModel().ToADC(0)
	var peak uint16
	peakAt := 0
	for i, v := range table[:fs] {
		assert.LessOrEqual(t, v, uint16(MaxSample))
		if v > peak {
			peak, peakAt = v, i
		}
	}
	assert.Greater(t, peak, baseline)

	// R peak falls inside the QRS window
	shape := DefaultShape()
	qrsStart := int((shape.P + shape.PR).Seconds() * fs)
	qrsEnd := qrsStart + int(shape.QRS.Seconds()*fs)
	assert.GreaterOrEqual(t, peakAt, qrsStart)
	assert.Less(t, peakAt, qrsEnd)

	// TP segment is flat at the baseline
	assert.Equal(t, baseline, table[fs-1])
}

func TestGenerateHeartbeatRejectsBadParameters(t *testing.T) {
	_, err := GenerateHeartbeat(DefaultShape(), DefaultADCModel(), 0, 250, 1)
	assert.Error(t, err)

	// 300 bpm leaves 200ms per beat, shorter than the active segments
	_, err = GenerateHeartbeat(DefaultShape(), DefaultADCModel(), 300, 250, 1)
	assert.Error(t, err)

	shape := DefaultShape()
	shape.QRS = 2 * time.Second
	_, err = GenerateHeartbeat(shape, DefaultADCModel(), 60, 250, 1)
	assert.Error(t, err)
}

func TestShapeMaxBPM(t *testing.T) {
	shape := DefaultShape()
	assert.Equal(t, 540*time.Millisecond, shape.Active())
	assert.InDelta(t, 111.1, shape.MaxBPM(), 0.1)

	_, err := GenerateHeartbeat(shape, DefaultADCModel(), 111, 250, 2)
	require.NoError(t, err)
	_, err = GenerateHeartbeat(shape, DefaultADCModel(), 112, 250, 2)
	assert.Error(t, err)
}
