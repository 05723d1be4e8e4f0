package telemetry

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketSize(t *testing.T) {
	assert.Equal(t, 28, PacketSize)

	for _, samples := range [][SamplesPerPacket]uint16{
		{},
		{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 4095},
	} {
		p := Packet{Seq: 200, TimestampMs: 0xFFFFFFFF, Samples: samples}
		b, err := p.MarshalBinary()
		require.NoError(t, err)
		assert.Len(t, b, PacketSize)
	}
}

// TestEncodeKnownVector checks the byte layout for samples 10..100 with
// sequence id 1.
func TestEncodeKnownVector(t *testing.T) {
	enc := NewEncoder()
	const ts uint32 = 0x04030201

	var (
		pkt Packet
		ok  bool
	)
	for i := 1; i <= SamplesPerPacket; i++ {
		pkt, ok = enc.Accumulate(uint16(i*10), ts)
		if i < SamplesPerPacket {
			require.False(t, ok, "packet completed early at sample %d", i)
		}
	}
	require.True(t, ok)

	want := "aa55" + "01" + "01020304" +
		"0a00" + "1400" + "1e00" + "2800" + "3200" + "3c00" + "4600" + "5000" + "5a00" + "6400" +
		"ff"
	assert.Equal(t, want, hex.EncodeToString(pkt.Bytes()))
}

func TestSamplesAreMasked(t *testing.T) {
	enc := NewEncoder()
	in := []uint16{0x1000, 0x1FFF, 0xF00A, 4095, 4096, 0, 65535, 12345, 0x0ABC, 0x8001}

	var pkt Packet
	for _, s := range in {
		pkt, _ = enc.Accumulate(s, 0)
	}

	decoded, err := Decode(pkt.Bytes())
	require.NoError(t, err)
	for i, s := range in {
		assert.Equal(t, s&0x0FFF, decoded.Samples[i], "sample %d", i)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	want := Packet{Seq: 42, TimestampMs: 123456, Samples: [SamplesPerPacket]uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	b, err := want.AppendBinary([]byte{0x01})
	require.NoError(t, err)

	got, err := Decode(b[1:])
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("packet mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	good := Packet{Seq: 1}.Bytes()

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{"short", func(b []byte) []byte { return b[:PacketSize-1] }, ErrShortPacket},
		{"bad first header byte", func(b []byte) []byte { b[0] = 0x00; return b }, ErrBadHeader},
		{"bad second header byte", func(b []byte) []byte { b[1] = 0xAA; return b }, ErrBadHeader},
		{"bad end marker", func(b []byte) []byte { b[PacketSize-1] = 0xFE; return b }, ErrBadEndMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), good...)
			_, err := Decode(tt.mutate(b))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestSampleTimes(t *testing.T) {
	p := Packet{TimestampMs: 1000}
	times := p.SampleTimes(4 * time.Millisecond)
	assert.Equal(t, time.Second, times[0])
	assert.Equal(t, time.Second+36*time.Millisecond, times[9])
}
