// Package telemetry implements the fixed-size binary packet that carries
// biosignal samples from the device to the host.
//
// Layout (28 bytes, little-endian multi-byte fields):
//
//	offset size field
//	0      1    header byte 1 = 0xAA
//	1      1    header byte 2 = 0x55
//	2      1    sequence id (1..255, wraps, skips 0)
//	3      4    timestamp ms (uint32)
//	7      20   10 x sample (uint16, low 12 bits significant)
//	27     1    end marker = 0xFF
package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	Header1   byte = 0xAA
	Header2   byte = 0x55
	EndMarker byte = 0xFF

	// SamplesPerPacket is the fixed number of samples carried by one packet.
	SamplesPerPacket = 10

	// SampleMask keeps the 12 significant bits of a sample.
	SampleMask uint16 = 0x0FFF

	headerSize    = 2
	seqOffset     = 2
	tsOffset      = 3
	samplesOffset = 7
	endOffset     = samplesOffset + SamplesPerPacket*2

	// PacketSize is the encoded length of every packet.
	PacketSize = endOffset + 1
)

var (
	ErrShortPacket  = errors.New("packet too short")
	ErrBadHeader    = errors.New("bad packet header")
	ErrBadEndMarker = errors.New("bad packet end marker")
)

// Packet is one framed group of samples. Samples are stored already masked
// to 12 bits.
type Packet struct {
	Seq         uint8
	TimestampMs uint32
	Samples     [SamplesPerPacket]uint16
}

// AppendBinary appends the wire encoding of p to b.
func (p Packet) AppendBinary(b []byte) ([]byte, error) {
	var buf [PacketSize]byte
	p.put(buf[:])
	return append(b, buf[:]...), nil
}

// MarshalBinary returns the 28-byte wire encoding of p.
func (p Packet) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PacketSize)
	p.put(buf)
	return buf, nil
}

// Bytes is MarshalBinary without the error.
func (p Packet) Bytes() []byte {
	buf := make([]byte, PacketSize)
	p.put(buf)
	return buf
}

func (p Packet) put(buf []byte) {
	buf[0] = Header1
	buf[1] = Header2
	buf[seqOffset] = p.Seq
	binary.LittleEndian.PutUint32(buf[tsOffset:samplesOffset], p.TimestampMs)
	for i, s := range p.Samples {
		off := samplesOffset + i*2
		binary.LittleEndian.PutUint16(buf[off:off+2], s&SampleMask)
	}
	buf[endOffset] = EndMarker
}

// UnmarshalBinary decodes a packet from exactly the first PacketSize bytes
// of data.
func (p *Packet) UnmarshalBinary(data []byte) error {
	if len(data) < PacketSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrShortPacket, len(data), PacketSize)
	}
	if data[0] != Header1 || data[1] != Header2 {
		return fmt.Errorf("%w: % x", ErrBadHeader, data[:headerSize])
	}
	if data[endOffset] != EndMarker {
		return fmt.Errorf("%w: 0x%02x", ErrBadEndMarker, data[endOffset])
	}
	p.Seq = data[seqOffset]
	p.TimestampMs = binary.LittleEndian.Uint32(data[tsOffset:samplesOffset])
	for i := range p.Samples {
		off := samplesOffset + i*2
		p.Samples[i] = binary.LittleEndian.Uint16(data[off:off+2]) & SampleMask
	}
	return nil
}

// Decode parses one packet from data.
func Decode(data []byte) (Packet, error) {
	var p Packet
	err := p.UnmarshalBinary(data)
	return p, err
}

// SampleTimes reconstructs the capture time of each sample assuming they
// were taken interval apart, the first at the packet timestamp.
func (p Packet) SampleTimes(interval time.Duration) [SamplesPerPacket]time.Duration {
	var out [SamplesPerPacket]time.Duration
	base := time.Duration(p.TimestampMs) * time.Millisecond
	for i := range out {
		out[i] = base + time.Duration(i)*interval
	}
	return out
}

func (p Packet) String() string {
	return fmt.Sprintf("Packet(ID=%d, timestamp=%d, samples=%d)", p.Seq, p.TimestampMs, len(p.Samples))
}
