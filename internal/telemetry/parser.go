package telemetry

import "bytes"

// Parser reassembles packets from an arbitrarily chunked byte stream, such
// as serial reads or BLE notifications that may split or merge packets.
//
// Resync rules: a bad header drops one byte; a bad end marker drops the
// whole candidate and then skips forward to the next header pair.
type Parser struct {
	buf []byte

	// Dropped counts bytes discarded while resynchronising.
	Dropped int
}

// Write appends raw bytes to the parser buffer. It never fails.
func (p *Parser) Write(data []byte) (int, error) {
	p.buf = append(p.buf, data...)
	return len(data), nil
}

// Buffered returns the number of bytes waiting to be parsed.
func (p *Parser) Buffered() int { return len(p.buf) }

// Next extracts the next valid packet. ok is false once no complete packet
// remains in the buffer.
func (p *Parser) Next() (pkt Packet, ok bool) {
	for len(p.buf) >= PacketSize {
		if p.buf[0] != Header1 || p.buf[1] != Header2 {
			p.drop(1)
			continue
		}
		candidate := p.buf[:PacketSize]
		if candidate[endOffset] != EndMarker {
			p.drop(PacketSize)
			p.skipToHeader()
			continue
		}
		if err := pkt.UnmarshalBinary(candidate); err != nil {
			p.drop(1)
			continue
		}
		p.buf = p.buf[PacketSize:]
		return pkt, true
	}
	p.compact()
	return Packet{}, false
}

// Packets drains every complete packet currently buffered.
func (p *Parser) Packets() []Packet {
	var out []Packet
	for {
		pkt, ok := p.Next()
		if !ok {
			return out
		}
		out = append(out, pkt)
	}
}

func (p *Parser) drop(n int) {
	p.buf = p.buf[n:]
	p.Dropped += n
}

func (p *Parser) skipToHeader() {
	i := bytes.Index(p.buf, []byte{Header1, Header2})
	if i < 0 {
		// keep a trailing 0xAA, it may be the first half of the next header
		keep := 0
		if n := len(p.buf); n > 0 && p.buf[n-1] == Header1 {
			keep = 1
		}
		p.drop(len(p.buf) - keep)
		return
	}
	p.drop(i)
}

// compact moves the unparsed tail to the front so the backing array does
// not grow without bound on a long-lived stream.
func (p *Parser) compact() {
	if cap(p.buf) > 4*PacketSize && len(p.buf) < PacketSize {
		p.buf = append(make([]byte, 0, 2*PacketSize), p.buf...)
	}
}
