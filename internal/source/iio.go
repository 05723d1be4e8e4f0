package source

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/banshee-data/heartstream/internal/monitoring"
)

// DefaultIIOPath is the raw channel of the first Linux industrial I/O ADC.
const DefaultIIOPath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"

// IIOReader reads one conversion per call from a Linux IIO sysfs channel,
// keeping the file open and re-reading from offset 0.
type IIOReader struct {
	path string

	mu   sync.Mutex
	f    *os.File
	buf  [16]byte
	last uint16
	errs uint64
}

// OpenIIO opens the channel at path and checks it yields a number.
func OpenIIO(path string) (*IIOReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open adc channel: %w", err)
	}
	r := &IIOReader{path: path, f: f}
	if _, err := r.read(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// ReadRaw returns the current conversion masked to 12 bits. A failed read
// repeats the previous value so the stream keeps its cadence.
func (r *IIOReader) ReadRaw() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.read()
	if err != nil {
		r.errs++
		if r.errs == 1 {
			monitoring.Logf("adc: %v, repeating last sample", err)
		}
		return r.last
	}
	r.last = v
	return v
}

// Errors returns the number of failed reads.
func (r *IIOReader) Errors() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}

func (r *IIOReader) Close() error {
	return r.f.Close()
}

func (r *IIOReader) read() (uint16, error) {
	n, err := r.f.ReadAt(r.buf[:], 0)
	if n == 0 && err != nil {
		return 0, fmt.Errorf("read %s: %w", r.path, err)
	}
	text := bytes.TrimSpace(r.buf[:n])
	v, err := strconv.ParseUint(string(text), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return uint16(v) & MaxSample, nil
}
