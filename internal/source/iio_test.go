package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heartstream/internal/monitoring"
)

func writeChannel(t *testing.T, path, value string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(value), 0o644))
}

func TestIIOReader(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	path := filepath.Join(t.TempDir(), "in_voltage0_raw")
	writeChannel(t, path, "2048\n")

	r, err := OpenIIO(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint16(2048), r.ReadRaw())

	writeChannel(t, path, "5000\n")
	assert.Equal(t, uint16(5000&MaxSample), r.ReadRaw(), "values are masked to 12 bits")

	writeChannel(t, path, "garbage")
	assert.Equal(t, uint16(5000&MaxSample), r.ReadRaw(), "failed read repeats last value")
	assert.Equal(t, uint64(1), r.Errors())

	src := NewADCSource(r)
	require.NoError(t, src.Init())
	writeChannel(t, path, "17\n")
	assert.Equal(t, uint16(17), src.Next())
}

func TestOpenIIOErrors(t *testing.T) {
	_, err := OpenIIO(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "in_voltage0_raw")
	writeChannel(t, path, "not a number")
	_, err = OpenIIO(path)
	assert.Error(t, err)
}
