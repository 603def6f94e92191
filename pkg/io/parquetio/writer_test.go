package parquetio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonix/aploghandler/pkg/timeseries"
)

func TestWriterPartitionLayout(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, "abc123", 10)
	assert.Equal(t, filepath.Join(out, "LogUID=abc123"), w.Root())

	for i := 0; i < 5; i++ {
		require.NoError(t, w.WriteSample("ATT", 0, "Roll", int64(i*100), int64(i+1), timeseries.Float(float64(i))))
		require.NoError(t, w.WriteSample("ATT", 0, "Pitch", int64(i*100), int64(i+1), timeseries.Float(float64(-i))))
	}
	require.NoError(t, w.WriteSample("MSG", 1, "Message", 0, 11, timeseries.String("boot")))

	assert.Equal(t, 3, w.Partitions())
	assert.Equal(t, int64(11), w.RowsWritten())
	require.NoError(t, w.Close())

	for _, rel := range []string{
		"MessageType=ATT/Instance=0/KeyName=Roll/file.parquet",
		"MessageType=ATT/Instance=0/KeyName=Pitch/file.parquet",
		"MessageType=MSG/Instance=1/KeyName=Message/file.parquet",
	} {
		path := filepath.Join(w.Root(), filepath.FromSlash(rel))
		data, err := os.ReadFile(path)
		require.NoError(t, err, rel)
		require.Greater(t, len(data), 8, rel)
		assert.Equal(t, "PAR1", string(data[:4]), rel)
		assert.Equal(t, "PAR1", string(data[len(data)-4:]), rel)
	}
}

func TestWriterFlushesAtBufferSize(t *testing.T) {
	w := NewWriter(t.TempDir(), "uid", 3)
	for i := 0; i < 7; i++ {
		require.NoError(t, w.WriteSample("GPS", 0, "Lat", int64(i), int64(i+1), timeseries.Float(1.0)))
	}
	// Two full buffers drained, one sample still pending.
	assert.Equal(t, int64(7), w.RowsWritten())
	require.NoError(t, w.Close())
}

func TestWriterBinaryValues(t *testing.T) {
	w := NewWriter(t.TempDir(), "uid", 0)
	raw := []byte{0xFF, 0x00, 0xA3, 0x95}
	require.NoError(t, w.WriteSample("ESC", 2, "RPM", 1, 1, timeseries.FloatBytes(1200, raw)))
	require.NoError(t, w.Close())

	path := filepath.Join(w.Root(), "MessageType=ESC", "Instance=2", "KeyName=RPM", "file.parquet")
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, fi.Size(), int64(8))
}

func TestWriterCloseWithoutSamples(t *testing.T) {
	w := NewWriter(t.TempDir(), "uid", 0)
	assert.Equal(t, 0, w.Partitions())
	assert.Equal(t, int64(0), w.RowsWritten())
	assert.NoError(t, w.Close())
}
