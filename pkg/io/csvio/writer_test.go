package csvio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonix/aploghandler/pkg/timeseries"
)

func TestWriterHeaderFromFirstRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(&timeseries.Record{
		Type:        "ATT",
		TimestampMS: 1000,
		Line:        1,
		Instance:    0,
		Fields: []timeseries.Field{
			{Name: "Roll", Value: timeseries.Float(1.5)},
			{Name: "Pitch", Value: timeseries.Float(-2)},
		},
	}))
	require.NoError(t, w.Write(&timeseries.Record{
		Type:        "ATT",
		TimestampMS: 2000,
		Line:        2,
		Instance:    1,
		Fields: []timeseries.Field{
			{Name: "Roll", Value: timeseries.Float(0.25)},
		},
	}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Timestamp,LineNumber,Instance,Roll,Pitch", lines[0])
	assert.Equal(t, "1000,1,0,1.5,-2", lines[1])
	// Fields missing from later records stay empty.
	assert.Equal(t, "2000,2,1,0.25,", lines[2])
}

func TestWriterValueFormats(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(&timeseries.Record{
		Type: "MIX",
		Fields: []timeseries.Field{
			{Name: "S", Value: timeseries.String("hello")},
			{Name: "B", Value: timeseries.Bytes([]byte{1, 2, 3})},
			{Name: "FB", Value: timeseries.FloatBytes(7, []byte{7, 0})},
		},
	}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "0,0,0,hello,AQID,7", lines[1])
}
