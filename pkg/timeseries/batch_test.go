package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchAppendSplitsByKind(t *testing.T) {
	b := NewBatch()
	b.Append(100, 1, Float(3.5))
	b.Append(200, 2, String("hello"))
	b.Append(300, 3, Bytes([]byte{1, 2, 3}))
	b.Append(400, 4, FloatBytes(9, []byte{9, 0}))
	b.Append(500, 5, Value{})

	assert.Equal(t, 5, b.Len())

	ts, ok := b.Timestamp.Get(0)
	assert.True(t, ok)
	assert.Equal(t, int64(100), ts)
	line, _ := b.LineNumber.Get(4)
	assert.Equal(t, int64(5), line)

	v, ok := b.Value.Get(0)
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)
	assert.True(t, b.StringValue.IsNull(0))
	assert.True(t, b.BinaryValue.IsNull(0))

	s, ok := b.StringValue.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "hello", s)
	assert.True(t, b.Value.IsNull(1))

	raw, ok := b.BinaryValue.Get(2)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	// Array fields land in both the numeric and binary columns.
	v, ok = b.Value.Get(3)
	assert.True(t, ok)
	assert.Equal(t, float64(9), v)
	raw, ok = b.BinaryValue.Get(3)
	assert.True(t, ok)
	assert.Equal(t, []byte{9, 0}, raw)

	// Invalid values become all-null rows.
	assert.True(t, b.Value.IsNull(4))
	assert.True(t, b.StringValue.IsNull(4))
	assert.True(t, b.BinaryValue.IsNull(4))
}

func TestBatchReset(t *testing.T) {
	b := NewBatch()
	for i := 0; i < 10; i++ {
		b.Append(int64(i), int64(i), Float(float64(i)))
	}
	assert.Equal(t, 10, b.Len())
	b.Reset()
	assert.Equal(t, 0, b.Len())
	b.Append(1, 1, Float(1))
	assert.Equal(t, 1, b.Len())
}

func TestRecordFieldLookup(t *testing.T) {
	rec := &Record{
		Type: "ATT",
		Fields: []Field{
			{Name: "Roll", Value: Float(1.5)},
			{Name: "Pitch", Value: Float(-0.5)},
		},
	}
	v, ok := rec.Field("Pitch")
	assert.True(t, ok)
	assert.Equal(t, -0.5, v.Float)
	_, ok = rec.Field("Yaw")
	assert.False(t, ok)
}
