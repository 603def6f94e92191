package mavlink

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v1Record(ts uint64, seq, sys, comp byte, def *MessageDef, payload []byte) []byte {
	rec := binary.BigEndian.AppendUint64(nil, ts)
	rec = append(rec, magicV1, byte(len(payload)), seq, sys, comp, byte(def.ID))
	rec = append(rec, payload...)
	crc := newCRC()
	crc.accumulateBytes(rec[9:])
	crc.accumulate(def.CRCExtra)
	return binary.LittleEndian.AppendUint16(rec, crc.sum())
}

// v2Record trims trailing zero payload bytes the way v2 senders do.
func v2Record(ts uint64, seq, sys, comp byte, def *MessageDef, payload []byte) []byte {
	for len(payload) > 1 && payload[len(payload)-1] == 0 {
		payload = payload[:len(payload)-1]
	}
	rec := binary.BigEndian.AppendUint64(nil, ts)
	rec = append(rec, magicV2, byte(len(payload)), 0, 0, seq, sys, comp,
		byte(def.ID), byte(def.ID>>8), byte(def.ID>>16))
	rec = append(rec, payload...)
	crc := newCRC()
	crc.accumulateBytes(rec[9:])
	crc.accumulate(def.CRCExtra)
	return binary.LittleEndian.AppendUint16(rec, crc.sum())
}

func paramValuePayload(value float32, count, index uint16, id string, ptype byte) []byte {
	p := binary.LittleEndian.AppendUint32(nil, math.Float32bits(value))
	p = binary.LittleEndian.AppendUint16(p, count)
	p = binary.LittleEndian.AppendUint16(p, index)
	idb := make([]byte, 16)
	copy(idb, id)
	p = append(p, idb...)
	return append(p, ptype)
}

func statusTextPayload(severity byte, text string) []byte {
	p := []byte{severity}
	tb := make([]byte, 50)
	copy(tb, text)
	return append(p, tb...)
}

func writeTlog(t *testing.T, chunks ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")
	require.NoError(t, os.WriteFile(path, bytes.Join(chunks, nil), 0o644))
	return path
}

func mustDef(t *testing.T, id uint32) *MessageDef {
	t.Helper()
	def, ok := Lookup(id)
	require.True(t, ok)
	return def
}

func TestReaderDecodesV1ParamValue(t *testing.T) {
	def := mustDef(t, 22)
	path := writeTlog(t,
		v1Record(1_700_000_000_000_000, 0, 1, 1, def,
			paramValuePayload(42, 900, 17, "STAT_BOOTCNT", 6)),
	)
	r, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "PARAM_VALUE", msg.Name())
	assert.Equal(t, byte(1), msg.SysID)
	assert.Equal(t, byte(1), msg.CompID)
	assert.Equal(t, uint64(1_700_000_000_000_000), msg.TimeUS)
	assert.InDelta(t, 1.7e9, msg.TimeSeconds(), 1e-3)

	id, ok := msg.Str("param_id")
	require.True(t, ok)
	assert.Equal(t, "STAT_BOOTCNT", id)
	v, ok := msg.Float("param_value")
	require.True(t, ok)
	assert.Equal(t, float64(42), v)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderZeroExtendsTruncatedV2(t *testing.T) {
	def := mustDef(t, 253)
	// "ok" then 48 zero chars: v2 trims the zeros off the wire.
	path := writeTlog(t,
		v2Record(100, 0, 1, 1, def, statusTextPayload(6, "ok")),
	)
	r, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "STATUSTEXT", msg.Name())
	text, ok := msg.Str("text")
	require.True(t, ok)
	assert.Equal(t, "ok", text)
	sev, ok := msg.Float("severity")
	require.True(t, ok)
	assert.Equal(t, float64(6), sev)
}

func TestReaderSkipsBadChecksum(t *testing.T) {
	def := mustDef(t, 2)
	bad := v1Record(50, 0, 1, 1, def, make([]byte, 12))
	stored := uint16(0)
	if binary.LittleEndian.Uint16(bad[len(bad)-2:]) == 0 {
		stored = 1
	}
	binary.LittleEndian.PutUint16(bad[len(bad)-2:], stored)

	good := binary.LittleEndian.AppendUint32(
		binary.LittleEndian.AppendUint64(nil, 1_700_000_005_000_000), 12345)
	path := writeTlog(t,
		bad,
		v1Record(60, 1, 1, 1, def, good),
	)
	r, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "SYSTEM_TIME", msg.Name())
	assert.Equal(t, uint64(60), msg.TimeUS)
	usec, ok := msg.Float("time_unix_usec")
	require.True(t, ok)
	assert.Equal(t, float64(1_700_000_005_000_000), usec)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, int64(1), r.Stats().BadChecksums)
	assert.Equal(t, int64(1), r.Stats().Records)
}

func TestReaderSkipsUnknownID(t *testing.T) {
	unknown := &MessageDef{ID: 111, Name: "X", CRCExtra: 7, Fields: []FieldDef{
		{Name: "a", Type: typeUint8},
	}}
	def := mustDef(t, 0)
	hb := []byte{0, 0, 0, 0, 2, 3, 81, 4, 3} // custom_mode, type, autopilot, base_mode, status, version
	path := writeTlog(t,
		v1Record(10, 0, 1, 1, unknown, []byte{9}),
		v1Record(20, 1, 1, 1, def, hb),
	)
	r, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "HEARTBEAT", msg.Name())
	mode, _ := msg.Float("custom_mode")
	assert.Equal(t, float64(0), mode)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, int64(1), r.Stats().UnknownMessages)
}

func TestReaderResyncsPastGarbage(t *testing.T) {
	def := mustDef(t, 2)
	payload := binary.LittleEndian.AppendUint32(
		binary.LittleEndian.AppendUint64(nil, 1), 2)
	path := writeTlog(t,
		[]byte{0x00, 0x01, 0x02},
		v1Record(5, 0, 1, 1, def, payload),
	)
	r, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "SYSTEM_TIME", msg.Name())
	assert.Equal(t, int64(3), r.Stats().SkippedBytes)
}

func TestDialectPayloadLengths(t *testing.T) {
	want := map[uint32]int{
		0:   9,  // HEARTBEAT
		2:   12, // SYSTEM_TIME
		22:  25, // PARAM_VALUE
		24:  30, // GPS_RAW_INT
		253: 51, // STATUSTEXT
	}
	for id, n := range want {
		def := mustDef(t, id)
		assert.Equal(t, n, def.payloadLen(), def.Name)
	}
}
