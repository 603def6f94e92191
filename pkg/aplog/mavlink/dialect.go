package mavlink

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/carbonix/aploghandler/pkg/timeseries"
)

type fieldType int

const (
	typeUint8 fieldType = iota
	typeInt8
	typeUint16
	typeInt16
	typeUint32
	typeInt32
	typeUint64
	typeInt64
	typeFloat
	typeDouble
	typeChar
)

var typeSizes = [...]int{
	typeUint8: 1, typeInt8: 1,
	typeUint16: 2, typeInt16: 2,
	typeUint32: 4, typeInt32: 4,
	typeUint64: 8, typeInt64: 8,
	typeFloat: 4, typeDouble: 8,
	typeChar: 1,
}

// FieldDef is one message field in wire order (MAVLink sorts fields by type
// size, descending, before serialization). Len > 1 marks an array.
type FieldDef struct {
	Name string
	Type fieldType
	Len  int
}

func (f FieldDef) size() int {
	n := f.Len
	if n == 0 {
		n = 1
	}
	return typeSizes[f.Type] * n
}

// MessageDef is a static dialect entry: id, name, the CRC_EXTRA byte the
// dialect generator derives from the message definition, and the wire-ordered
// fields.
type MessageDef struct {
	ID       uint32
	Name     string
	CRCExtra byte
	Fields   []FieldDef
}

func (d *MessageDef) payloadLen() int {
	n := 0
	for _, f := range d.Fields {
		n += f.size()
	}
	return n
}

// decode expands a (zero-extended) payload into named fields. Char arrays
// become strings, numeric scalars floats, numeric arrays keep their raw bytes
// alongside the first element.
func (d *MessageDef) decode(payload []byte) []timeseries.Field {
	fields := make([]timeseries.Field, 0, len(d.Fields))
	off := 0
	for _, f := range d.Fields {
		sz := f.size()
		if off+sz > len(payload) {
			break
		}
		data := payload[off : off+sz]
		off += sz
		if f.Type == typeChar {
			fields = append(fields, timeseries.Field{Name: f.Name, Value: timeseries.String(cstring(data))})
			continue
		}
		if f.Len > 1 {
			raw := make([]byte, len(data))
			copy(raw, data)
			fields = append(fields, timeseries.Field{Name: f.Name, Value: timeseries.FloatBytes(scalar(f.Type, data), raw)})
			continue
		}
		fields = append(fields, timeseries.Field{Name: f.Name, Value: timeseries.Float(scalar(f.Type, data))})
	}
	return fields
}

func scalar(t fieldType, data []byte) float64 {
	switch t {
	case typeUint8:
		return float64(data[0])
	case typeInt8:
		return float64(int8(data[0]))
	case typeUint16:
		return float64(binary.LittleEndian.Uint16(data))
	case typeInt16:
		return float64(int16(binary.LittleEndian.Uint16(data)))
	case typeUint32:
		return float64(binary.LittleEndian.Uint32(data))
	case typeInt32:
		return float64(int32(binary.LittleEndian.Uint32(data)))
	case typeUint64:
		return float64(binary.LittleEndian.Uint64(data))
	case typeInt64:
		return float64(int64(binary.LittleEndian.Uint64(data)))
	case typeFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	case typeDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(data))
	}
	return 0
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// dialect covers the common-dialect messages the converter consumes: the
// metadata sources (SYSTEM_TIME, PARAM_VALUE, GPS_RAW_INT, STATUSTEXT) plus
// the high-rate telemetry streams worth exporting. Unknown ids are skipped
// by the reader.
var dialect = buildDialect(
	&MessageDef{ID: 0, Name: "HEARTBEAT", CRCExtra: 50, Fields: []FieldDef{
		{Name: "custom_mode", Type: typeUint32},
		{Name: "type", Type: typeUint8},
		{Name: "autopilot", Type: typeUint8},
		{Name: "base_mode", Type: typeUint8},
		{Name: "system_status", Type: typeUint8},
		{Name: "mavlink_version", Type: typeUint8},
	}},
	&MessageDef{ID: 1, Name: "SYS_STATUS", CRCExtra: 124, Fields: []FieldDef{
		{Name: "onboard_control_sensors_present", Type: typeUint32},
		{Name: "onboard_control_sensors_enabled", Type: typeUint32},
		{Name: "onboard_control_sensors_health", Type: typeUint32},
		{Name: "load", Type: typeUint16},
		{Name: "voltage_battery", Type: typeUint16},
		{Name: "current_battery", Type: typeInt16},
		{Name: "drop_rate_comm", Type: typeUint16},
		{Name: "errors_comm", Type: typeUint16},
		{Name: "errors_count1", Type: typeUint16},
		{Name: "errors_count2", Type: typeUint16},
		{Name: "errors_count3", Type: typeUint16},
		{Name: "errors_count4", Type: typeUint16},
		{Name: "battery_remaining", Type: typeInt8},
	}},
	&MessageDef{ID: 2, Name: "SYSTEM_TIME", CRCExtra: 137, Fields: []FieldDef{
		{Name: "time_unix_usec", Type: typeUint64},
		{Name: "time_boot_ms", Type: typeUint32},
	}},
	&MessageDef{ID: 22, Name: "PARAM_VALUE", CRCExtra: 220, Fields: []FieldDef{
		{Name: "param_value", Type: typeFloat},
		{Name: "param_count", Type: typeUint16},
		{Name: "param_index", Type: typeUint16},
		{Name: "param_id", Type: typeChar, Len: 16},
		{Name: "param_type", Type: typeUint8},
	}},
	&MessageDef{ID: 24, Name: "GPS_RAW_INT", CRCExtra: 24, Fields: []FieldDef{
		{Name: "time_usec", Type: typeUint64},
		{Name: "lat", Type: typeInt32},
		{Name: "lon", Type: typeInt32},
		{Name: "alt", Type: typeInt32},
		{Name: "eph", Type: typeUint16},
		{Name: "epv", Type: typeUint16},
		{Name: "vel", Type: typeUint16},
		{Name: "cog", Type: typeUint16},
		{Name: "fix_type", Type: typeUint8},
		{Name: "satellites_visible", Type: typeUint8},
	}},
	&MessageDef{ID: 27, Name: "RAW_IMU", CRCExtra: 144, Fields: []FieldDef{
		{Name: "time_usec", Type: typeUint64},
		{Name: "xacc", Type: typeInt16},
		{Name: "yacc", Type: typeInt16},
		{Name: "zacc", Type: typeInt16},
		{Name: "xgyro", Type: typeInt16},
		{Name: "ygyro", Type: typeInt16},
		{Name: "zgyro", Type: typeInt16},
		{Name: "xmag", Type: typeInt16},
		{Name: "ymag", Type: typeInt16},
		{Name: "zmag", Type: typeInt16},
	}},
	&MessageDef{ID: 30, Name: "ATTITUDE", CRCExtra: 39, Fields: []FieldDef{
		{Name: "time_boot_ms", Type: typeUint32},
		{Name: "roll", Type: typeFloat},
		{Name: "pitch", Type: typeFloat},
		{Name: "yaw", Type: typeFloat},
		{Name: "rollspeed", Type: typeFloat},
		{Name: "pitchspeed", Type: typeFloat},
		{Name: "yawspeed", Type: typeFloat},
	}},
	&MessageDef{ID: 33, Name: "GLOBAL_POSITION_INT", CRCExtra: 104, Fields: []FieldDef{
		{Name: "time_boot_ms", Type: typeUint32},
		{Name: "lat", Type: typeInt32},
		{Name: "lon", Type: typeInt32},
		{Name: "alt", Type: typeInt32},
		{Name: "relative_alt", Type: typeInt32},
		{Name: "vx", Type: typeInt16},
		{Name: "vy", Type: typeInt16},
		{Name: "vz", Type: typeInt16},
		{Name: "hdg", Type: typeUint16},
	}},
	&MessageDef{ID: 35, Name: "RC_CHANNELS_RAW", CRCExtra: 244, Fields: []FieldDef{
		{Name: "time_boot_ms", Type: typeUint32},
		{Name: "chan1_raw", Type: typeUint16},
		{Name: "chan2_raw", Type: typeUint16},
		{Name: "chan3_raw", Type: typeUint16},
		{Name: "chan4_raw", Type: typeUint16},
		{Name: "chan5_raw", Type: typeUint16},
		{Name: "chan6_raw", Type: typeUint16},
		{Name: "chan7_raw", Type: typeUint16},
		{Name: "chan8_raw", Type: typeUint16},
		{Name: "port", Type: typeUint8},
		{Name: "rssi", Type: typeUint8},
	}},
	&MessageDef{ID: 74, Name: "VFR_HUD", CRCExtra: 20, Fields: []FieldDef{
		{Name: "airspeed", Type: typeFloat},
		{Name: "groundspeed", Type: typeFloat},
		{Name: "alt", Type: typeFloat},
		{Name: "climb", Type: typeFloat},
		{Name: "heading", Type: typeInt16},
		{Name: "throttle", Type: typeUint16},
	}},
	&MessageDef{ID: 147, Name: "BATTERY_STATUS", CRCExtra: 154, Fields: []FieldDef{
		{Name: "current_consumed", Type: typeInt32},
		{Name: "energy_consumed", Type: typeInt32},
		{Name: "temperature", Type: typeInt16},
		{Name: "voltages", Type: typeUint16, Len: 10},
		{Name: "current_battery", Type: typeInt16},
		{Name: "id", Type: typeUint8},
		{Name: "battery_function", Type: typeUint8},
		{Name: "type", Type: typeUint8},
		{Name: "battery_remaining", Type: typeInt8},
	}},
	&MessageDef{ID: 253, Name: "STATUSTEXT", CRCExtra: 83, Fields: []FieldDef{
		{Name: "severity", Type: typeUint8},
		{Name: "text", Type: typeChar, Len: 50},
	}},
)

func buildDialect(defs ...*MessageDef) map[uint32]*MessageDef {
	m := make(map[uint32]*MessageDef, len(defs))
	for _, d := range defs {
		m[d.ID] = d
	}
	return m
}

// Lookup returns the dialect entry for a message id.
func Lookup(id uint32) (*MessageDef, bool) {
	d, ok := dialect[id]
	return d, ok
}
