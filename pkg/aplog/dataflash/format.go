package dataflash

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/carbonix/aploghandler/pkg/timeseries"
)

// MessageFormat describes one DataFlash message layout, as declared by a FMT
// record (and refined by FMTU for units and the instance column).
type MessageFormat struct {
	Type        byte
	Length      int // full record length including the 3 header bytes
	Name        string
	Format      string
	Columns     []string
	Units       string
	Mults       string
	InstanceCol string
}

// fieldSizes maps DataFlash format characters to their encoded size in bytes.
var fieldSizes = map[byte]int{
	'b': 1, 'B': 1, 'h': 2, 'H': 2, 'i': 4, 'I': 4,
	'f': 4, 'd': 8, 'n': 4, 'N': 16, 'Z': 64,
	'c': 2, 'C': 2, 'e': 4, 'E': 4, 'L': 4, 'M': 1,
	'q': 8, 'Q': 8, 'a': 64,
}

// payloadSize returns the decoded payload size for a format string.
func payloadSize(format string) (int, error) {
	n := 0
	for i := 0; i < len(format); i++ {
		sz, ok := fieldSizes[format[i]]
		if !ok {
			return 0, fmt.Errorf("dataflash: unknown format char %q", format[i])
		}
		n += sz
	}
	return n, nil
}

// decodeValue decodes a single field according to its format char. The
// returned width is the number of payload bytes consumed.
func decodeValue(c byte, data []byte) (timeseries.Value, int) {
	switch c {
	case 'b':
		return timeseries.Float(float64(int8(data[0]))), 1
	case 'B', 'M':
		return timeseries.Float(float64(data[0])), 1
	case 'h':
		return timeseries.Float(float64(int16(binary.LittleEndian.Uint16(data)))), 2
	case 'H':
		return timeseries.Float(float64(binary.LittleEndian.Uint16(data))), 2
	case 'i':
		return timeseries.Float(float64(int32(binary.LittleEndian.Uint32(data)))), 4
	case 'I':
		return timeseries.Float(float64(binary.LittleEndian.Uint32(data))), 4
	case 'f':
		return timeseries.Float(float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))), 4
	case 'd':
		return timeseries.Float(math.Float64frombits(binary.LittleEndian.Uint64(data))), 8
	case 'n':
		return timeseries.String(cstring(data[:4])), 4
	case 'N':
		return timeseries.String(cstring(data[:16])), 16
	case 'Z':
		return timeseries.String(cstring(data[:64])), 64
	case 'c':
		return timeseries.Float(float64(int16(binary.LittleEndian.Uint16(data))) * 0.01), 2
	case 'C':
		return timeseries.Float(float64(binary.LittleEndian.Uint16(data)) * 0.01), 2
	case 'e':
		return timeseries.Float(float64(int32(binary.LittleEndian.Uint32(data))) * 0.01), 4
	case 'E':
		return timeseries.Float(float64(binary.LittleEndian.Uint32(data)) * 0.01), 4
	case 'L':
		return timeseries.Float(float64(int32(binary.LittleEndian.Uint32(data))) * 1e-7), 4
	case 'q':
		return timeseries.Float(float64(int64(binary.LittleEndian.Uint64(data)))), 8
	case 'Q':
		return timeseries.Float(float64(binary.LittleEndian.Uint64(data))), 8
	case 'a':
		// int16[32]: numeric view is the first element, raw bytes keep the
		// full array.
		first := float64(int16(binary.LittleEndian.Uint16(data)))
		raw := make([]byte, 64)
		copy(raw, data[:64])
		return timeseries.FloatBytes(first, raw), 64
	default:
		return timeseries.Value{}, 1
	}
}

// decodeFields decodes a full payload into named fields in column order.
func (f *MessageFormat) decodeFields(payload []byte) []timeseries.Field {
	fields := make([]timeseries.Field, 0, len(f.Columns))
	off := 0
	for i := 0; i < len(f.Format) && i < len(f.Columns); i++ {
		sz := fieldSizes[f.Format[i]]
		if off+sz > len(payload) {
			break
		}
		v, w := decodeValue(f.Format[i], payload[off:])
		fields = append(fields, timeseries.Field{Name: f.Columns[i], Value: v})
		off += w
	}
	return fields
}

func cstring(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// fmtMsgID is the reserved message id of the FMT record itself.
const fmtMsgID = 0x80

// fmtFormat is the self-describing layout of FMT records, seeded before any
// log bytes are read.
func fmtFormat() *MessageFormat {
	return &MessageFormat{
		Type:    fmtMsgID,
		Length:  89,
		Name:    "FMT",
		Format:  "BBnNZ",
		Columns: []string{"Type", "Length", "Name", "Format", "Columns"},
	}
}
