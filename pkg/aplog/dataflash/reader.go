package dataflash

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/carbonix/aploghandler/pkg/io/ioutils"
	"github.com/carbonix/aploghandler/pkg/timeseries"
)

const (
	head1 = 0xA3
	head2 = 0x95
)

// gpsEpoch is the unix time of the GPS epoch (1980-01-06), and gpsLeap the
// current GPS-UTC leap second offset.
const (
	gpsEpoch = 315964800
	gpsLeap  = 18
)

// Stats counts decoder events over one pass of the log.
type Stats struct {
	Records         int64
	SkippedBytes    int64
	UnknownMessages int64
}

// Message is one decoded DataFlash record.
type Message struct {
	Fmt    *MessageFormat
	TimeMS int64
	Fields []timeseries.Field
}

func (m *Message) Name() string { return m.Fmt.Name }

func (m *Message) Float(col string) (float64, bool) {
	for _, f := range m.Fields {
		if f.Name == col {
			switch f.Value.Kind {
			case timeseries.KindFloat, timeseries.KindFloatBytes:
				return f.Value.Float, true
			}
			return 0, false
		}
	}
	return 0, false
}

func (m *Message) Str(col string) (string, bool) {
	for _, f := range m.Fields {
		if f.Name == col {
			if f.Value.Kind == timeseries.KindString {
				return f.Value.Str, true
			}
			return "", false
		}
	}
	return "", false
}

// Reader streams decoded messages out of an ArduPilot DataFlash (.bin) log.
// Formats are learned from FMT records as they appear; the wall-clock base is
// established from the first GPS record during Open and applied to every
// TimeUS on the rewound pass.
type Reader struct {
	path      string
	rc        io.ReadCloser
	br        *bufio.Reader
	formats   map[byte]*MessageFormat
	byName    map[string]*MessageFormat
	timebase  float64 // unix seconds at TimeUS==0
	haveClock bool
	lastTime  float64 // unix seconds of the last timestamped record
	stats     Stats
}

// Open opens a .bin (or .bin.gz) log, pre-scans it for the GPS clock base,
// and rewinds ready for iteration.
func Open(path string) (*Reader, error) {
	r := &Reader{
		path:    path,
		formats: map[byte]*MessageFormat{fmtMsgID: fmtFormat()},
		byName:  map[string]*MessageFormat{"FMT": fmtFormat()},
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	r.initClock()
	if err := r.Rewind(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) open() error {
	rc, err := ioutils.OpenMaybeCompressed(r.path)
	if err != nil {
		return fmt.Errorf("dataflash: open %s: %w", r.path, err)
	}
	r.rc = rc
	r.br = bufio.NewReaderSize(rc, 4096)
	return nil
}

// Rewind restarts iteration from the beginning of the log. Learned formats
// and the clock base survive; counters reset.
func (r *Reader) Rewind() error {
	if r.rc != nil {
		_ = r.rc.Close()
	}
	r.lastTime = 0
	r.stats = Stats{}
	return r.open()
}

func (r *Reader) Close() error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	return err
}

// Timebase returns the unix-seconds clock base derived from GPS time, and
// whether one was found.
func (r *Reader) Timebase() (float64, bool) { return r.timebase, r.haveClock }

func (r *Reader) Stats() Stats { return r.stats }

// Format returns the learned format for a message name, if any.
func (r *Reader) Format(name string) (*MessageFormat, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// initClock scans for the first GPS record carrying a GPS week, anchoring
// TimeUS to wall clock before the caller starts iterating.
func (r *Reader) initClock() {
	for !r.haveClock {
		if _, err := r.Next(); err != nil {
			return
		}
	}
}

// Next returns the next decodable message, resynchronizing past corrupt
// regions. io.EOF terminates iteration.
func (r *Reader) Next() (*Message, error) {
	for {
		hdr, err := r.br.Peek(3)
		if err != nil {
			return nil, eof(err)
		}
		if hdr[0] != head1 || hdr[1] != head2 {
			_, _ = r.br.Discard(1)
			r.stats.SkippedBytes++
			continue
		}
		f, ok := r.formats[hdr[2]]
		if !ok {
			// No FMT seen for this id: skip the header and rescan.
			_, _ = r.br.Discard(3)
			r.stats.UnknownMessages++
			continue
		}
		rec, err := r.br.Peek(f.Length)
		if err != nil {
			// Truncated trailing record.
			return nil, eof(err)
		}
		payload := make([]byte, f.Length-3)
		copy(payload, rec[3:])
		_, _ = r.br.Discard(f.Length)

		msg := &Message{Fmt: f, Fields: f.decodeFields(payload)}
		r.stamp(msg)
		r.stats.Records++

		switch f.Name {
		case "FMT":
			r.registerFormat(msg)
		case "FMTU":
			r.applyUnits(msg)
		}
		if !r.haveClock {
			r.tryClock(msg)
		}
		return msg, nil
	}
}

// stamp resolves the record timestamp: TimeUS (microseconds) preferred,
// TimeMS fallback, otherwise the previous record's time.
func (r *Reader) stamp(m *Message) {
	if us, ok := m.Float("TimeUS"); ok {
		r.lastTime = r.timebase + us/1e6
	} else if ms, ok := m.Float("TimeMS"); ok && m.Name() != "GPS" {
		r.lastTime = r.timebase + ms/1e3
	}
	m.TimeMS = int64(r.lastTime * 1000)
}

func (r *Reader) registerFormat(m *Message) {
	typ, ok := m.Float("Type")
	if !ok {
		return
	}
	length, _ := m.Float("Length")
	name, _ := m.Str("Name")
	format, _ := m.Str("Format")
	cols, _ := m.Str("Columns")
	if name == "" || format == "" {
		return
	}
	if _, exists := r.byName[name]; exists {
		return
	}
	sz, err := payloadSize(format)
	if err != nil {
		// A format we cannot size cannot be framed either; leave the id
		// unregistered so its records go down the unknown-msgid path.
		return
	}
	mf := &MessageFormat{
		Type:   byte(typ),
		Length: int(length),
		Name:   name,
		Format: format,
	}
	if cols != "" {
		mf.Columns = strings.Split(cols, ",")
	}
	if mf.Length < sz+3 {
		// A declared length shorter than the format cannot be framed; trust
		// the format.
		mf.Length = sz + 3
	}
	r.formats[mf.Type] = mf
	r.byName[name] = mf
}

// applyUnits attaches FMTU unit/multiplier strings to the referenced format
// and marks the instance column (unit '#').
func (r *Reader) applyUnits(m *Message) {
	typ, ok := m.Float("FmtType")
	if !ok {
		return
	}
	unitIDs, _ := m.Str("UnitIds")
	multIDs, _ := m.Str("MultIds")
	for _, f := range r.formats {
		if f.Type != byte(typ) {
			continue
		}
		f.Units = unitIDs
		f.Mults = multIDs
		for i, col := range f.Columns {
			if i < len(unitIDs) && unitIDs[i] == '#' && f.InstanceCol == "" {
				f.InstanceCol = col
			}
		}
		return
	}
}

// tryClock anchors the clock from the first GPS record with a valid week.
func (r *Reader) tryClock(m *Message) {
	if m.Name() != "GPS" && m.Name() != "GPS2" {
		return
	}
	week, ok := m.Float("GWk")
	if !ok {
		week, ok = m.Float("Week")
	}
	if !ok || week <= 0 {
		return
	}
	msec, ok := m.Float("GMS")
	if !ok {
		msec, ok = m.Float("TimeMS")
	}
	if !ok {
		return
	}
	gps := float64(gpsEpoch) + week*7*24*3600 + msec/1e3 - gpsLeap
	if us, ok := m.Float("TimeUS"); ok {
		r.timebase = gps - us/1e6
	} else if t, ok := m.Float("T"); ok {
		r.timebase = gps - t/1e3
	} else {
		r.timebase = gps
	}
	r.haveClock = true
}

func eof(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}
