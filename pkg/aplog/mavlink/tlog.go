package mavlink

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/carbonix/aploghandler/pkg/io/ioutils"
	"github.com/carbonix/aploghandler/pkg/timeseries"
)

const (
	magicV1 = 0xFE
	magicV2 = 0xFD
)

// Stats counts reader events over one pass of the log.
type Stats struct {
	Records         int64
	SkippedBytes    int64
	BadChecksums    int64
	UnknownMessages int64
}

// Message is one decoded MAVLink message together with its tlog capture
// timestamp (microseconds, unix).
type Message struct {
	Def    *MessageDef
	SysID  byte
	CompID byte
	TimeUS uint64
	Fields []timeseries.Field
}

func (m *Message) Name() string { return m.Def.Name }

// TimeSeconds is the capture timestamp in unix seconds.
func (m *Message) TimeSeconds() float64 { return float64(m.TimeUS) / 1e6 }

func (m *Message) Float(name string) (float64, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			switch f.Value.Kind {
			case timeseries.KindFloat, timeseries.KindFloatBytes:
				return f.Value.Float, true
			}
			return 0, false
		}
	}
	return 0, false
}

func (m *Message) Str(name string) (string, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			if f.Value.Kind == timeseries.KindString {
				return f.Value.Str, true
			}
			return "", false
		}
	}
	return "", false
}

// Reader streams decoded messages out of a .tlog telemetry log. Each record
// is an 8-byte big-endian microsecond timestamp followed by one MAVLink v1
// or v2 frame. Frames that fail the X25 checksum, and ids outside the
// dialect table, are skipped and counted.
type Reader struct {
	path  string
	rc    io.ReadCloser
	br    *bufio.Reader
	stats Stats
}

// Open opens a .tlog (or .tlog.gz) file for iteration.
func Open(path string) (*Reader, error) {
	r := &Reader{path: path}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) open() error {
	rc, err := ioutils.OpenMaybeCompressed(r.path)
	if err != nil {
		return fmt.Errorf("mavlink: open %s: %w", r.path, err)
	}
	r.rc = rc
	r.br = bufio.NewReaderSize(rc, 4096)
	return nil
}

// Rewind restarts iteration from the beginning of the log.
func (r *Reader) Rewind() error {
	if r.rc != nil {
		_ = r.rc.Close()
	}
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

func (r *Reader) Stats() Stats { return r.stats }

// Next returns the next decodable message. io.EOF terminates iteration.
func (r *Reader) Next() (*Message, error) {
	for {
		// Timestamp prefix, magic, length and (for v2) the incompat flags.
		win, err := r.br.Peek(11)
		if err != nil {
			return nil, eof(err)
		}
		magic := win[8]
		if magic != magicV1 && magic != magicV2 {
			_, _ = r.br.Discard(1)
			r.stats.SkippedBytes++
			continue
		}

		var (
			total    int // full record length including the timestamp prefix
			sysID    byte
			compID   byte
			msgID    uint32
			paystart int
			plen     int
			crcEnd   int // end of the checksummed region
		)
		if magic == magicV1 {
			plen = int(win[9])
			paystart = 14
			crcEnd = paystart + plen
			total = crcEnd + 2
		} else {
			plen = int(win[9])
			paystart = 18
			crcEnd = paystart + plen
			total = crcEnd + 2
			if win[10]&0x01 != 0 { // signed frame
				total += 13
			}
		}
		frame, err := r.br.Peek(total)
		if err != nil {
			return nil, eof(err)
		}
		if magic == magicV1 {
			sysID, compID = frame[11], frame[12]
			msgID = uint32(frame[13])
		} else {
			sysID, compID = frame[13], frame[14]
			msgID = uint32(frame[15]) | uint32(frame[16])<<8 | uint32(frame[17])<<16
		}

		def, ok := Lookup(msgID)
		if !ok {
			// Length is still trustworthy, so skip the whole frame.
			_, _ = r.br.Discard(total)
			r.stats.UnknownMessages++
			continue
		}

		crc := newCRC()
		crc.accumulateBytes(frame[9:crcEnd])
		crc.accumulate(def.CRCExtra)
		if crc.sum() != binary.LittleEndian.Uint16(frame[crcEnd:crcEnd+2]) {
			// The frame boundary may itself be wrong; shift one byte and
			// rescan.
			_, _ = r.br.Discard(1)
			r.stats.BadChecksums++
			continue
		}

		ts := binary.BigEndian.Uint64(frame[:8])
		payload := make([]byte, def.payloadLen())
		copy(payload, frame[paystart:crcEnd])
		_, _ = r.br.Discard(total)

		r.stats.Records++
		return &Message{
			Def:    def,
			SysID:  sysID,
			CompID: compID,
			TimeUS: ts,
			Fields: def.decode(payload),
		}, nil
	}
}

func eof(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}
