package aplog

import (
	"context"
	"io"

	"github.com/carbonix/aploghandler/pkg/aplog/dataflash"
	"github.com/carbonix/aploghandler/pkg/aplog/mavlink"
	"github.com/carbonix/aploghandler/pkg/io/csvio"
	"github.com/carbonix/aploghandler/pkg/io/parquetio"
	"github.com/carbonix/aploghandler/pkg/timeseries"
)

// RecordSource yields normalized records until io.EOF.
type RecordSource interface {
	Next() (*timeseries.Record, error)
	Close() error
}

// binSource adapts the DataFlash decoder: UNIT records are dropped, the
// TimeUS column and the instance column are lifted out of the exported
// fields.
type binSource struct {
	r    *dataflash.Reader
	line int64
}

func (s *binSource) Next() (*timeseries.Record, error) {
	for {
		msg, err := s.r.Next()
		if err != nil {
			return nil, err
		}
		if msg.Name() == "UNIT" {
			continue
		}
		s.line++
		rec := &timeseries.Record{
			Type:        msg.Name(),
			TimestampMS: msg.TimeMS,
			Line:        s.line,
			Fields:      make([]timeseries.Field, 0, len(msg.Fields)),
		}
		for _, f := range msg.Fields {
			if f.Name == "TimeUS" {
				continue
			}
			if msg.Fmt.InstanceCol != "" && f.Name == msg.Fmt.InstanceCol {
				rec.Instance = int(f.Value.Float)
				continue
			}
			rec.Fields = append(rec.Fields, f)
		}
		return rec, nil
	}
}

func (s *binSource) Close() error { return s.r.Close() }

// tlogSource adapts the MAVLink decoder. Timestamps are the capture time
// corrected by the estimated clock offset; the instance axis is the source
// component id.
type tlogSource struct {
	r        *mavlink.Reader
	offsetMS float64
	line     int64
}

func (s *tlogSource) Next() (*timeseries.Record, error) {
	msg, err := s.r.Next()
	if err != nil {
		return nil, err
	}
	s.line++
	rec := &timeseries.Record{
		Type:        msg.Name(),
		TimestampMS: int64(msg.TimeSeconds()*1000 - s.offsetMS),
		Line:        s.line,
		Instance:    int(msg.CompID),
		Fields:      msg.Fields,
	}
	return rec, nil
}

func (s *tlogSource) Close() error { return s.r.Close() }

// pump drains src into the partitioned writer, one sample per field.
func pump(ctx context.Context, src RecordSource, w *parquetio.Writer, stats *ExtractStats) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		stats.count(rec.Type)
		for _, f := range rec.Fields {
			if err := w.WriteSample(rec.Type, rec.Instance, f.Name, rec.TimestampMS, rec.Line, f.Value); err != nil {
				return err
			}
		}
	}
}

// dumpCSV writes records of one message type as CSV, for inspection.
func dumpCSV(ctx context.Context, src RecordSource, msgType string, out io.Writer) error {
	w := csvio.NewWriter(out)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if rec.Type != msgType {
			continue
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Flush()
}
