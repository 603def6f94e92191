package csvio

import (
	"encoding/base64"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/carbonix/aploghandler/pkg/timeseries"
)

// Writer streams decoded records of a single message type as CSV. The header
// is taken from the first record's field order.
type Writer struct {
	cw   *csv.Writer
	cols []string
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{cw: csv.NewWriter(w)}
}

func (w *Writer) Write(rec *timeseries.Record) error {
	if w.cols == nil {
		w.cols = make([]string, 0, len(rec.Fields))
		header := []string{"Timestamp", "LineNumber", "Instance"}
		for _, f := range rec.Fields {
			w.cols = append(w.cols, f.Name)
			header = append(header, f.Name)
		}
		if err := w.cw.Write(header); err != nil {
			return err
		}
	}
	row := make([]string, 0, len(w.cols)+3)
	row = append(row,
		strconv.FormatInt(rec.TimestampMS, 10),
		strconv.FormatInt(rec.Line, 10),
		strconv.Itoa(rec.Instance),
	)
	for _, col := range w.cols {
		v, ok := rec.Field(col)
		if !ok {
			row = append(row, "")
			continue
		}
		row = append(row, format(v))
	}
	return w.cw.Write(row)
}

func format(v timeseries.Value) string {
	switch v.Kind {
	case timeseries.KindFloat, timeseries.KindFloatBytes:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case timeseries.KindString:
		return v.Str
	case timeseries.KindBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes)
	}
	return ""
}

func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}
