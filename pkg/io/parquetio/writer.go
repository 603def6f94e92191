package parquetio

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go/source"
	pw "github.com/xitongsys/parquet-go/writer"
	local "github.com/xitongsys/parquet-go-source/local"

	"github.com/carbonix/aploghandler/pkg/timeseries"
)

// DefaultFlushRows is the per-partition buffer size before rows are handed
// to the underlying parquet writer.
const DefaultFlushRows = 500000

// sampleSchemaJSON is the fixed export schema: every telemetry field becomes
// rows of (Timestamp, LineNumber, Value|StringValue|BinaryValue).
func sampleSchemaJSON() string {
	type field struct {
		Tag string `json:"Tag"`
	}
	type schema struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}
	sc := schema{Tag: "name=sample, repetitiontype=REQUIRED"}
	for _, tag := range []string{
		"name=Timestamp, type=INT64, repetitiontype=OPTIONAL",
		"name=LineNumber, type=INT64, repetitiontype=OPTIONAL",
		"name=Value, type=FLOAT, repetitiontype=OPTIONAL",
		"name=StringValue, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
		"name=BinaryValue, type=BYTE_ARRAY, repetitiontype=OPTIONAL",
	} {
		sc.Fields = append(sc.Fields, field{Tag: tag})
	}
	b, _ := json.Marshal(sc)
	return string(b)
}

type partition struct {
	path  string
	fw    source.ParquetFile
	w     *pw.JSONWriter
	batch *timeseries.Batch
	rows  int64
}

// Writer fans decoded samples out into one Parquet file per
// (MessageType, Instance, KeyName) partition under LogUID=<uid>. Files are
// created lazily and stay open until Close; each drained batch becomes a row
// group, so flushing never rewrites a file.
type Writer struct {
	root      string
	flushRows int
	parts     map[string]*partition
}

func NewWriter(outputDir, logUID string, flushRows int) *Writer {
	if flushRows <= 0 {
		flushRows = DefaultFlushRows
	}
	return &Writer{
		root:      filepath.Join(outputDir, "LogUID="+logUID),
		flushRows: flushRows,
		parts:     make(map[string]*partition),
	}
}

// Root returns the partition root directory for this log.
func (w *Writer) Root() string { return w.root }

// Partitions returns the number of partition files opened so far.
func (w *Writer) Partitions() int { return len(w.parts) }

// RowsWritten returns the total rows across all partitions, including rows
// still buffered.
func (w *Writer) RowsWritten() int64 {
	var n int64
	for _, p := range w.parts {
		n += p.rows + int64(p.batch.Len())
	}
	return n
}

// WriteSample appends one sample to its partition, flushing the partition
// buffer into the parquet writer when it reaches the flush size.
func (w *Writer) WriteSample(msgType string, instance int, key string, ts, line int64, v timeseries.Value) error {
	k := fmt.Sprintf("MessageType=%s/Instance=%d/KeyName=%s", msgType, instance, key)
	p, ok := w.parts[k]
	if !ok {
		var err error
		p, err = w.newPartition(k)
		if err != nil {
			return err
		}
		w.parts[k] = p
	}
	p.batch.Append(ts, line, v)
	if p.batch.Len() >= w.flushRows {
		return w.drain(p)
	}
	return nil
}

func (w *Writer) newPartition(key string) (*partition, error) {
	dir := filepath.Join(w.root, filepath.FromSlash(key))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("parquetio: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "file.parquet")
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("parquetio: create %s: %w", path, err)
	}
	jw, err := pw.NewJSONWriter(sampleSchemaJSON(), fw, 4)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquetio: writer init %s: %w", path, err)
	}
	return &partition{path: path, fw: fw, w: jw, batch: timeseries.NewBatch()}, nil
}

// row is the JSON shape handed to the parquet JSONWriter. BinaryValue is
// base64: the JSON transport requires valid UTF-8, and telemetry arrays are
// arbitrary bytes.
type row struct {
	Timestamp   int64    `json:"Timestamp"`
	LineNumber  int64    `json:"LineNumber"`
	Value       *float64 `json:"Value,omitempty"`
	StringValue *string  `json:"StringValue,omitempty"`
	BinaryValue *string  `json:"BinaryValue,omitempty"`
}

func (w *Writer) drain(p *partition) error {
	n := p.batch.Len()
	for i := 0; i < n; i++ {
		var r row
		r.Timestamp, _ = p.batch.Timestamp.Get(i)
		r.LineNumber, _ = p.batch.LineNumber.Get(i)
		if v, ok := p.batch.Value.Get(i); ok {
			r.Value = &v
		}
		if s, ok := p.batch.StringValue.Get(i); ok {
			r.StringValue = &s
		}
		if b, ok := p.batch.BinaryValue.Get(i); ok {
			enc := base64.StdEncoding.EncodeToString(b)
			r.BinaryValue = &enc
		}
		buf, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("parquetio: marshal row: %w", err)
		}
		if err := p.w.Write(string(buf)); err != nil {
			return fmt.Errorf("parquetio: write %s: %w", p.path, err)
		}
	}
	p.rows += int64(n)
	p.batch.Reset()
	return nil
}

// Close drains every partition buffer and finalizes all parquet files. The
// first error is returned; remaining files are still closed.
func (w *Writer) Close() error {
	var first error
	for _, p := range w.parts {
		if err := w.drain(p); err != nil && first == nil {
			first = err
		}
		if err := p.w.WriteStop(); err != nil && first == nil {
			first = fmt.Errorf("parquetio: finalize %s: %w", p.path, err)
		}
		if err := p.fw.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
