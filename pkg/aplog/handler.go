package aplog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/carbonix/aploghandler/pkg/aplog/dataflash"
	"github.com/carbonix/aploghandler/pkg/aplog/mavlink"
	"github.com/carbonix/aploghandler/pkg/io/parquetio"
)

// Type classifies a log file by its on-disk format.
type Type string

const (
	TypeBIN  Type = "BIN"
	TypeTLOG Type = "TLOG"
)

var (
	ErrUnsupportedLogType = errors.New("aplog: unsupported log file type")
	ErrNoRecords          = errors.New("aplog: no decodable records in log")
)

// y2000us is 2000-01-01 in unix microseconds; autopilot times before it are
// bogus and excluded from clock-offset estimation.
const y2000us = 946684800000000

// Options configures a Handler.
type Options struct {
	// OutputDir is the root under which LogUID=... partition trees are
	// written. Defaults to "output".
	OutputDir string
	// FlushRows is the per-partition buffer size before rows are handed to
	// the parquet writer. Defaults to parquetio.DefaultFlushRows.
	FlushRows int
	// CubePatterns are extra regular expressions (one capture group) tried
	// when extracting the cube id from boot messages.
	CubePatterns []string
	// Version is recorded in the sidecar run info.
	Version string
}

// Handler processes one ArduPilot log file: type detection and the content
// hash happen at construction, ProcessLog derives metadata, ExtractParquet
// exports the telemetry. ExtractParquet does not require a prior ProcessLog.
type Handler struct {
	path     string
	fileName string
	typ      Type
	uid      string
	opts     Options
	cube     *cubeMatcher

	meta       *Metadata
	offset     float64
	haveOffset bool
}

// NewHandler opens path, detects the log type from its extension and
// computes the SHA256 log UID over the raw file bytes.
func NewHandler(path string, opts Options) (*Handler, error) {
	typ, err := DetectLogType(path)
	if err != nil {
		return nil, err
	}
	uid, err := fileSHA256(path)
	if err != nil {
		return nil, err
	}
	cube, err := newCubeMatcher(opts.CubePatterns)
	if err != nil {
		return nil, err
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	if opts.FlushRows <= 0 {
		opts.FlushRows = parquetio.DefaultFlushRows
	}
	h := &Handler{
		path:     path,
		fileName: filepath.Base(path),
		typ:      typ,
		uid:      uid,
		opts:     opts,
		cube:     cube,
	}
	log.Debug().Str("path", path).Str("type", string(typ)).Str("uid", uid).Msg("log handler initialized")
	return h, nil
}

// DetectLogType classifies a log path by extension; a trailing .gz is
// stripped first.
func DetectLogType(path string) (Type, error) {
	name := strings.ToLower(path)
	name = strings.TrimSuffix(name, ".gz")
	switch filepath.Ext(name) {
	case ".bin":
		return TypeBIN, nil
	case ".tlog":
		return TypeTLOG, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLogType, filepath.Ext(name))
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("aplog: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("aplog: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (h *Handler) UID() string      { return h.uid }
func (h *Handler) LogType() Type    { return h.typ }
func (h *Handler) FileName() string { return h.fileName }

// Metadata returns the result of the last ProcessLog, or nil.
func (h *Handler) Metadata() *Metadata { return h.meta }

// ProcessLog scans the log for identifying metadata: cube id, boot number
// and start time. The scan exits early once all three are found.
func (h *Handler) ProcessLog(ctx context.Context) (*Metadata, error) {
	meta := &Metadata{LogUID: h.uid, FileName: h.fileName, LogType: string(h.typ)}
	var err error
	switch h.typ {
	case TypeBIN:
		err = h.processBIN(ctx, meta)
	case TypeTLOG:
		err = h.processTLOG(ctx, meta)
	}
	if err != nil {
		return nil, err
	}
	h.meta = meta
	log.Info().
		Str("uid", h.uid).
		Str("cube_id", meta.CubeID).
		Int("boot_number", meta.BootNumber).
		Float64("start_unix", meta.StartUnix).
		Msg("log metadata extracted")
	return meta, nil
}

func (h *Handler) processBIN(ctx context.Context, meta *Metadata) error {
	r, err := dataflash.Open(h.path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if tb, ok := r.Timebase(); ok {
		meta.StartUnix = tb
		meta.StartTime = time.Unix(0, int64(tb*1e9)).UTC()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch msg.Name() {
		case "MSG":
			if meta.CubeID == "" {
				if text, ok := msg.Str("Message"); ok {
					meta.CubeID = h.cube.extract(text)
				}
			}
		case "PARM":
			if meta.BootNumber == 0 {
				if name, ok := msg.Str("Name"); ok && name == "STAT_BOOTCNT" {
					if v, ok := msg.Float("Value"); ok {
						meta.BootNumber = int(v)
					}
				}
			}
		}
		if meta.complete() {
			return nil
		}
	}
}

func (h *Handler) processTLOG(ctx context.Context, meta *Metadata) error {
	offset, err := h.clockOffset(ctx)
	if err != nil {
		return err
	}
	meta.ClockOffset = offset

	r, err := mavlink.Open(h.path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch msg.Name() {
		case "STATUSTEXT":
			if meta.CubeID == "" {
				if text, ok := msg.Str("text"); ok {
					meta.CubeID = h.cube.extract(text)
				}
			}
		case "SYSTEM_TIME":
			if meta.StartUnix == 0 {
				usec, _ := msg.Float("time_unix_usec")
				bootMS, _ := msg.Float("time_boot_ms")
				if usec > 0 {
					meta.StartUnix = (usec-bootMS*1000)/1e6 - offset
					meta.StartTime = time.Unix(0, int64(meta.StartUnix*1e9)).UTC()
				}
			}
		case "PARAM_VALUE":
			if meta.BootNumber == 0 {
				if id, ok := msg.Str("param_id"); ok && id == "STAT_BOOTCNT" {
					if v, ok := msg.Float("param_value"); ok {
						meta.BootNumber = int(v)
					}
				}
			}
		}
		if meta.complete() {
			return nil
		}
	}
}

// clockOffset estimates the average offset between the ground-station clock
// that stamped the tlog records and the autopilot's GPS-disciplined clock.
// Only component 1 is trusted; GPS fixes below 3D and pre-2000 times are
// ignored.
func (h *Handler) clockOffset(ctx context.Context) (float64, error) {
	if h.haveOffset {
		return h.offset, nil
	}
	r, err := mavlink.Open(h.path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	var avg float64
	var n int
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		msg, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if msg.CompID != 1 {
			continue
		}
		var usec float64
		switch msg.Name() {
		case "SYSTEM_TIME":
			usec, _ = msg.Float("time_unix_usec")
		case "GPS_RAW_INT":
			if fix, _ := msg.Float("fix_type"); fix < 3 {
				continue
			}
			usec, _ = msg.Float("time_usec")
		default:
			continue
		}
		if usec < y2000us {
			continue
		}
		off := msg.TimeSeconds() - usec/1e6
		n++
		avg += (off - avg) / float64(n)
	}
	h.offset = avg
	h.haveOffset = true
	log.Debug().Float64("clock_offset", avg).Int("samples", n).Msg("tlog clock offset estimated")
	return avg, nil
}

func (h *Handler) openSource(ctx context.Context) (RecordSource, error) {
	switch h.typ {
	case TypeBIN:
		r, err := dataflash.Open(h.path)
		if err != nil {
			return nil, err
		}
		return &binSource{r: r}, nil
	case TypeTLOG:
		offset, err := h.clockOffset(ctx)
		if err != nil {
			return nil, err
		}
		r, err := mavlink.Open(h.path)
		if err != nil {
			return nil, err
		}
		return &tlogSource{r: r, offsetMS: offset * 1000}, nil
	}
	return nil, ErrUnsupportedLogType
}

// ExtractResult reports where an extraction landed and what it did.
type ExtractResult struct {
	Root  string
	RunID string
	Stats ExtractStats
}

// ExtractParquet decodes the full log and writes every telemetry field as
// hive-partitioned Parquet under OutputDir/LogUID=<uid>/, plus a
// metadata.toml sidecar. Partial partitions are finalized even when the
// decode aborts mid-log.
func (h *Handler) ExtractParquet(ctx context.Context) (*ExtractResult, error) {
	src, err := h.openSource(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	w := parquetio.NewWriter(h.opts.OutputDir, h.uid, h.opts.FlushRows)
	stats := ExtractStats{}
	pumpErr := pump(ctx, src, w, &stats)
	h.mergeDecoderStats(src, &stats)
	stats.RowsWritten = w.RowsWritten()
	stats.Partitions = w.Partitions()
	if cerr := w.Close(); cerr != nil && pumpErr == nil {
		pumpErr = cerr
	}
	if pumpErr != nil {
		return nil, pumpErr
	}
	if stats.Records == 0 {
		return nil, ErrNoRecords
	}

	runID := uuid.NewString()
	sc := &Sidecar{
		Run: RunInfo{
			ID:          runID,
			Tool:        "aploghandler",
			Version:     h.opts.Version,
			CompletedAt: time.Now().UTC(),
		},
		Stats: stats,
	}
	if h.meta != nil {
		sc.Metadata = *h.meta
	} else {
		sc.Metadata = Metadata{LogUID: h.uid, FileName: h.fileName, LogType: string(h.typ)}
	}
	if err := writeSidecar(w.Root(), sc); err != nil {
		return nil, err
	}

	log.Info().
		Str("uid", h.uid).
		Str("root", w.Root()).
		Int64("records", stats.Records).
		Int64("rows", stats.RowsWritten).
		Int("partitions", stats.Partitions).
		Msg("telemetry extraction completed")
	return &ExtractResult{Root: w.Root(), RunID: runID, Stats: stats}, nil
}

func (h *Handler) mergeDecoderStats(src RecordSource, stats *ExtractStats) {
	switch s := src.(type) {
	case *binSource:
		ds := s.r.Stats()
		stats.SkippedBytes = ds.SkippedBytes
		stats.UnknownMessages = ds.UnknownMessages
	case *tlogSource:
		ds := s.r.Stats()
		stats.SkippedBytes = ds.SkippedBytes
		stats.BadChecksums = ds.BadChecksums
		stats.UnknownMessages = ds.UnknownMessages
	}
}

// Dump writes the decoded records of one message type as CSV, for
// inspection.
func (h *Handler) Dump(ctx context.Context, msgType string, out io.Writer) error {
	src, err := h.openSource(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	return dumpCSV(ctx, src, msgType, out)
}
