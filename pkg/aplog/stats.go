package aplog

// ExtractStats aggregates decoder and writer counters over one extraction.
type ExtractStats struct {
	Records         int64            `toml:"records"`
	RowsWritten     int64            `toml:"rows_written"`
	Partitions      int              `toml:"partitions"`
	SkippedBytes    int64            `toml:"skipped_bytes"`
	BadChecksums    int64            `toml:"bad_checksums,omitempty"`
	UnknownMessages int64            `toml:"unknown_messages"`
	PerType         map[string]int64 `toml:"per_type,omitempty"`
}

func (s *ExtractStats) count(msgType string) {
	if s.PerType == nil {
		s.PerType = make(map[string]int64)
	}
	s.PerType[msgType]++
	s.Records++
}
