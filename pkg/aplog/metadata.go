package aplog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// defaultCubePatterns match the hardware identification lines the autopilot
// emits at boot. The capture group is the unit serial.
var defaultCubePatterns = []string{
	`CarbonixCubeOrange\s+(\S.*)`,
	`CubeOrange\s+(\S.*)`,
	`CubeOrange-Volanti\s+(\S.*)`,
	`CubeOrange-Ottano\s+(\S.*)`,
	`CubeOrange-Octano\s+(\S.*)`,
	`CubeOrangePlus\s+(\S.*)`,
	`CubeOrangePlus-Volanti\s+(\S.*)`,
	`CubeOrangePlus-Ottano\s+(\S.*)`,
	`CubeOrangePlus-Octano\s+(\S.*)`,
}

type cubeMatcher struct {
	res []*regexp.Regexp
}

// newCubeMatcher compiles the default patterns plus any configured extras.
func newCubeMatcher(extra []string) (*cubeMatcher, error) {
	patterns := append(append([]string{}, defaultCubePatterns...), extra...)
	m := &cubeMatcher{res: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("aplog: cube pattern %q: %w", p, err)
		}
		m.res = append(m.res, re)
	}
	return m, nil
}

// extract returns the cube id found in a status/boot message, or "".
func (m *cubeMatcher) extract(text string) string {
	for _, re := range m.res {
		if sub := re.FindStringSubmatch(text); sub != nil {
			return strings.TrimSpace(sub[1])
		}
	}
	return ""
}

// Metadata is what the metadata pass derives from a log.
type Metadata struct {
	LogUID      string    `toml:"log_uid"`
	FileName    string    `toml:"file_name"`
	LogType     string    `toml:"log_type"`
	CubeID      string    `toml:"cube_id,omitempty"`
	BootNumber  int       `toml:"boot_number,omitempty"`
	StartTime   time.Time `toml:"start_time,omitempty"`
	StartUnix   float64   `toml:"start_unix_seconds,omitempty"`
	ClockOffset float64   `toml:"clock_offset_seconds,omitempty"`
}

func (m *Metadata) complete() bool {
	return m.CubeID != "" && m.BootNumber != 0 && m.StartUnix != 0
}

// RunInfo identifies one extraction run in the sidecar.
type RunInfo struct {
	ID          string    `toml:"id"`
	Tool        string    `toml:"tool"`
	Version     string    `toml:"version"`
	CompletedAt time.Time `toml:"completed_at"`
}

// Sidecar is the metadata.toml written next to the partition tree.
type Sidecar struct {
	Metadata Metadata     `toml:"metadata"`
	Run      RunInfo      `toml:"run"`
	Stats    ExtractStats `toml:"stats"`
}

func writeSidecar(dir string, sc *Sidecar) error {
	buf, err := toml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("aplog: marshal sidecar: %w", err)
	}
	path := filepath.Join(dir, "metadata.toml")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("aplog: write sidecar: %w", err)
	}
	return nil
}
