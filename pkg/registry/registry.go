package registry

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

// Entry records one converted log, keyed by its content UID. Re-runs consult
// the registry to skip logs that were already exported.
type Entry struct {
	UID         string
	FileName    string
	LogType     string
	CubeID      string
	BootNumber  int
	StartTime   time.Time
	ProcessedAt time.Time
	OutputPath  string
	Rows        int64
	RunID       string
}

// Store is a badgerhold-backed registry of processed logs.
type Store struct {
	store *badgerhold.Store
}

// Open opens (or creates) the registry database in dir.
func Open(dir string) (*Store, error) {
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	// Badger's default logger is chatty on stderr; keep errors only.
	options.Options = options.Options.WithLoggingLevel(badger.ERROR)
	st, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", dir, err)
	}
	return &Store{store: st}, nil
}

func (s *Store) Close() error { return s.store.Close() }

// Put inserts or replaces the entry for e.UID.
func (s *Store) Put(e *Entry) error {
	if e.UID == "" {
		return fmt.Errorf("registry: entry UID is required")
	}
	if err := s.store.Upsert(e.UID, e); err != nil {
		return fmt.Errorf("registry: save %s: %w", e.UID, err)
	}
	return nil
}

// Get returns the entry for a log UID, or nil when the log has not been
// processed.
func (s *Store) Get(uid string) (*Entry, error) {
	var e Entry
	if err := s.store.Get(uid, &e); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: get %s: %w", uid, err)
	}
	return &e, nil
}

// List returns all entries, most recently processed first.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	q := badgerhold.Where("UID").Ne("").SortBy("ProcessedAt").Reverse()
	if err := s.store.Find(&entries, q); err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	return entries, nil
}
