// Package store implements C4, the store facade: open/create/close/
// snapshot/restore/reload of the table set, plus the health-check surface
// and the cached query objects scans read through.
package store

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"

	"bsnode/internal/bserr"
)

// ProgressFunc is invoked zero or more times during create/open/close/
// snapshot/restore/reload with an event id and the table it concerns.
type ProgressFunc func(eventID string, table Name)

// FaultKind reports the store's health.
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultIntegrity
	FaultDiskFull
)

// Config sizes the table set at create time: bucket counts for every
// Hashmap-kind table, keyed by name. Tables absent from the map, or with a
// zero bucket count, are treated as disabled.
type Config struct {
	Dir          string
	BucketCounts map[Name]int
	CacheEntries int
}

// Store is the C4 facade. The zero value is not usable; construct with New.
type Store struct {
	cfg Config

	mu        sync.RWMutex
	hashmaps  map[Name]*hashmapTable
	appends   map[Name]*appendTable
	open      bool
	dirty     bool
	full      bool
	fault     FaultKind
	cache     *lru.Cache[string, Record]
}

// New allocates an unopened Store bound to cfg.
func New(cfg Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) flushLockPath() string {
	return filepath.Join(s.cfg.Dir, ".flush_lock")
}

// CheckStorePath verifies the configured directory exists (or can be
// created, when create is true) — the single directory check the facade
// performs ahead of create/open.
func (s *Store) CheckStorePath(create bool) error {
	info, err := os.Stat(s.cfg.Dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("store: %s is not a directory", s.cfg.Dir)
		}
		return nil
	case os.IsNotExist(err) && create:
		return os.MkdirAll(s.cfg.Dir, 0o755)
	default:
		return fmt.Errorf("store: stat %s: %w", s.cfg.Dir, err)
	}
}

// Create allocates a fresh table set, installs genesis, and writes the
// flush-lock marker that Open uses to detect a dirty prior run.
func (s *Store) Create(progress ProgressFunc) error {
	if err := s.CheckStorePath(true); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hashmaps = make(map[Name]*hashmapTable)
	s.appends = make(map[Name]*appendTable)
	for name, kind := range schema {
		if progress != nil {
			progress("allocate", name)
		}
		switch kind {
		case Hashmap:
			n := s.cfg.BucketCounts[name]
			s.hashmaps[name] = newHashmapTable(n)
		case Append:
			s.appends[name] = &appendTable{}
		}
	}
	if err := s.installGenesis(progress); err != nil {
		return err
	}
	if err := s.writeFlushLock(); err != nil {
		return err
	}
	s.initCache()
	s.open = true
	s.dirty = false
	return nil
}

// installGenesis is invoked only during Create.
func (s *Store) installGenesis(progress ProgressFunc) error {
	if progress != nil {
		progress("genesis", TableHeader)
	}
	s.appends[TableCandidate].push(Record{})
	return nil
}

func (s *Store) writeFlushLock() error {
	return os.WriteFile(s.flushLockPath(), []byte("open"), 0o644)
}

// Open opens an existing store. If the flush-lock marker is present from a
// prior run that did not close cleanly, it returns bserr.ErrFlushLock so the
// caller can attempt Restore, per the documented failure semantics (§4.4).
func (s *Store) Open(progress ProgressFunc) error {
	if err := s.CheckStorePath(false); err != nil {
		return err
	}
	if _, err := os.Stat(s.flushLockPath()); err == nil {
		return fmt.Errorf("store: open: %w", bserr.ErrFlushLock)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadFromDisk(progress); err != nil {
		return err
	}
	if err := s.writeFlushLock(); err != nil {
		return err
	}
	s.initCache()
	s.open = true
	return nil
}

// Close flushes the flush-lock marker and marks the store closed. Every
// Open must be matched by exactly one Close before process exit (§3).
func (s *Store) Close(progress ProgressFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	for name := range schema {
		if progress != nil {
			progress("close", name)
		}
	}
	_ = os.Remove(s.flushLockPath())
	s.open = false
	s.dirty = false
	return nil
}

// Snapshot is refused if the store is faulted (§4.4). It persists every
// table to a zstd-compressed archive under <dir>/snapshots/.
func (s *Store) Snapshot(progress ProgressFunc) error {
	s.mu.RLock()
	fault := s.fault
	s.mu.RUnlock()
	if fault != FaultNone {
		return fmt.Errorf("store: snapshot: %w", bserr.ErrIntegrity)
	}

	dir := filepath.Join(s.cfg.Dir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for name := range schema {
		if progress != nil {
			progress("snapshot", name)
		}
		if err := s.writeTableSnapshot(dir, name); err != nil {
			return err
		}
	}
	return nil
}

// Restore reloads the table set from the most recent snapshot.
func (s *Store) Restore(progress ProgressFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked(progress)
}

// restoreLocked is the unlocked core of Restore, reused by Open through
// loadFromDisk (Open takes the write lock after checking the flush-lock
// marker and holds it across the call).
func (s *Store) restoreLocked(progress ProgressFunc) error {
	dir := filepath.Join(s.cfg.Dir, "snapshots")
	s.hashmaps = make(map[Name]*hashmapTable)
	s.appends = make(map[Name]*appendTable)
	for name, kind := range schema {
		if progress != nil {
			progress("restore", name)
		}
		if err := s.readTableSnapshot(dir, name, kind); err != nil {
			return err
		}
	}
	s.initCache()
	s.dirty = false
	s.open = true
	return nil
}

// Reload repairs the full-disk state: when the store is full it reports a
// "reload" progress event per table and clears the full flag. It leaves the
// table contents and the flush-lock marker untouched, and does nothing when
// the store is not full.
func (s *Store) Reload(progress ProgressFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.full {
		return nil
	}
	for name := range schema {
		if progress != nil {
			progress("reload", name)
		}
	}
	s.full = false
	return nil
}

func (s *Store) writeTableSnapshot(dir string, name Name) error {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	switch schema[name] {
	case Hashmap:
		if err := enc.Encode(s.hashmaps[name].buckets); err != nil {
			return err
		}
	case Append:
		if err := enc.Encode(s.appends[name].records); err != nil {
			return err
		}
	}

	f, err := os.Create(filepath.Join(dir, string(name)+".zst"))
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	defer w.Close()
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(buf.Bytes()); err != nil {
		return err
	}
	return bw.Flush()
}

func (s *Store) readTableSnapshot(dir string, name Name, kind Kind) error {
	f, err := os.Open(filepath.Join(dir, string(name)+".zst"))
	if err != nil {
		if os.IsNotExist(err) {
			// No snapshot yet for this table: allocate empty.
			switch kind {
			case Hashmap:
				s.hashmaps[name] = newHashmapTable(s.cfg.BucketCounts[name])
			case Append:
				s.appends[name] = &appendTable{}
			}
			return nil
		}
		return err
	}
	defer f.Close()
	r, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer r.Close()

	dec := gob.NewDecoder(r)
	switch kind {
	case Hashmap:
		var buckets []bucketChain
		if err := dec.Decode(&buckets); err != nil {
			return err
		}
		s.hashmaps[name] = &hashmapTable{buckets: buckets}
	case Append:
		var records []Record
		if err := dec.Decode(&records); err != nil {
			return err
		}
		s.appends[name] = &appendTable{records: records}
	}
	return nil
}

func (s *Store) loadFromDisk(progress ProgressFunc) error {
	return s.restoreLocked(progress)
}

func (s *Store) initCache() {
	entries := s.cfg.CacheEntries
	if entries <= 0 {
		entries = 4096
	}
	c, _ := lru.New[string, Record](entries)
	s.cache = c
}

// GetFault returns the store's current health (§3).
func (s *Store) GetFault() FaultKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fault
}

// SetFault lets the scan/validation paths latch an integrity fault.
func (s *Store) SetFault(k FaultKind) {
	s.mu.Lock()
	s.fault = k
	s.mu.Unlock()
}

// IsDirty reports whether the store holds writes made since the last clean
// Close, Create, or Restore.
func (s *Store) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// IsFull reports disk-full state.
func (s *Store) IsFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.full
}

// SetFull lets the write path latch disk-full state for Reload to clear.
func (s *Store) SetFull(full bool) {
	s.mu.Lock()
	s.full = full
	s.mu.Unlock()
}

// IsFault reports whether the store is in an unrecoverable state.
func (s *Store) IsFault() bool {
	return s.GetFault() != FaultNone
}

// Buckets returns the bucket count of a Hashmap table, or 0 if the table is
// Append-kind, unknown, or disabled.
func (s *Store) Buckets(name Name) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.hashmaps[name]; ok {
		return t.bucketCount()
	}
	return 0
}

// Records returns the total record count across all buckets (Hashmap) or
// the sequence length (Append).
func (s *Store) Records(name Name) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.hashmaps[name]; ok {
		return t.recordCount()
	}
	if t, ok := s.appends[name]; ok {
		return t.recordCount()
	}
	return 0
}

// BodySize returns the total byte size of stored records for name.
func (s *Store) BodySize(name Name) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.hashmaps[name]; ok {
		return t.bodySize()
	}
	if t, ok := s.appends[name]; ok {
		return t.bodySize()
	}
	return 0
}

// BucketHeads reports, for each bucket of a Hashmap table, whether its head
// is non-terminal (i.e. occupied) — the primitive scan_buckets (§4.5.2)
// walks.
func (s *Store) BucketHeads(name Name) []bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.hashmaps[name]
	if !ok {
		return nil
	}
	heads := make([]bool, len(t.buckets))
	for i, b := range t.buckets {
		heads[i] = len(b) > 0
	}
	return heads
}

// BucketFillCounts reports, per bucket, the chain length (fill frequency) —
// the primitive scan_collisions (§4.5.4) walks.
func (s *Store) BucketFillCounts(name Name) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.hashmaps[name]
	if !ok {
		return nil
	}
	counts := make([]int, len(t.buckets))
	for i, b := range t.buckets {
		counts[i] = len(b)
	}
	return counts
}

// AppendAt returns the record at ordinal link l in an Append table.
func (s *Store) AppendAt(name Name, l Link) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.appends[name]
	if !ok {
		return nil, false
	}
	if rec, hit := s.cacheGet(name, l); hit {
		return rec, true
	}
	rec, ok := t.at(l)
	if ok {
		s.cachePut(name, l, rec)
	}
	return rec, ok
}

// Put appends a record (append-kind tables) or inserts it into a bucket
// (hashmap-kind tables), returning the link for append tables.
func (s *Store) Put(name Name, bucket int, rec Record) Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	if t, ok := s.hashmaps[name]; ok {
		t.put(bucket, rec)
		return Terminal
	}
	if t, ok := s.appends[name]; ok {
		return t.push(rec)
	}
	return Terminal
}

func (s *Store) cacheKey(name Name, l Link) string {
	return fmt.Sprintf("%s:%d", name, l)
}

func (s *Store) cacheGet(name Name, l Link) (Record, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(s.cacheKey(name, l))
}

func (s *Store) cachePut(name Name, l Link, rec Record) {
	if s.cache == nil {
		return
	}
	s.cache.Add(s.cacheKey(name, l), rec)
}
