// Package scan implements C5, the store-scan and diagnostic engine: four
// cancelable streaming scans over the store's hashmap/append tables.
package scan

import (
	"fmt"

	"bsnode/internal/bserr"
	"bsnode/internal/store"
)

// Canceler is the subset of the shutdown coordinator every scan polls
// between units of work.
type Canceler interface {
	Canceled() bool
}

// Emitter receives the one-line progress/result notices the scans
// produce, decoupling this package from any particular log sink.
type Emitter interface {
	Printf(format string, args ...any)
}

// StoreReader is the read-only subset of *store.Store the scans need.
type StoreReader interface {
	Buckets(name store.Name) int
	Records(name store.Name) int
	AppendAt(name store.Name, l store.Link) (store.Record, bool)
	BucketHeads(name store.Name) []bool
	BucketFillCounts(name store.Name) []int
}

// Default progress frequencies.
const (
	DefaultFreqTx    = 100_000
	DefaultFreqBlock = 10_000
	DefaultFreqPut   = 10_000_000
)

// Scanner runs the four scans against a store. Frequency fields default to
// the default constants but are exported so tests can exercise the
// progress-emission path without synthesizing millions of records.
type Scanner struct {
	Store StoreReader
	Stop  Canceler
	Log   Emitter

	FreqTx    int
	FreqBlock int
	FreqPut   int
}

// New constructs a Scanner with the default progress frequencies.
func New(s StoreReader, stop Canceler, log Emitter) *Scanner {
	return &Scanner{
		Store:     s,
		Stop:      stop,
		Log:       log,
		FreqTx:    DefaultFreqTx,
		FreqBlock: DefaultFreqBlock,
		FreqPut:   DefaultFreqPut,
	}
}

func (s *Scanner) freqTx() int {
	if s.FreqTx > 0 {
		return s.FreqTx
	}
	return DefaultFreqTx
}

func (s *Scanner) freqBlock() int {
	if s.FreqBlock > 0 {
		return s.FreqBlock
	}
	return DefaultFreqBlock
}

func (s *Scanner) freqPut() int {
	if s.FreqPut > 0 {
		return s.FreqPut
	}
	return DefaultFreqPut
}

func (s *Scanner) canceled() bool {
	return s.Stop != nil && s.Stop.Canceled()
}

func (s *Scanner) notice(format string, args ...any) {
	if s.Log != nil {
		s.Log.Printf(format, args...)
	}
}

// ScanFlags implements §4.5.1: walks candidate headers by height, emitting
// a notice on every fork-flag transition. O(top_candidate), O(1) extra
// memory.
func (s *Scanner) ScanFlags() error {
	n := s.Store.Records(store.TableCandidate)
	var prevBits uint32
	havePrev := false
	for i := 0; i < n; i++ {
		if s.canceled() {
			s.notice("scan_flags canceled at height %d", i)
			return nil
		}
		rec, ok := s.Store.AppendAt(store.TableCandidate, store.Link(i))
		if !ok {
			return fmt.Errorf("scan_flags: %w", bserr.ErrIntegrity)
		}
		hdr, err := DecodeCandidateHeader(rec)
		if err != nil {
			continue // genesis placeholder record, not a decodable header
		}
		if int(hdr.Height) != i && i != 0 {
			s.notice("scan_flags: integrity error at height %d", i)
			return fmt.Errorf("scan_flags: height mismatch at %d: %w", i, bserr.ErrIntegrity)
		}
		if havePrev && hdr.Flags != prevBits {
			s.notice("Forked from [%d] to [%d] at [%s:%d]", prevBits, hdr.Flags, hdr.Hash, hdr.Height)
		}
		prevBits = hdr.Flags
		havePrev = true
	}
	return nil
}

// ScanSlabs implements §4.5.2: walks the tx table by ordinal link,
// accumulating input/output counts, stopping at the first zero-pair
// record. O(tx_records), O(1) extra memory.
func (s *Scanner) ScanSlabs() (inputs, outputs uint64, err error) {
	freq := s.freqTx()
	link := store.Link(0)
	for {
		if s.canceled() {
			s.notice("scan_slabs canceled after %d records", link)
			return inputs, outputs, nil
		}
		rec, ok := s.Store.AppendAt(store.TableTx, link)
		if !ok {
			return inputs, outputs, nil // end of table
		}
		slab, derr := DecodeTxSlab(rec)
		if derr != nil {
			return inputs, outputs, fmt.Errorf("scan_slabs: %w", bserr.ErrIntegrity)
		}
		if slab.IsEnd() {
			return inputs, outputs, nil
		}
		inputs += uint64(slab.Inputs)
		outputs += uint64(slab.Outputs)
		link++
		if int(link)%freq == 0 {
			s.notice("scan_slabs progress: %d records, %d inputs, %d outputs", link, inputs, outputs)
		}
	}
}

// bucketScanTarget names a table scan_buckets/scan_collisions walks, with
// its progress frequency.
type bucketScanTarget struct {
	name store.Name
	freq func(*Scanner) int
}

func (s *Scanner) bucketTargets() []bucketScanTarget {
	return []bucketScanTarget{
		{store.TableHeader, (*Scanner).freqBlock},
		{store.TableTxs, (*Scanner).freqTx},
		{store.TablePoint, (*Scanner).freqPut},
	}
}

// BucketFill is one table's fill-ratio result from ScanBuckets.
type BucketFill struct {
	Table      store.Name
	BucketsLen int
	Filled     int
}

// FillRatio returns Filled/BucketsLen, or 0 if the table is disabled.
func (f BucketFill) FillRatio() float64 {
	if f.BucketsLen == 0 {
		return 0
	}
	return float64(f.Filled) / float64(f.BucketsLen)
}

// ScanBuckets implements §4.5.3: for header, tx and point tables, walks
// buckets 0..B-1 counting non-terminal heads. A table with zero buckets is
// treated as disabled and skipped.
func (s *Scanner) ScanBuckets() ([]BucketFill, error) {
	var results []BucketFill
	for _, target := range s.bucketTargets() {
		b := s.Store.Buckets(target.name)
		if b == 0 {
			continue
		}
		heads := s.Store.BucketHeads(target.name)
		freq := target.freq(s)
		filled := 0
		for i, occupied := range heads {
			if s.canceled() {
				s.notice("scan_buckets canceled in table %s at bucket %d", target.name, i)
				return results, nil
			}
			if occupied {
				filled++
			}
			if (i+1)%freq == 0 {
				s.notice("scan_buckets %s progress: %d/%d filled", target.name, filled, i+1)
			}
		}
		results = append(results, BucketFill{Table: target.name, BucketsLen: b, Filled: filled})
	}
	return results, nil
}
