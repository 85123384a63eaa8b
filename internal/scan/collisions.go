package scan

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/bits"

	"github.com/bits-and-blooms/bitset"

	"bsnode/internal/bserr"
	"bsnode/internal/store"
)

// bloomBitsPerBucket (m) and the derived hash-position count k, per §4.5.4.
const bloomBitsPerBucket = 32

func bloomPositions() int {
	return bits.Len(uint(bloomBitsPerBucket)) - 1 // floor(log2(m))
}

// SpendEvent is one traversed spender point: "iterate confirmed txs of each
// candidate block, then each tx's points" (§4.5.4). ScanCollisions only
// consumes the stream; SpendEvents below builds one from the tx table.
type SpendEvent struct {
	PointKey []byte
	Coinbase bool
}

// CollisionReport is the result of ScanCollisions.
type CollisionReport struct {
	// FillHistogram maps "fill frequency" -> "number of buckets with that
	// many records", one entry per scanned table.
	FillHistogram map[store.Name]map[int]int
	TotalInserts  uint64
	TotalFPs      uint64
	SpendInserts  uint64
	SpendFPs      uint64
}

func entropyHash(key []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return h.Sum32()
}

func bucketIndex(entropy uint32, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}
	return int(entropy) % numBuckets
}

// position derives the i-th of k bit positions within an m-bit bucket from
// the 32-bit entropy hash via simple additive mixing (double hashing).
func position(entropy uint32, i, m int) uint {
	mixed := entropy + uint32(i)*2654435761 // Knuth multiplicative constant
	return uint(mixed) % uint(m)
}

// screen tests whether all k bit positions derived from entropy are already
// set in bs, without mutating it — the pre-insertion false-positive check
// of §4.5.4.
func screen(bs *bitset.BitSet, entropy uint32, k, m int) (allSet bool) {
	allSet = true
	for i := 0; i < k; i++ {
		if !bs.Test(position(entropy, i, m)) {
			allSet = false
		}
	}
	return allSet
}

func insert(bs *bitset.BitSet, entropy uint32, k, m int) {
	for i := 0; i < k; i++ {
		bs.Set(position(entropy, i, m))
	}
}

// SpendEvents walks the tx table exactly as ScanSlabs does, decoding each
// slab's input count into one SpendEvent per spent point. The first input
// of the first transaction is treated as the coinbase's (absent) spend and
// marked accordingly; every other input is a real spend. Point keys are
// synthesized from the transaction's ordinal link and input index since the
// on-disk point-key layout is out of scope for this package.
func (s *Scanner) SpendEvents() ([]SpendEvent, error) {
	var events []SpendEvent
	link := store.Link(0)
	for {
		if s.canceled() {
			s.notice("spend_events canceled after %d records", link)
			return events, nil
		}
		rec, ok := s.Store.AppendAt(store.TableTx, link)
		if !ok {
			return events, nil
		}
		slab, err := DecodeTxSlab(rec)
		if err != nil {
			return events, fmt.Errorf("spend_events: %w", bserr.ErrIntegrity)
		}
		if slab.IsEnd() {
			return events, nil
		}
		for i := uint32(0); i < slab.Inputs; i++ {
			events = append(events, SpendEvent{
				PointKey: spendPointKey(link, i),
				Coinbase: link == 0 && i == 0,
			})
		}
		link++
	}
}

func spendPointKey(link store.Link, input uint32) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint64(key[:8], uint64(link))
	binary.BigEndian.PutUint32(key[8:], input)
	return key
}

// ScanCollisions implements §4.5.4: per-bucket fill-frequency distributions
// for header, tx and point tables, plus a bloom-filter false-positive-rate
// simulation over the real point-table insert stream. Vectors are sized
// from the live bucket count and released after each sub-scan (§9 "Large-
// vector allocations").
func (s *Scanner) ScanCollisions(spends []SpendEvent) (*CollisionReport, error) {
	report := &CollisionReport{FillHistogram: make(map[store.Name]map[int]int)}

	for _, target := range s.bucketTargets() {
		b := s.Store.Buckets(target.name)
		if b == 0 {
			continue
		}
		hist, err := s.histogramFor(target.name)
		if err != nil {
			return report, err
		}
		report.FillHistogram[target.name] = hist
	}

	numBuckets := s.Store.Buckets(store.TablePoint)
	if numBuckets == 0 || len(spends) == 0 {
		return report, nil
	}

	k := bloomPositions()
	buckets := make([]*bitset.BitSet, numBuckets)
	freq := s.freqPut()
	var windowInserts, windowFPs uint64

	for idx, ev := range spends {
		if s.canceled() {
			s.notice("scan_collisions canceled after %d inserts", idx)
			return report, nil
		}
		entropy := entropyHash(ev.PointKey)
		bi := bucketIndex(entropy, numBuckets)
		bs := buckets[bi]
		if bs == nil {
			bs = bitset.New(bloomBitsPerBucket)
			buckets[bi] = bs
		}

		fp := screen(bs, entropy, k, bloomBitsPerBucket)
		insert(bs, entropy, k, bloomBitsPerBucket)

		report.TotalInserts++
		windowInserts++
		if fp {
			report.TotalFPs++
			windowFPs++
		}
		if !ev.Coinbase {
			report.SpendInserts++
			if fp {
				report.SpendFPs++
			}
		}

		if (idx+1)%freq == 0 {
			var rate float64
			if windowInserts > 0 {
				rate = float64(windowFPs) / float64(windowInserts)
			}
			s.notice("scan_collisions window fp rate %.6f (%d/%d), cumulative %d/%d",
				rate, windowFPs, windowInserts, report.TotalFPs, report.TotalInserts)
			windowInserts, windowFPs = 0, 0
		}
	}
	return report, nil
}

func (s *Scanner) histogramFor(name store.Name) (map[int]int, error) {
	counts := s.Store.BucketFillCounts(name)
	hist := make(map[int]int, len(counts))
	for i, c := range counts {
		if s.canceled() {
			s.notice("scan_collisions canceled building histogram for %s at bucket %d", name, i)
			break
		}
		hist[c]++
	}
	return hist, nil
}
