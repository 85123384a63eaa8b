package store

// Kind distinguishes the two on-disk table shapes.
type Kind int

const (
	// Hashmap tables have a fixed bucket count (head) and a variable body
	// holding linked records addressed by bucket.
	Hashmap Kind = iota
	// Append tables are a monotonically growing record sequence addressed
	// by ordinal link.
	Append
)

// Name identifies one of the store's named tables.
type Name string

// The table set.
const (
	TableHeader      Name = "header"
	TableInput       Name = "input"
	TableOutput      Name = "output"
	TablePoint       Name = "point"
	TableIns         Name = "ins"
	TableOuts        Name = "outs"
	TableTx          Name = "tx"
	TableTxs         Name = "txs"
	TableCandidate   Name = "candidate"
	TableConfirmed   Name = "confirmed"
	TableStrongTx    Name = "strong_tx"
	TableDuplicate   Name = "duplicate"
	TablePrevout     Name = "prevout"
	TableValidatedBk Name = "validated_bk"
	TableValidatedTx Name = "validated_tx"
	TableFilterBk    Name = "filter_bk"
	TableFilterTx    Name = "filter_tx"
	TableAddress     Name = "address"
)

// schema lists every table and its kind, and is used to allocate the store's
// table set on create/open.
var schema = map[Name]Kind{
	TableHeader:      Hashmap,
	TableInput:       Append,
	TableOutput:      Append,
	TablePoint:       Hashmap,
	TableIns:         Append,
	TableOuts:        Append,
	TableTx:          Append,
	TableTxs:         Hashmap,
	TableCandidate:   Append,
	TableConfirmed:   Append,
	TableStrongTx:    Hashmap,
	TableDuplicate:   Hashmap,
	TablePrevout:     Hashmap,
	TableValidatedBk: Append,
	TableValidatedTx: Append,
	TableFilterBk:    Append,
	TableFilterTx:    Append,
	TableAddress:     Hashmap,
}

// Link is an ordinal record index; Terminal marks out-of-range/sentinel.
type Link int64

// Terminal is the out-of-range link sentinel.
const Terminal Link = -1

// IsTerminal reports whether l is the terminal sentinel.
func (l Link) IsTerminal() bool { return l < 0 }

// Record is an opaque, variable-length stored value. The on-disk record
// layout is explicitly out of scope; this is the abstract
// "fixed-size head / append-truncate body" shape these tables use.
type Record []byte

// bucketChain is a hashmap table bucket: a linked chain of records,
// represented as an ordered slice rather than a pointer chain for
// constant-time bucket-fill queries.
type bucketChain []Record

// hashmapTable is the in-process representation of a Hashmap-kind table.
type hashmapTable struct {
	buckets []bucketChain
}

func newHashmapTable(bucketCount int) *hashmapTable {
	return &hashmapTable{buckets: make([]bucketChain, bucketCount)}
}

func (t *hashmapTable) bucketCount() int { return len(t.buckets) }

func (t *hashmapTable) recordCount() int {
	n := 0
	for _, b := range t.buckets {
		n += len(b)
	}
	return n
}

func (t *hashmapTable) bodySize() int64 {
	var sz int64
	for _, b := range t.buckets {
		for _, r := range b {
			sz += int64(len(r))
		}
	}
	return sz
}

func (t *hashmapTable) put(bucket int, rec Record) {
	t.buckets[bucket] = append(t.buckets[bucket], rec)
}

// appendTable is the in-process representation of an Append-kind table.
type appendTable struct {
	records []Record
}

func (t *appendTable) recordCount() int { return len(t.records) }

func (t *appendTable) bodySize() int64 {
	var sz int64
	for _, r := range t.records {
		sz += int64(len(r))
	}
	return sz
}

func (t *appendTable) push(rec Record) Link {
	t.records = append(t.records, rec)
	return Link(len(t.records) - 1)
}

func (t *appendTable) at(l Link) (Record, bool) {
	if l.IsTerminal() || int(l) >= len(t.records) {
		return nil, false
	}
	return t.records[l], true
}
