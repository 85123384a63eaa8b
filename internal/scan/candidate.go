package scan

import (
	"bytes"
	"encoding/gob"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// CandidateHeader is the decoded shape of a candidate header record: the
// fork-flag bitmask observed for a header at a given height. The on-disk
// record layout is out of scope; this is the abstract record this
// package's scans interpret.
type CandidateHeader struct {
	Height uint32
	Hash   chainhash.Hash
	Flags  uint32
}

// EncodeCandidateHeader serializes h for storage.
func EncodeCandidateHeader(h CandidateHeader) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(h)
	return buf.Bytes()
}

// DecodeCandidateHeader deserializes a stored candidate record.
func DecodeCandidateHeader(b []byte) (CandidateHeader, error) {
	var h CandidateHeader
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&h)
	return h, err
}

// TxSlab is the decoded shape of a tx-table record: the input/output
// counts ScanSlabs accumulates.
type TxSlab struct {
	Inputs  uint32
	Outputs uint32
}

// EncodeTxSlab serializes s for storage.
func EncodeTxSlab(s TxSlab) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

// DecodeTxSlab deserializes a stored tx-slab record.
func DecodeTxSlab(b []byte) (TxSlab, error) {
	var s TxSlab
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&s)
	return s, err
}

// IsEnd reports whether slab is the terminal all-zero sentinel scan_slabs
// stops on.
func (s TxSlab) IsEnd() bool { return s.Inputs == 0 && s.Outputs == 0 }
