// Package httpapi implements C7 (the path grammar parser) and C8 (the
// response builder), plus the router that wires them to the store.
package httpapi

import (
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"bsnode/internal/bserr"
)

// Method identifies one of the grammar's typed targets.
type Method int

const (
	MethodConfiguration Method = iota
	MethodTop
	MethodBlock
	MethodBlockHeader
	MethodBlockHeaderContext
	MethodBlockDetails
	MethodBlockTxs
	MethodBlockFilter
	MethodBlockFilterHash
	MethodBlockFilterHeader
	MethodBlockTx
	MethodTx
	MethodTxHeader
	MethodTxDetails
	MethodInputs
	MethodInput
	MethodInputScript
	MethodInputWitness
	MethodOutputs
	MethodOutput
	MethodOutputScript
	MethodOutputSpender
	MethodOutputSpenders
	MethodAddress
	MethodAddressConfirmed
	MethodAddressUnconfirmed
	MethodAddressBalance
)

var methodNames = map[Method]string{
	MethodConfiguration:      "configuration",
	MethodTop:                "top",
	MethodBlock:              "block",
	MethodBlockHeader:        "block_header",
	MethodBlockHeaderContext: "block_header_context",
	MethodBlockDetails:       "block_details",
	MethodBlockTxs:           "block_txs",
	MethodBlockFilter:        "block_filter",
	MethodBlockFilterHash:    "block_filter_hash",
	MethodBlockFilterHeader:  "block_filter_header",
	MethodBlockTx:            "block_tx",
	MethodTx:                 "tx",
	MethodTxHeader:           "tx_header",
	MethodTxDetails:          "tx_details",
	MethodInputs:             "inputs",
	MethodInput:              "input",
	MethodInputScript:        "input_script",
	MethodInputWitness:       "input_witness",
	MethodOutputs:            "outputs",
	MethodOutput:             "output",
	MethodOutputScript:       "output_script",
	MethodOutputSpender:      "output_spender",
	MethodOutputSpenders:     "output_spenders",
	MethodAddress:            "address",
	MethodAddressConfirmed:   "address_confirmed",
	MethodAddressUnconfirmed: "address_unconfirmed",
	MethodAddressBalance:     "address_balance",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}

// Params is the typed output parameter bag a parse produces. Unused fields are left at their zero
// value; which ones are meaningful is determined by Method.
type Params struct {
	Version    int
	Height     uint32
	HaveHeight bool
	Hash       chainhash.Hash
	HaveHash   bool
	FilterType string
	Position   uint32
	HavePos    bool
	Index      uint32
	HaveIndex  bool
}

// allowed filter-type tokens (§4.7's "{type}" under block_filter*).
var filterTypes = map[string]bool{"basic": true, "committed": true, "extended": true}

// Parse parses an HTTP request path into a Method and Params, or a
// taxonomy error from §7. The grammar is total: every input yields either
// a valid method or one of the named errors.
func Parse(path string) (Method, Params, error) {
	var p Params

	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segs := splitSegments(path)
	if len(segs) == 0 {
		return 0, p, bserr.ErrEmptyPath
	}

	version, err := parseVersion(segs[0])
	if err != nil {
		return 0, p, err
	}
	p.Version = version
	segs = segs[1:]

	if len(segs) == 0 {
		return 0, p, bserr.ErrMissingTarget
	}
	target := segs[0]
	segs = segs[1:]

	switch target {
	case "configuration":
		return terminal(MethodConfiguration, p, segs)
	case "top":
		return terminal(MethodTop, p, segs)
	case "block":
		return parseBlock(p, segs)
	case "tx":
		return parseTx(p, segs)
	case "input":
		return parseInOut(p, segs, false)
	case "output":
		return parseInOut(p, segs, true)
	case "address":
		return parseAddress(p, segs)
	default:
		return 0, p, bserr.ErrInvalidTarget
	}
}

// splitSegments normalizes consecutive/trailing separators by dropping
// empty segments produced by the split.
func splitSegments(path string) []string {
	parts := strings.Split(path, "/")
	segs := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// parseVersion validates "v<positive-decimal>" with no leading zero.
func parseVersion(seg string) (int, error) {
	if len(seg) == 0 || seg[0] != 'v' {
		return 0, bserr.ErrMissingVersion
	}
	digits := seg[1:]
	if len(digits) == 0 {
		return 0, bserr.ErrInvalidNumber
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, bserr.ErrInvalidNumber
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, bserr.ErrInvalidNumber
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, bserr.ErrInvalidNumber
	}
	return n, nil
}

func terminal(m Method, p Params, rest []string) (Method, Params, error) {
	if len(rest) > 0 {
		return 0, p, bserr.ErrExtraSegment
	}
	return m, p, nil
}

func parseHash(seg string) (chainhash.Hash, error) {
	var h chainhash.Hash
	if len(seg) != 64 {
		return h, bserr.ErrInvalidHash
	}
	decoded, err := chainhash.NewHashFromStr(seg)
	if err != nil {
		return h, bserr.ErrInvalidHash
	}
	return *decoded, nil
}

func parseUint(seg string) (uint32, error) {
	n, err := strconv.ParseUint(seg, 10, 32)
	if err != nil {
		return 0, bserr.ErrInvalidNumber
	}
	return uint32(n), nil
}

// parseBlock handles block/{component}/{value}[/{subcomponent}...].
func parseBlock(p Params, segs []string) (Method, Params, error) {
	if len(segs) == 0 {
		return 0, p, bserr.ErrMissingComponent
	}
	component := segs[0]
	segs = segs[1:]

	switch component {
	case "height":
		if len(segs) == 0 {
			return 0, p, bserr.ErrMissingHeight
		}
		h, err := parseUint(segs[0])
		if err != nil {
			return 0, p, err
		}
		p.Height, p.HaveHeight = h, true
		segs = segs[1:]
	case "hash":
		if len(segs) == 0 {
			return 0, p, bserr.ErrMissingHash
		}
		h, err := parseHash(segs[0])
		if err != nil {
			return 0, p, err
		}
		p.Hash, p.HaveHash = h, true
		segs = segs[1:]
	default:
		return 0, p, bserr.ErrInvalidComponent
	}

	if len(segs) == 0 {
		return MethodBlock, p, nil
	}
	sub := segs[0]
	segs = segs[1:]

	switch sub {
	case "header":
		if len(segs) > 0 && segs[0] == "context" {
			return terminal(MethodBlockHeaderContext, p, segs[1:])
		}
		return terminal(MethodBlockHeader, p, segs)
	case "details":
		return terminal(MethodBlockDetails, p, segs)
	case "txs":
		return terminal(MethodBlockTxs, p, segs)
	case "filter":
		return parseBlockFilter(p, segs)
	case "tx":
		if len(segs) == 0 {
			return 0, p, bserr.ErrMissingPosition
		}
		pos, err := parseUint(segs[0])
		if err != nil {
			return 0, p, err
		}
		p.Position, p.HavePos = pos, true
		return terminal(MethodBlockTx, p, segs[1:])
	default:
		return 0, p, bserr.ErrInvalidSubcomp
	}
}

func parseBlockFilter(p Params, segs []string) (Method, Params, error) {
	if len(segs) == 0 {
		return 0, p, bserr.ErrMissingIDType
	}
	ft := segs[0]
	if !filterTypes[ft] {
		return 0, p, bserr.ErrInvalidIDType
	}
	p.FilterType = ft
	segs = segs[1:]

	if len(segs) == 0 {
		return MethodBlockFilter, p, nil
	}
	switch segs[0] {
	case "hash":
		return terminal(MethodBlockFilterHash, p, segs[1:])
	case "header":
		return terminal(MethodBlockFilterHeader, p, segs[1:])
	default:
		return 0, p, bserr.ErrMissingTypeID
	}
}

// parseTx handles tx/{h32}[/header|details].
func parseTx(p Params, segs []string) (Method, Params, error) {
	if len(segs) == 0 {
		return 0, p, bserr.ErrMissingHash
	}
	h, err := parseHash(segs[0])
	if err != nil {
		return 0, p, err
	}
	p.Hash, p.HaveHash = h, true
	segs = segs[1:]

	if len(segs) == 0 {
		return MethodTx, p, nil
	}
	switch segs[0] {
	case "header":
		return terminal(MethodTxHeader, p, segs[1:])
	case "details":
		return terminal(MethodTxDetails, p, segs[1:])
	default:
		return 0, p, bserr.ErrInvalidSubcomp
	}
}

// parseInOut handles input|output families: {h32}[/{index}[/script|witness|
// spender|spenders]].
func parseInOut(p Params, segs []string, isOutput bool) (Method, Params, error) {
	if len(segs) == 0 {
		return 0, p, bserr.ErrMissingHash
	}
	h, err := parseHash(segs[0])
	if err != nil {
		return 0, p, err
	}
	p.Hash, p.HaveHash = h, true
	segs = segs[1:]

	listMethod, itemMethod := MethodInputs, MethodInput
	if isOutput {
		listMethod, itemMethod = MethodOutputs, MethodOutput
	}
	if len(segs) == 0 {
		return listMethod, p, nil
	}

	idx, err := parseUint(segs[0])
	if err != nil {
		return 0, p, err
	}
	p.Index, p.HaveIndex = idx, true
	segs = segs[1:]

	if len(segs) == 0 {
		return itemMethod, p, nil
	}
	if !isOutput {
		switch segs[0] {
		case "script":
			return terminal(MethodInputScript, p, segs[1:])
		case "witness":
			return terminal(MethodInputWitness, p, segs[1:])
		default:
			return 0, p, bserr.ErrInvalidSubcomp
		}
	}
	switch segs[0] {
	case "script":
		return terminal(MethodOutputScript, p, segs[1:])
	case "spender":
		return terminal(MethodOutputSpender, p, segs[1:])
	case "spenders":
		return terminal(MethodOutputSpenders, p, segs[1:])
	default:
		return 0, p, bserr.ErrInvalidSubcomp
	}
}

// parseAddress handles address/{h32}[/confirmed|unconfirmed|balance].
func parseAddress(p Params, segs []string) (Method, Params, error) {
	if len(segs) == 0 {
		return 0, p, bserr.ErrMissingHash
	}
	h, err := parseHash(segs[0])
	if err != nil {
		return 0, p, err
	}
	p.Hash, p.HaveHash = h, true
	segs = segs[1:]

	if len(segs) == 0 {
		return MethodAddress, p, nil
	}
	switch segs[0] {
	case "confirmed":
		return terminal(MethodAddressConfirmed, p, segs[1:])
	case "unconfirmed":
		return terminal(MethodAddressUnconfirmed, p, segs[1:])
	case "balance":
		return terminal(MethodAddressBalance, p, segs[1:])
	default:
		return 0, p, bserr.ErrInvalidSubcomp
	}
}
