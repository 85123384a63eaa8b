package httpapi

import (
	"context"

	"bsnode/internal/bserr"
	"bsnode/internal/store"
)

// StoreQuerier is the subset of *store.Store the production Service needs
// to answer the grammar's height- and link-addressed queries.
type StoreQuerier interface {
	Records(name store.Name) int
	AppendAt(name store.Name, l store.Link) (store.Record, bool)
}

// Info is the payload MethodConfiguration returns.
type Info struct {
	Version string `json:"version"`
	Network string `json:"network"`
}

// StoreService is the production Service implementation: it answers C7's
// parsed queries by reading directly from the store facade, the same
// tables the C5 scans walk.
type StoreService struct {
	store StoreQuerier
	info  Info
}

// NewStoreService binds a StoreService to st, reporting info for
// MethodConfiguration.
func NewStoreService(st StoreQuerier, version, network string) *StoreService {
	return &StoreService{store: st, info: Info{Version: version, Network: network}}
}

// Query implements Service. Methods the store's record shapes don't carry
// enough information to answer (hash-addressed lookups that would require
// a reverse index the facade doesn't maintain) report not_implemented
// rather than a wrong answer.
func (s *StoreService) Query(_ context.Context, m Method, p Params) (Result, error) {
	switch m {
	case MethodConfiguration:
		return Result{JSON: s.info, JSONHint: 64, Allowed: []Encoding{EncodingJSON}}, nil
	case MethodTop:
		return s.queryTop()
	case MethodBlock, MethodBlockHeader:
		return s.queryBlockByHeight(p)
	default:
		return Result{}, bserr.ErrNotImplemented
	}
}

func (s *StoreService) queryTop() (Result, error) {
	n := s.store.Records(store.TableCandidate)
	if n == 0 {
		return Result{}, bserr.ErrNotFound
	}
	top := struct {
		Height uint32 `json:"height"`
	}{Height: uint32(n - 1)}
	return Result{JSON: top, JSONHint: 32, Allowed: []Encoding{EncodingJSON}}, nil
}

func (s *StoreService) queryBlockByHeight(p Params) (Result, error) {
	if !p.HaveHeight {
		return Result{}, bserr.ErrNotImplemented
	}
	rec, ok := s.store.AppendAt(store.TableCandidate, store.Link(p.Height))
	if !ok {
		return Result{}, bserr.ErrNotFound
	}
	return Result{Bytes: rec}, nil
}
