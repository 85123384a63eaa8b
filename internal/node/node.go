// Package node is the thin external-collaborator seam between the executor
// and the P2P/validator core. The real core is out of scope for this tree
// (it is treated as an external collaborator); this package defines the
// minimal interface the executor needs and a stub implementation good
// enough to make the executor's ordering invariants independently
// testable without a real network stack.
package node

import (
	"sync"

	"bsnode/internal/store"
)

// ConnectNotifier is invoked whenever a peer connection is established.
type ConnectNotifier func(peerAddr string)

// CloseNotifier is invoked once, when the node has fully stopped and its
// thread pool has joined.
type CloseNotifier func()

// QueryHandle is the read-only store surface the node needs to answer its
// own peer-facing queries; it is the same handle the HTTP dispatcher reads
// through.
type QueryHandle interface {
	Buckets(name store.Name) int
	Records(name store.Name) int
}

// Logger is the minimal sink the node writes through.
type Logger interface {
	Printf(format string, args ...any)
}

// Node is the interface the executor depends on.
// Start begins network activity; Close blocks until the node's internal
// thread pool has joined. Close must be idempotent.
type Node interface {
	Start() error
	Close() error
	SubscribeConnect(ConnectNotifier)
	SubscribeClose(CloseNotifier)
}

// Stub is an in-repo Node implementation with no real transport: it
// tracks Start/Close calls and fires the close notifier synchronously from
// Close, so tests can assert executor ordering without a socket.
type Stub struct {
	query QueryHandle
	log   Logger

	mu        sync.Mutex
	started   bool
	closed    bool
	connSubs  []ConnectNotifier
	closeSubs []CloseNotifier
}

// NewStub constructs a Stub bound to query and log, matching the
// "(query, config, log)" construction the executor performs.
func NewStub(query QueryHandle, log Logger) *Stub {
	return &Stub{query: query, log: log}
}

// Start marks the node as running and logs the transition. Calling it on a
// node that is already started is a no-op that returns nil.
func (s *Stub) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	if s.log != nil {
		s.log.Printf("node: started")
	}
	return nil
}

// Close idempotently stops the node, firing every registered close
// notifier exactly once, then returns.
func (s *Stub) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.closeSubs
	s.mu.Unlock()

	if s.log != nil {
		s.log.Printf("node: closing")
	}
	for _, sub := range subs {
		sub()
	}
	return nil
}

// SubscribeConnect registers a peer-connect notifier.
func (s *Stub) SubscribeConnect(n ConnectNotifier) {
	s.mu.Lock()
	s.connSubs = append(s.connSubs, n)
	s.mu.Unlock()
}

// SubscribeClose registers a close notifier.
func (s *Stub) SubscribeClose(n CloseNotifier) {
	s.mu.Lock()
	s.closeSubs = append(s.closeSubs, n)
	s.mu.Unlock()
}

// SimulateConnect lets tests and the stub's own diagnostics fire the
// connect notifiers as if a peer had dialed in.
func (s *Stub) SimulateConnect(peerAddr string) {
	s.mu.Lock()
	subs := s.connSubs
	s.mu.Unlock()
	for _, sub := range subs {
		sub(peerAddr)
	}
}

// Started reports whether Start has been called.
func (s *Stub) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Closed reports whether Close has completed.
func (s *Stub) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
