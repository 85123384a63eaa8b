package node

import "testing"

func TestStartIsIdempotent(t *testing.T) {
	s := NewStub(nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !s.Started() {
		t.Fatal("Started() = false after Start")
	}
}

func TestCloseFiresNotifiersOnce(t *testing.T) {
	s := NewStub(nil, nil)
	_ = s.Start()

	calls := 0
	s.SubscribeClose(func() { calls++ })

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if calls != 1 {
		t.Fatalf("close notifier fired %d times, want 1", calls)
	}
	if !s.Closed() {
		t.Fatal("Closed() = false after Close")
	}
}

func TestSubscribeConnectFiresOnSimulate(t *testing.T) {
	s := NewStub(nil, nil)
	var got string
	s.SubscribeConnect(func(addr string) { got = addr })
	s.SimulateConnect("127.0.0.1:8333")
	if got != "127.0.0.1:8333" {
		t.Fatalf("connect notifier addr = %q, want 127.0.0.1:8333", got)
	}
}
