package shutdown

import (
	"sync"
	"testing"
	"time"
)

func TestStopIsIdempotentAndVisibleEverywhere(t *testing.T) {
	c := New()
	c.Initialize()
	defer c.Uninitialize()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Stop(None)
		}()
	}
	wg.Wait()

	select {
	case <-c.Stopping():
	case <-time.After(2 * time.Second):
		t.Fatal("stopping event never fulfilled")
	}

	for i := 0; i < 8; i++ {
		if !c.Canceled() {
			t.Fatal("canceled() false after stop latched")
		}
	}

	// A further Stop with a different value must not change the latched one.
	c.Stop(99)
	if c.Signal() != None {
		t.Fatalf("signal overwritten: got %d, want %d", c.Signal(), None)
	}
}

func TestWaitForStoppingUnblocksOnStop(t *testing.T) {
	c := New()
	c.Initialize()
	defer c.Uninitialize()

	done := make(chan struct{})
	go func() {
		c.WaitForStopping()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitForStopping returned before any stop")
	case <-time.After(50 * time.Millisecond):
	}

	c.Stop(None)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForStopping did not unblock after stop")
	}
}

func TestCanceledBeforeInitialize(t *testing.T) {
	c := New()
	if c.Canceled() {
		t.Fatal("canceled() true before any stop")
	}
}
