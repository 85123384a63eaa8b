package executor

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"bsnode/internal/bserr"
	"bsnode/internal/node"
	"bsnode/internal/shutdown"
	"bsnode/internal/store"
	"bsnode/pkg/config"
)

// fakeStore is an in-memory StoreOpener double that records call order so
// tests can assert the executor's open-before-start / close-after-stop
// invariants without touching disk.
type fakeStore struct {
	mu    sync.Mutex
	calls []string

	openErr    error
	createErr  error
	restoreErr error

	checkErr error
}

func (f *fakeStore) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeStore) CheckStorePath(create bool) error {
	f.record("check")
	return f.checkErr
}

func (f *fakeStore) Create(store.ProgressFunc) error {
	f.record("create")
	return f.createErr
}

func (f *fakeStore) Open(store.ProgressFunc) error {
	f.record("open")
	return f.openErr
}

func (f *fakeStore) Restore(store.ProgressFunc) error {
	f.record("restore")
	return f.restoreErr
}

func (f *fakeStore) Close(store.ProgressFunc) error {
	f.record("close")
	return nil
}

func (f *fakeStore) Snapshot(store.ProgressFunc) error {
	f.record("snapshot")
	return nil
}

func (f *fakeStore) IsDirty() bool { return false }

func (f *fakeStore) Buckets(name store.Name) int { return 0 }
func (f *fakeStore) Records(name store.Name) int { return 0 }

func newStreams() (Streams, *strings.Builder) {
	var out strings.Builder
	return Streams{In: strings.NewReader(""), Out: &out, Err: io.Discard}, &out
}

func newExecutor(cfg *config.Config, st StoreOpener, stop *shutdown.Coordinator) (*Executor, *strings.Builder) {
	streams, out := newStreams()
	newNode := func(q node.QueryHandle, l node.Logger) node.Node { return node.NewStub(q, l) }
	return New(cfg, streams, stop, st, newNode), out
}

func TestDispatchPicksAlphabeticallyFirstShortForm(t *testing.T) {
	cfg := &config.Config{Help: true, Version: true}
	e, out := newExecutor(cfg, &fakeStore{}, shutdown.New())

	if code := e.Dispatch(); code != 0 {
		t.Fatalf("Dispatch() = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "usage:") {
		t.Fatalf("output = %q, want help text (h before v)", out.String())
	}
}

func TestDispatchHardwareOutranksHelp(t *testing.T) {
	cfg := &config.Config{Hardware: true, Help: true}
	e, out := newExecutor(cfg, &fakeStore{}, shutdown.New())

	if code := e.Dispatch(); code != 0 {
		t.Fatalf("Dispatch() = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "hardware:") {
		t.Fatalf("output = %q, want hardware text (d before h)", out.String())
	}
}

func TestDispatchBackupOutranksHardware(t *testing.T) {
	cfg := &config.Config{Backup: true, Hardware: true}
	fs := &fakeStore{}
	e, _ := newExecutor(cfg, fs, shutdown.New())

	if code := e.Dispatch(); code != 0 {
		t.Fatalf("Dispatch() = %d, want 0", code)
	}
	if len(fs.calls) == 0 || fs.calls[0] != "open" {
		t.Fatalf("calls = %v, want backup's open to run first (b before d)", fs.calls)
	}
}

func TestDispatchRunsTestModeOnNonZeroTestHash(t *testing.T) {
	hash := strings.Repeat("a", 64)
	cfg := &config.Config{Test: hash}
	fs := &fakeStore{}
	e, out := newExecutor(cfg, fs, shutdown.New())

	if code := e.Dispatch(); code != 0 {
		t.Fatalf("Dispatch() = %d, want 0", code)
	}
	if !strings.Contains(out.String(), hash) {
		t.Fatalf("output = %q, want test hash echoed", out.String())
	}
	if len(fs.calls) != 2 || fs.calls[0] != "open" || fs.calls[1] != "close" {
		t.Fatalf("calls = %v, want [open close]", fs.calls)
	}
}

func TestDispatchTreatsZeroHashAsNoTestMode(t *testing.T) {
	cfg := &config.Config{Test: config.ZeroHash}
	fs := &fakeStore{}
	e, _ := newExecutor(cfg, fs, shutdown.New())

	stop := e.stop
	go func() {
		time.Sleep(10 * time.Millisecond)
		stop.Stop(shutdown.None)
	}()
	stop.Initialize()
	defer stop.Uninitialize()

	code := e.Dispatch()
	if code != 0 {
		t.Fatalf("Dispatch() = %d, want 0", code)
	}
	if len(fs.calls) == 0 || fs.calls[0] != "open" {
		t.Fatalf("calls = %v, want run-mode (open first), zero hash should not trigger test mode", fs.calls)
	}
}

func TestRunModeOpensStoreFirstAndClosesItLast(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Dir = t.TempDir()
	fs := &fakeStore{}
	stop := shutdown.New()
	stop.Initialize()
	defer stop.Uninitialize()

	e, _ := newExecutor(cfg, fs, stop)

	done := make(chan int, 1)
	go func() { done <- e.Dispatch() }()

	time.Sleep(20 * time.Millisecond)
	stop.Stop(shutdown.None)

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("Dispatch() = %d, want 0", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch() did not return after stop signal")
	}

	fs.mu.Lock()
	calls := append([]string(nil), fs.calls...)
	fs.mu.Unlock()

	if len(calls) < 2 || calls[0] != "open" {
		t.Fatalf("calls = %v, want store opened before anything else", calls)
	}
	if calls[len(calls)-1] != "close" {
		t.Fatalf("calls = %v, want store closed last", calls)
	}
}

func TestOpenOrCreateStoreCreatesWhenPathMissing(t *testing.T) {
	fs := &fakeStore{openErr: errNotExist{}, checkErr: errNotExist{}}
	e, _ := newExecutor(&config.Config{}, fs, shutdown.New())

	if err := e.openOrCreateStore(); err != nil {
		t.Fatalf("openOrCreateStore: %v", err)
	}
	if len(fs.calls) != 3 || fs.calls[2] != "create" {
		t.Fatalf("calls = %v, want [open check create]", fs.calls)
	}
}

func TestOpenOrCreateStoreRestoresOnFlushLock(t *testing.T) {
	fs := &fakeStore{openErr: errFlushLock{}}
	e, _ := newExecutor(&config.Config{}, fs, shutdown.New())

	if err := e.openOrCreateStore(); err != nil {
		t.Fatalf("openOrCreateStore: %v", err)
	}
	if len(fs.calls) != 2 || fs.calls[1] != "restore" {
		t.Fatalf("calls = %v, want [open restore]", fs.calls)
	}
}

type errNotExist struct{}

func (errNotExist) Error() string { return "path does not exist" }

type errFlushLock struct{}

func (errFlushLock) Error() string { return "flush_lock present" }
func (errFlushLock) Unwrap() error { return bserr.ErrFlushLock }
