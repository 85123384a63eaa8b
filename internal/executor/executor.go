// Package executor implements C9: the process-wide run-mode dispatcher
// that owns the store, the node collaborator, the log/event sinks and the
// console capture, and drives orderly startup and shutdown.
package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"bsnode/internal/bserr"
	"bsnode/internal/console"
	"bsnode/internal/httpapi"
	"bsnode/internal/logsink"
	"bsnode/internal/node"
	"bsnode/internal/scan"
	"bsnode/internal/shutdown"
	"bsnode/internal/store"
	"bsnode/pkg/config"
)

// Streams bundles the three I/O streams the executor is constructed with.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StoreOpener is the subset of *store.Store the executor drives through
// run-mode startup and subcommand handlers.
type StoreOpener interface {
	CheckStorePath(create bool) error
	Create(store.ProgressFunc) error
	Open(store.ProgressFunc) error
	Restore(store.ProgressFunc) error
	Close(store.ProgressFunc) error
	Snapshot(store.ProgressFunc) error
	IsDirty() bool
}

// NodeFactory constructs the node collaborator from the store's query
// handle and the log sink, matching "construct the node from (query,
// config, log)".
type NodeFactory func(query node.QueryHandle, log node.Logger) node.Node

// Executor is the C9 singleton: constructed once in main and passed by
// reference.
type Executor struct {
	cfg     *config.Config
	streams Streams
	stop    *shutdown.Coordinator
	store   StoreOpener
	newNode NodeFactory

	log   *logsink.Log
	event *logsink.Event
	node  node.Node
}

// New constructs an Executor. newNode is a factory rather than a concrete
// value so tests can supply node.NewStub without a real P2P stack.
func New(cfg *config.Config, streams Streams, stop *shutdown.Coordinator, st StoreOpener, newNode NodeFactory) *Executor {
	return &Executor{cfg: cfg, streams: streams, stop: stop, store: st, newNode: newNode}
}

// subcommandEntry names one alphabetical-short-form run-mode handler.
type subcommandEntry struct {
	enabled func(*config.Config) bool
	handler func(*Executor) bool
}

// subcommandOrder is fixed: a,b,d,f,h,i,k,l,n,r,s,v — alphabetical by the
// CLI short form.
var subcommandOrder = []subcommandEntry{
	{func(c *config.Config) bool { return c.Slabs }, (*Executor).runSlabs},
	{func(c *config.Config) bool { return c.Backup }, (*Executor).runBackup},
	{func(c *config.Config) bool { return c.Hardware }, (*Executor).runHardware},
	{func(c *config.Config) bool { return c.Flags }, (*Executor).runFlags},
	{func(c *config.Config) bool { return c.Help }, (*Executor).runHelp},
	{func(c *config.Config) bool { return c.Information }, (*Executor).runInformation},
	{func(c *config.Config) bool { return c.Buckets }, (*Executor).runBuckets},
	{func(c *config.Config) bool { return c.Collisions }, (*Executor).runCollisions},
	{func(c *config.Config) bool { return c.NewStore }, (*Executor).runNewStore},
	{func(c *config.Config) bool { return c.Restore }, (*Executor).runRestore},
	{func(c *config.Config) bool { return c.Settings }, (*Executor).runSettings},
	{func(c *config.Config) bool { return c.Version }, (*Executor).runVersion},
}

// Dispatch chooses the run mode and executes it. It returns
// the process exit code: 0 on success, -1 on failure.
func (e *Executor) Dispatch() int {
	for _, entry := range subcommandOrder {
		if entry.enabled(e.cfg) {
			if entry.handler(e) {
				return 0
			}
			return -1
		}
	}
	if e.cfg.Test != "" && e.cfg.Test != config.ZeroHash {
		return e.runTestMode(e.cfg.Test, false)
	}
	if e.cfg.Write != "" && e.cfg.Write != config.ZeroHash {
		return e.runTestMode(e.cfg.Write, true)
	}
	return e.runRunMode()
}

func (e *Executor) printf(format string, args ...any) {
	fmt.Fprintf(e.streams.Out, format, args...)
}

func (e *Executor) runHelp() bool {
	e.printf("usage: bsnode [flags] <config-file>\n")
	return true
}

func (e *Executor) runVersion() bool {
	e.printf("bsnode %s\n", config.Version)
	return true
}

func (e *Executor) runHardware() bool {
	e.printf("hardware: %d logical cpus configured concurrency\n", e.cfg.Node.MaxConcurrency)
	return true
}

// runSettings prints the fully resolved configuration as YAML, the same
// shape operators hand-author for the config file.
func (e *Executor) runSettings() bool {
	out, err := yaml.Marshal(e.cfg)
	if err != nil {
		e.printf("settings: %v\n", err)
		return false
	}
	e.printf("%s", out)
	return true
}

func (e *Executor) runNewStore() bool {
	if err := e.store.Create(e.progressLogger()); err != nil {
		e.printf("newstore: %v\n", err)
		return false
	}
	e.printf("newstore: created\n")
	return true
}

func (e *Executor) runBackup() bool {
	if err := e.store.Open(e.progressLogger()); err != nil {
		e.printf("backup: %v\n", err)
		return false
	}
	defer func() { _ = e.store.Close(nil) }()
	if err := e.store.Snapshot(e.progressLogger()); err != nil {
		e.printf("backup: %v\n", err)
		return false
	}
	e.printf("backup: snapshot complete\n")
	return true
}

func (e *Executor) runRestore() bool {
	if err := e.store.Restore(e.progressLogger()); err != nil {
		e.printf("restore: %v\n", err)
		return false
	}
	e.printf("restore: complete\n")
	return true
}

func (e *Executor) runFlags() bool {
	sc, err := e.openScannerForSubcommand()
	if err != nil {
		e.printf("flags: %v\n", err)
		return false
	}
	defer func() { _ = e.store.Close(nil) }()
	if err := sc.ScanFlags(); err != nil {
		e.printf("flags: %v\n", err)
		return false
	}
	return true
}

func (e *Executor) runSlabs() bool {
	sc, err := e.openScannerForSubcommand()
	if err != nil {
		e.printf("slabs: %v\n", err)
		return false
	}
	defer func() { _ = e.store.Close(nil) }()
	in, out, err := sc.ScanSlabs()
	if err != nil {
		e.printf("slabs: %v\n", err)
		return false
	}
	e.printf("slabs: inputs=%d outputs=%d\n", in, out)
	return true
}

func (e *Executor) runBuckets() bool {
	sc, err := e.openScannerForSubcommand()
	if err != nil {
		e.printf("buckets: %v\n", err)
		return false
	}
	defer func() { _ = e.store.Close(nil) }()
	results, err := sc.ScanBuckets()
	if err != nil {
		e.printf("buckets: %v\n", err)
		return false
	}
	for _, r := range results {
		e.printf("%s: %d/%d filled (%.4f)\n", r.Table, r.Filled, r.BucketsLen, r.FillRatio())
	}
	return true
}

func (e *Executor) runCollisions() bool {
	sc, err := e.openScannerForSubcommand()
	if err != nil {
		e.printf("collisions: %v\n", err)
		return false
	}
	defer func() { _ = e.store.Close(nil) }()
	spends, err := sc.SpendEvents()
	if err != nil {
		e.printf("collisions: %v\n", err)
		return false
	}
	report, err := sc.ScanCollisions(spends)
	if err != nil {
		e.printf("collisions: %v\n", err)
		return false
	}
	e.printf("collisions: inserts=%d false_positives=%d\n", report.TotalInserts, report.TotalFPs)
	return true
}

func (e *Executor) runInformation() bool {
	e.printf("bsnode %s, network=%s\n", config.Version, e.cfg.Bitcoin.Network)
	if err := e.store.Open(nil); err != nil {
		e.printf("store: %v\n", err)
		return true
	}
	defer func() { _ = e.store.Close(nil) }()
	e.printf("store: dirty=%v\n", e.store.IsDirty())
	return true
}

// openScannerForSubcommand opens the store and constructs the diagnostic
// Scanner the read-only subcommands use. It is called once per subcommand;
// a second Open in the same process fails with flush_lock.
func (e *Executor) openScannerForSubcommand() (*scan.Scanner, error) {
	if err := e.store.Open(nil); err != nil {
		return nil, err
	}
	st, ok := e.store.(scan.StoreReader)
	if !ok {
		return nil, fmt.Errorf("executor: store does not implement scan.StoreReader")
	}
	return scan.New(st, e.stop, consolePrinter{e.streams.Out}), nil
}

type consolePrinter struct{ w io.Writer }

func (c consolePrinter) Printf(format string, args ...any) { fmt.Fprintf(c.w, format, args...) }

// runTestMode opens the store, echoes the hash and the write flag, closes
// the store and reports success. Read and write tests use the same Open
// (there is no read-only mode), and no test hook runs beyond the echo.
func (e *Executor) runTestMode(hash string, write bool) int {
	if err := e.store.Open(nil); err != nil {
		e.printf("test: open: %v\n", err)
		return -1
	}
	defer func() { _ = e.store.Close(nil) }()
	e.printf("test: hash=%s write=%v\n", hash, write)
	return 0
}

// runRunMode drives full startup, run, shutdown.
func (e *Executor) runRunMode() int {
	e.log, e.event = e.startSinks()
	defer func() {
		if e.event != nil {
			_ = e.event.Close()
		}
	}()
	if e.log != nil {
		e.log.Subscribe(func(_ error, level logsink.Level, _ time.Time, text string) bool {
			e.printf("%s: %s\n", level, text)
			return true
		})
	}

	closeKey := e.consoleCloseKey()
	capture := console.New(e.streams.In, consolePrinter{e.streams.Out}, closeKey)
	stopFromConsole := func() { e.stop.Stop(shutdown.None) }
	capture.BindOption('c', stopFromConsole)
	capture.BindOption(closeKey, stopFromConsole)
	capture.BindToggle(e.toggleLevel)
	go capture.Run()

	e.logStatus(logsink.LevelApplication, "--- startup ---")

	if err := e.openOrCreateStore(); err != nil {
		e.logError(logsink.LevelFault, err, "run")
		return -1
	}

	e.logStatus(logsink.LevelApplication, "version=%s", config.Version)
	e.logStatus(logsink.LevelApplication, "hardware: max_concurrency=%d", e.cfg.Node.MaxConcurrency)

	httpServer := e.startHTTPServer()

	querier, _ := e.store.(node.QueryHandle)
	e.node = e.newNode(querier, consolePrinter{e.streams.Out})
	e.node.SubscribeConnect(func(addr string) { e.logStatus(logsink.LevelSession, "peer connected: %s", addr) })
	e.node.SubscribeClose(func() { e.logStatus(logsink.LevelSession, "node closed") })
	if err := e.node.Start(); err != nil {
		e.logError(logsink.LevelFault, err, "run: node start")
		e.stopHTTPServer(httpServer)
		return -1
	}

	e.stop.WaitForStopping()
	e.logStatus(logsink.LevelApplication, "--- stopping ---")

	e.stopHTTPServer(httpServer)
	code := 0
	if err := e.node.Close(); err != nil {
		e.logError(logsink.LevelFault, err, "run: node close")
		code = -1
	}
	if err := e.store.Close(nil); err != nil {
		e.logError(logsink.LevelFault, err, "run: store close")
		code = -1
	}
	if e.log != nil {
		e.log.Stop()
		<-e.log.Complete()
	}
	return code
}

// logStatus records a non-fatal run-mode message through the log sink,
// falling back to direct console output when the sink failed to start.
func (e *Executor) logStatus(level logsink.Level, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if e.log != nil {
		e.log.Write(nil, level, text)
		return
	}
	e.printf("%s\n", text)
}

// logError records a run-mode failure through the log sink. A non-nil err
// passed to Log.Write finalizes the sink's footer/terminator sequence, which
// is appropriate here since every logError call site aborts or is already
// tearing down run-mode.
func (e *Executor) logError(level logsink.Level, err error, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if e.log != nil {
		e.log.Write(err, level, text)
		return
	}
	e.printf("%s: %v\n", text, err)
}

// toggleLevel maps a console toggle letter to one of the ten log levels and
// flips it, matching the order of the Level enum: a,n,s,p,x,r,f,q,o,v.
func (e *Executor) toggleLevel(letter byte) bool {
	level, ok := consoleToggleLevels[letter]
	if !ok || e.log == nil {
		return false
	}
	e.log.SetEnabled(level, !e.log.Enabled(level))
	return true
}

var consoleToggleLevels = map[byte]logsink.Level{
	'a': logsink.LevelApplication,
	'n': logsink.LevelNews,
	's': logsink.LevelSession,
	'p': logsink.LevelProtocol,
	'x': logsink.LevelProxy,
	'r': logsink.LevelRemote,
	'f': logsink.LevelFault,
	'q': logsink.LevelQuitting,
	'o': logsink.LevelObjects,
	'v': logsink.LevelVerbose,
}

// startHTTPServer mounts the C7/C8 query surface over the open store and
// starts serving on cfg.Server.HTTPAddr. A blank address disables the HTTP
// surface entirely (used by tests that construct a bare Config). The store
// must already be open.
func (e *Executor) startHTTPServer() *http.Server {
	addr := e.cfg.Server.HTTPAddr
	if addr == "" {
		return nil
	}
	querier, ok := e.store.(httpapi.StoreQuerier)
	if !ok {
		e.logStatus(logsink.LevelFault, "run: http: executor: store does not implement httpapi.StoreQuerier")
		return nil
	}
	svc := httpapi.NewStoreService(querier, config.Version, e.cfg.Bitcoin.Network)
	router := httpapi.NewRouter(svc, consolePrinter{e.streams.Out})
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logStatus(logsink.LevelFault, "run: http serve: %v", err)
		}
	}()
	e.logStatus(logsink.LevelApplication, "http: listening on %s", addr)
	return srv
}

// stopHTTPServer gracefully shuts down srv, allowing in-flight requests up
// to 5 seconds to complete. A nil srv (HTTP surface disabled) is a no-op.
func (e *Executor) stopHTTPServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		e.logError(logsink.LevelFault, err, "run: http shutdown")
	}
}

// openOrCreateStore opens an existing store,
// attempt restore on flush_lock, create if none exists.
func (e *Executor) openOrCreateStore() error {
	err := e.store.Open(nil)
	if err == nil {
		return nil
	}
	if bserr.Is(err, bserr.ErrFlushLock) {
		return e.store.Restore(nil)
	}
	if err := e.store.CheckStorePath(false); err != nil {
		return e.store.Create(nil)
	}
	return err
}

func (e *Executor) startSinks() (*logsink.Log, *logsink.Event) {
	logDir := e.cfg.Log.Dir
	l, err := logsink.NewLog(logDir, e.cfg.Log.BudgetBytes)
	if err != nil {
		e.printf("run: log sink: %v\n", err)
		return nil, nil
	}
	ev, err := logsink.NewEvent(logDir)
	if err != nil {
		e.printf("run: event sink: %v\n", err)
		return l, nil
	}
	return l, ev
}

// consoleCloseKey returns the configured console close key, falling back
// to 'c' for a Config constructed without going through defaults().
func (e *Executor) consoleCloseKey() byte {
	if e.cfg.Server.ConsoleCloseKey == "" {
		return 'c'
	}
	return e.cfg.Server.ConsoleCloseKey[0]
}

func (e *Executor) progressLogger() store.ProgressFunc {
	return func(eventID string, table store.Name) {
		e.printf("%s: %s\n", eventID, table)
	}
}
