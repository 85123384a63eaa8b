// Package logsink implements C2: the rotating text log and the append-only
// event log, plus the subscriber shapes the executor wires them through.
package logsink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is one of the ten taxonomy levels.
type Level int

const (
	LevelApplication Level = iota
	LevelNews
	LevelSession
	LevelProtocol
	LevelProxy
	LevelRemote
	LevelFault
	LevelQuitting
	LevelObjects
	LevelVerbose
	levelCount
)

var levelNames = [levelCount]string{
	"application", "news", "session", "protocol", "proxy",
	"remote", "fault", "quitting", "objects", "verbose",
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// LogSubscriber is invoked per message; returning false unsubscribes.
type LogSubscriber func(err error, level Level, ts time.Time, text string) bool

// EventSubscriber is invoked per event; returning false unsubscribes.
type EventSubscriber func(err error, eventID string, value int64, elapsed time.Duration) bool

// Log is the rotating two-file text sink. Each file gets half
// of the configured byte budget; once a file's half-budget is reached, the
// writer rotates to the other file and truncates it before writing on.
type Log struct {
	mu       sync.Mutex
	logger   *logrus.Logger
	files    [2]*os.File
	sizes    [2]int64
	budget   int64 // per-file share
	active   int
	enabled  [levelCount]bool
	subs     []LogSubscriber
	complete chan struct{}
	once     sync.Once
}

// NewLog opens log_file1/log_file2 under dir, each capped at budgetBytes/2.
func NewLog(dir string, budgetBytes int64) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logsink: mkdir: %w", err)
	}
	l := &Log{
		logger:   logrus.New(),
		budget:   budgetBytes / 2,
		complete: make(chan struct{}),
	}
	for i, name := range []string{"log_file1", "log_file2"} {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logsink: open %s: %w", name, err)
		}
		fi, _ := f.Stat()
		if fi != nil {
			l.sizes[i] = fi.Size()
		}
		l.files[i] = f
	}
	l.logger.SetOutput(io.Discard) // writes are routed explicitly, see Write
	for i := range l.enabled {
		l.enabled[i] = true
	}
	return l, nil
}

// SetEnabled toggles whether messages at level are written to the sink.
func (l *Log) SetEnabled(level Level, on bool) {
	if level < 0 || int(level) >= len(l.enabled) {
		return
	}
	l.mu.Lock()
	l.enabled[level] = on
	l.mu.Unlock()
}

// Enabled reports the current toggle for level.
func (l *Log) Enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled[level]
}

// Subscribe registers a subscriber invoked on every accepted message.
func (l *Log) Subscribe(sub LogSubscriber) {
	l.mu.Lock()
	l.subs = append(l.subs, sub)
	l.mu.Unlock()
}

// Write emits a message at level if its toggle is on (a message with a
// nonzero err is emitted regardless of the toggle), fans it out to
// subscribers, and on a nonzero err writes the footer/terminator and
// fulfills Complete exactly once, after which no further message is
// accepted.
func (l *Log) Write(err error, level Level, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	select {
	case <-l.complete:
		return // sink already finalized; accepts no more messages
	default:
	}

	if !l.enabled[level] && err == nil {
		return
	}
	ts := time.Now()
	line := fmt.Sprintf("[%s] %s: %s\n", ts.Format(time.RFC3339Nano), level, text)
	l.writeLocked(line)

	surviving := l.subs[:0]
	for _, s := range l.subs {
		if s(err, level, ts, text) {
			surviving = append(surviving, s)
		}
	}
	l.subs = surviving

	if err != nil {
		l.writeLocked(fmt.Sprintf("[%s] %s: %s\n", time.Now().Format(time.RFC3339Nano), LevelApplication, "---footer---"))
		l.writeLocked("---terminator---\n")
		l.once.Do(func() { close(l.complete) })
	}
}

func (l *Log) writeLocked(s string) {
	f := l.files[l.active]
	n, werr := f.WriteString(s)
	if werr != nil {
		return
	}
	l.sizes[l.active] += int64(n)
	if l.sizes[l.active] >= l.budget {
		l.active = 1 - l.active
		if terr := l.files[l.active].Truncate(0); terr == nil {
			l.sizes[l.active] = 0
		}
	}
}

// Complete is fulfilled once the terminal footer has been buffered.
func (l *Log) Complete() <-chan struct{} { return l.complete }

// Stop forces the footer/terminator sequence if it has not already run,
// guaranteeing the footer is enqueued before the sink is torn down, then
// closes the underlying files.
func (l *Log) Stop() {
	l.Write(errSinkStopped, LevelApplication, "shutting down")
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.files {
		if f != nil {
			_ = f.Close()
		}
	}
}

var errSinkStopped = fmt.Errorf("logsink: stopped")

// Event is the single append-only event log: one line per
// event of the form "<event_name> <value> <elapsed_seconds>".
type Event struct {
	mu      sync.Mutex
	file    *os.File
	start   time.Time
	zl      *zap.Logger
	subs    []EventSubscriber
}

// NewEvent opens the event log file under dir.
func NewEvent(dir string) (*Event, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logsink: mkdir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "events.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logsink: open events.log: %w", err)
	}
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(f), zapcore.DebugLevel)
	return &Event{file: f, start: time.Now(), zl: zap.New(core)}, nil
}

// Subscribe registers a subscriber invoked on every event.
func (e *Event) Subscribe(sub EventSubscriber) {
	e.mu.Lock()
	e.subs = append(e.subs, sub)
	e.mu.Unlock()
}

// Emit writes one "<name> <value> <elapsed_seconds>" line and notifies
// subscribers, where elapsed is measured from construction of the sink.
func (e *Event) Emit(name string, value int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	elapsed := time.Since(e.start)
	e.zl.Info(fmt.Sprintf("%s %d %.6f", name, value, elapsed.Seconds()))

	surviving := e.subs[:0]
	for _, s := range e.subs {
		if s(nil, name, value, elapsed) {
			surviving = append(surviving, s)
		}
	}
	e.subs = surviving
}

// Close flushes and closes the event log.
func (e *Event) Close() error {
	_ = e.zl.Sync()
	return e.file.Close()
}
