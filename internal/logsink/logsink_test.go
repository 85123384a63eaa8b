package logsink

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogRespectsLevelToggle(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLog(dir, 4096)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	defer l.Stop()

	l.SetEnabled(LevelVerbose, false)
	l.Write(nil, LevelVerbose, "should be dropped")
	l.SetEnabled(LevelVerbose, true)
	l.Write(nil, LevelVerbose, "should land")

	b, err := os.ReadFile(filepath.Join(dir, "log_file1"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(b), "should be dropped") {
		t.Error("message written while level disabled")
	}
	if !strings.Contains(string(b), "should land") {
		t.Error("message missing while level enabled")
	}
}

func TestLogFooterOnError(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLog(dir, 4096)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}

	fired := false
	l.Subscribe(func(err error, _ Level, _ time.Time, _ string) bool {
		if err != nil {
			fired = true
			return false
		}
		return true
	})

	l.Write(errors.New("boom"), LevelFault, "fatal condition")

	select {
	case <-l.Complete():
	default:
		t.Fatal("Complete() not fulfilled after nonzero-error write")
	}
	if !fired {
		t.Fatal("subscriber never observed the error")
	}

	// Sink must accept no more messages after Complete.
	l.Write(nil, LevelApplication, "post-completion")
	b, _ := os.ReadFile(filepath.Join(dir, "log_file1"))
	if strings.Contains(string(b), "post-completion") {
		t.Error("message accepted after Complete fulfilled")
	}
}

func TestEventEmitsLine(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEvent(dir)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	defer e.Close()

	var got string
	e.Subscribe(func(_ error, name string, _ int64, _ time.Duration) bool {
		got = name
		return true
	})
	e.Emit("header_synced", 123)
	if got != "header_synced" {
		t.Fatalf("subscriber not invoked with expected event name, got %q", got)
	}

	b, err := os.ReadFile(filepath.Join(dir, "events.log"))
	if err != nil {
		t.Fatalf("read events.log: %v", err)
	}
	if !strings.Contains(string(b), "header_synced 123") {
		t.Errorf("unexpected event line: %q", string(b))
	}
}
