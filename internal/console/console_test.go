package console

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeLogger struct {
	lines []string
}

func (f *fakeLogger) Printf(format string, args ...any) {
	f.lines = append(f.lines, fmt.Sprintf(format, args...))
}

func TestDispatchesBoundOption(t *testing.T) {
	r := strings.NewReader("i\n")
	log := &fakeLogger{}
	c := New(r, log, 'c')

	called := false
	c.BindOption('i', func() { called = true })

	closedCh := make(chan struct{})
	c.OnClose(func() { close(closedCh) })

	go c.Run()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("console never finished reading EOF")
	}
	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("onClose never invoked")
	}
	if !called {
		t.Fatal("bound option handler never invoked")
	}
}

func TestCloseTokenStopsReading(t *testing.T) {
	r := strings.NewReader("c\nunreached\n")
	log := &fakeLogger{}
	c := New(r, log, 'c')

	var sawUnreached bool
	c.BindOption('c', func() {})

	go c.Run()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("console never stopped on close token")
	}
	for _, msg := range log.lines {
		if strings.Contains(msg, "unreached") {
			sawUnreached = true
		}
	}
	if sawUnreached {
		t.Fatal("console processed tokens after the close token")
	}
}

func TestUnknownTokenLoggedWithPrefix(t *testing.T) {
	r := strings.NewReader("zzz\n")
	log := &fakeLogger{}
	c := New(r, log, 'c')

	go c.Run()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("console never finished")
	}

	found := false
	for _, msg := range log.lines {
		if strings.HasPrefix(msg, "CONSOLE:") {
			found = true
		}
	}
	if !found {
		t.Fatal("unknown token was not logged with CONSOLE: prefix")
	}
}

func TestToggleNotCompiledWhenRejected(t *testing.T) {
	r := strings.NewReader("a\n")
	log := &fakeLogger{}
	c := New(r, log, 'c')
	c.BindToggle(func(letter byte) bool { return false })

	go c.Run()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("console never finished")
	}

	found := false
	for _, msg := range log.lines {
		if msg == "not compiled" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected 'not compiled' message for rejected toggle")
	}
}
