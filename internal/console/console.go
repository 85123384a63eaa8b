// Package console implements C3: a line-buffered stdin capture loop that
// dispatches single-letter tokens to toggles or bound option handlers.
package console

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// OptionHandler is bound to one of the fixed option letters.
type OptionHandler func()

// ToggleHandler flips a log-level toggle; ok reports whether that level is
// compiled in (if false, the console logs "not compiled" instead).
type ToggleHandler func(letter byte) (ok bool)

// Logger is the minimal sink the console writes through; satisfied by
// *logsink.Log via a small adapter in the executor.
type Logger interface {
	Printf(format string, args ...any)
}

// Capture runs the dedicated console worker.
type Capture struct {
	in         *bufio.Scanner
	log        Logger
	closeToken byte

	mu       sync.Mutex
	options  map[byte]OptionHandler
	toggle   ToggleHandler
	onClose  func()
	done     chan struct{}
}

// defaultOptionLetters lists the fixed option letters:
// b backup, c close, e errors, g go, h hold, i info, m menu, t test, w work,
// z zeroize.
var defaultOptionLetters = []byte("bcehgimtwz")

// New constructs a Capture reading from r, logging through log. closeToken
// is the letter that also doubles as the close command (default 'c').
func New(r io.Reader, log Logger, closeToken byte) *Capture {
	if closeToken == 0 {
		closeToken = 'c'
	}
	return &Capture{
		in:         bufio.NewScanner(r),
		log:        log,
		closeToken: closeToken,
		options:    make(map[byte]OptionHandler),
		done:       make(chan struct{}),
	}
}

// BindOption registers the handler invoked when letter is typed.
func (c *Capture) BindOption(letter byte, h OptionHandler) {
	c.mu.Lock()
	c.options[letter] = h
	c.mu.Unlock()
}

// BindToggle registers the handler for single-letter log-level toggles.
func (c *Capture) BindToggle(h ToggleHandler) {
	c.mu.Lock()
	c.toggle = h
	c.mu.Unlock()
}

// OnClose registers the completion handler fired once the stream ends or
// the close token is dispatched.
func (c *Capture) OnClose(h func()) {
	c.mu.Lock()
	c.onClose = h
	c.mu.Unlock()
}

var toggleLetters = map[byte]bool{
	'a': true, 'n': true, 's': true, 'p': true, 'x': true,
	'r': true, 'f': true, 'q': true, 'o': true, 'v': true,
}

// Run blocks reading lines until EOF or the close token is seen, dispatching
// each trimmed non-empty token. Intended to run on its own goroutine.
func (c *Capture) Run() {
	defer close(c.done)
	for c.in.Scan() {
		token := strings.TrimSpace(c.in.Text())
		if token == "" {
			continue
		}
		stop := c.dispatch(token)
		if stop {
			break
		}
	}
	c.mu.Lock()
	onClose := c.onClose
	c.mu.Unlock()
	if onClose != nil {
		onClose()
	}
}

// dispatch handles one token and returns true if the console should stop.
func (c *Capture) dispatch(token string) bool {
	if len(token) == 1 {
		letter := token[0]
		if toggleLetters[letter] {
			c.mu.Lock()
			toggle := c.toggle
			c.mu.Unlock()
			if toggle != nil && toggle(letter) {
				return false
			}
			c.log.Printf("not compiled")
			return false
		}
		c.mu.Lock()
		handler, known := c.options[letter]
		c.mu.Unlock()
		if known {
			handler()
			return letter == c.closeToken
		}
	}
	c.log.Printf("CONSOLE: %s", token)
	return false
}

// Done is closed once Run has returned.
func (c *Capture) Done() <-chan struct{} { return c.done }
