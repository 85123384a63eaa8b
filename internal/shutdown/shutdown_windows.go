//go:build windows

package shutdown

import "os"

// platformExtraSignal: SIGUSR2/SIGPWR have no Windows equivalent. Windows
// console control events (Ctrl-C, Ctrl-Break, close) and the session-end
// window message are delivered through os/signal's os.Interrupt mapping or,
// once a caller installs it, the console control handler of
// StartShutdownWindow (see window_windows.go), not through this hook.
func platformExtraSignal() os.Signal {
	return nil
}
