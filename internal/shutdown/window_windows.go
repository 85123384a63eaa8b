//go:build windows

package shutdown

import (
	"golang.org/x/sys/windows"
)

// StartShutdownWindow installs a console control handler that forwards
// Ctrl-C, Ctrl-Break and close events through the same Stop path as POSIX
// signals, standing in for the invisible top-level window Windows uses to
// intercept session-end messages. It returns SetConsoleCtrlHandler's error;
// the non-platform signal path armed by Initialize does not depend on it.
// Nothing in this tree calls it, so the handler is only installed by a
// caller that does so explicitly.
func (c *Coordinator) StartShutdownWindow() error {
	return windows.SetConsoleCtrlHandler(windows.NewCallback(func(ctrlType uint32) uintptr {
		switch ctrlType {
		case windows.CTRL_C_EVENT, windows.CTRL_BREAK_EVENT, windows.CTRL_CLOSE_EVENT,
			windows.CTRL_LOGOFF_EVENT, windows.CTRL_SHUTDOWN_EVENT:
			c.Stop(None)
			return 1
		}
		return 0
	}), true)
}

// StopShutdownWindow removes the console control handler.
func (c *Coordinator) StopShutdownWindow() {
	windows.SetConsoleCtrlHandler(0, false)
}
