//go:build !windows

package shutdown

// StartShutdownWindow is a no-op on platforms without a desktop session
// message loop. Omitting the platform
// shutdown window where it is not needed is not a functional regression:
// the signal path above remains fully functional.
func (c *Coordinator) StartShutdownWindow() error { return nil }

// StopShutdownWindow is the matching no-op teardown.
func (c *Coordinator) StopShutdownWindow() {}
