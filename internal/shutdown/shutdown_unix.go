//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

// platformExtraSignal arms SIGUSR2 in addition to the common set. SIGPWR is
// not exposed as a syscall constant on every unix the sys package targets,
// so it is left unarmed here rather than risk a build that only compiles on
// some platforms.
func platformExtraSignal() os.Signal {
	return syscall.SIGUSR2
}
