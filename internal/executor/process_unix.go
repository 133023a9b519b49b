//go:build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the tool in its own process group so that
// timeouts and cancellation kill every process it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid addresses the whole group
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
