//go:build windows

package executor

import "os/exec"

// configureProcess keeps the default behavior: the context kills the tool
// process itself.
func configureProcess(cmd *exec.Cmd) {}
