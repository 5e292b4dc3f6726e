//go:build !windows

package api

import (
	"os/exec"
	"syscall"
)

// detach moves the child into its own process group so a terminal
// interrupt aimed at us does not reach it
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
