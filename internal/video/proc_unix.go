//go:build unix

package video

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in its own process group, out of reach of terminal
// signals sent to the foreground group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
