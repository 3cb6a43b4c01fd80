//go:build !unix

package video

import "os/exec"

func detach(cmd *exec.Cmd) {}
