//go:build unix

package aprconf

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// killGroup places the child in its own process group so that a timed
// out test program is killed together with anything it forked.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}
