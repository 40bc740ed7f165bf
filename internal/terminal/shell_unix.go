//go:build !windows

package terminal

import (
	"context"
	"os/exec"
	"syscall"
)

// shellCommand builds a /bin/sh invocation in its own process group so a
// timeout kills the whole pipeline, not just the shell.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	return cmd
}
