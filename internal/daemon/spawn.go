package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Spawn starts `<self> daemon` as a detached process in its own session.
// The daemon writes its own log file, so no stdio is inherited.
func Spawn() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding executable path: %w", err)
	}

	cmd := exec.Command(exe, "daemon")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	return cmd.Process.Release()
}
