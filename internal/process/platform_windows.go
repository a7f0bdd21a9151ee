//go:build windows

package process

import "os/exec"

func setupProcessGroup(cmd *exec.Cmd) {}

// Windows has no SIGTERM; termination is immediate.
func signalTerminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func forceKill(cmd *exec.Cmd) error {
	return signalTerminate(cmd)
}
