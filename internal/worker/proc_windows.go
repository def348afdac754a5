//go:build windows

package worker

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessTree(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
