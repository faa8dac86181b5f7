//go:build !windows

package ajiasu

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Launch starts `ajiasu connect <label>` detached in its own session so it
// survives the launcher, writes the protocol to its stdin, and returns the
// child PID. The caller records the PID as its connection belief; the
// inventory remains authoritative.
func (c Client) Launch(label, protocol string) (int, error) {
	// #nosec G204 -- label is validated against the catalog by the caller
	cmd := exec.Command(c.Bin, ConnectSubcommand, label)
	cmd.Dir = c.BaseDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if c.Log.Dir != "" || c.Log.StdoutPath != "" || c.Log.StderrPath != "" {
		if c.Log.Dir != "" {
			_ = os.MkdirAll(c.Log.Dir, 0o750)
		}
		outW, errW, _ := c.Log.Writers(BinaryName)
		if outW != nil {
			cmd.Stdout = outW
		}
		if errW != nil {
			cmd.Stderr = errW
		}
	}
	if cmd.Stdout == nil {
		null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		cmd.Stdout = null
		cmd.Stderr = null
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("launch %s: %w", label, err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch %s: %w", label, err)
	}
	// Best effort: a client that ignores stdin still connects with its default.
	_, _ = stdin.Write([]byte(protocol + "\n"))
	_ = stdin.Close()

	pid := cmd.Process.Pid
	// Detach: the reaper loop collects the exit status, not cmd.Wait.
	_ = cmd.Process.Release()
	return pid, nil
}
