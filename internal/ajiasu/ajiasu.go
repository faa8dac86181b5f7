// Package ajiasu wraps the external VPN client binary: discovery on disk,
// availability checks, and the list/connect/disconnect invocations. The
// client's own protocol and tunnel behavior are opaque to the supervisor.
package ajiasu

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/loykin/ajiasud/internal/logger"
)

const (
	// BinaryName is the base name of the managed executable.
	BinaryName = "ajiasu"
	// ConnectSubcommand starts a connection; its presence as the second
	// token is what marks a process as managed.
	ConnectSubcommand = "connect"

	ListTimeout       = 120 * time.Second
	DisconnectTimeout = 15 * time.Second
)

// UnavailableError describes a missing or unusable client binary. It is a
// configuration problem surfaced to callers, never fatal to the daemon.
type UnavailableError struct {
	Path   string
	Reason string
}

func (e *UnavailableError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

// Client invokes the external binary. The zero value is not usable; call
// Resolve or fill Bin/BaseDir explicitly.
type Client struct {
	Bin     string // absolute or relative path to the binary; empty when not found
	BaseDir string // working directory for invocations
	Log     logger.Config
}

// Resolve locates the binary with the documented precedence: explicit
// override, <baseDir>/ajiasu, then PATH. An empty Bin on the returned client
// means nothing was found; EnsureAvailable reports that descriptively.
func Resolve(binOverride, dirOverride string) Client {
	base := dirOverride
	if base == "" {
		if wd, err := os.Getwd(); err == nil {
			base = wd
		} else {
			base = "."
		}
	}
	c := Client{BaseDir: base}
	if binOverride != "" {
		c.Bin = binOverride
		return c
	}
	candidate := filepath.Join(base, BinaryName)
	if _, err := os.Stat(candidate); err == nil {
		c.Bin = candidate
		return c
	}
	if found, err := exec.LookPath(BinaryName); err == nil {
		c.Bin = found
	}
	return c
}

// EnsureAvailable verifies the binary exists and is executable.
func (c Client) EnsureAvailable() error {
	if c.Bin == "" {
		return &UnavailableError{Reason: "ajiasu binary not configured and not found in base dir or PATH"}
	}
	info, err := os.Stat(c.Bin)
	if err != nil {
		return &UnavailableError{Path: c.Bin, Reason: "ajiasu binary not found"}
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return &UnavailableError{Path: c.Bin, Reason: "ajiasu binary not executable"}
	}
	return nil
}

// List runs `ajiasu list` and returns raw stdout plus the exit code. A
// non-zero exit still returns whatever output was produced, since partial
// listings parse fine.
func (c Client) List(ctx context.Context) (string, int, error) {
	cctx, cancel := context.WithTimeout(ctx, ListTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, c.Bin, "list")
	cmd.Dir = c.BaseDir
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	code := 0
	if ee, ok := err.(*exec.ExitError); ok {
		code = ee.ExitCode()
		err = nil
	}
	return out.String(), code, err
}

// Disconnect runs the client's own disconnect subcommand with a bounded
// timeout and returns its combined output.
func (c Client) Disconnect(ctx context.Context) (string, string, error) {
	cctx, cancel := context.WithTimeout(ctx, DisconnectTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, c.Bin, "disconnect")
	cmd.Dir = c.BaseDir
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.String(), errBuf.String(), err
}
