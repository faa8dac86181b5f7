//go:build !windows

package ajiasu

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFakeBin(t *testing.T, dir, script string) string {
	t.Helper()
	path := filepath.Join(dir, BinaryName)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

func TestEnsureAvailableMissing(t *testing.T) {
	c := Client{}
	err := c.EnsureAvailable()
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("want not-configured error, got %v", err)
	}

	c = Client{Bin: "/surely/not/exist/ajiasu"}
	err = c.EnsureAvailable()
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("want not-found error, got %v", err)
	}
}

func TestEnsureAvailableNotExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, BinaryName)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := Client{Bin: path}
	err := c.EnsureAvailable()
	if err == nil || !strings.Contains(err.Error(), "not executable") {
		t.Fatalf("want not-executable error, got %v", err)
	}
}

func TestResolvePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFakeBin(t, dir, "exit 0")

	// Explicit override wins even when the base dir has a binary.
	c := Resolve("/opt/custom/ajiasu", dir)
	if c.Bin != "/opt/custom/ajiasu" || c.BaseDir != dir {
		t.Fatalf("override precedence broken: %+v", c)
	}

	// Base dir candidate found.
	c = Resolve("", dir)
	if c.Bin != filepath.Join(dir, BinaryName) {
		t.Fatalf("base dir candidate not picked: %+v", c)
	}
}

func TestListCapturesOutput(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeBin(t, dir, `echo "vvn-1 ok city #1"`)
	c := Client{Bin: bin, BaseDir: dir}
	out, code, err := c.List(context.Background())
	if err != nil || code != 0 {
		t.Fatalf("list failed: code=%d err=%v", code, err)
	}
	if !strings.Contains(out, "vvn-1") {
		t.Fatalf("stdout not captured: %q", out)
	}
}

func TestListNonZeroExitStillReturnsOutput(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeBin(t, dir, "echo partial; exit 3")
	c := Client{Bin: bin, BaseDir: dir}
	out, code, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("exit code must not surface as error: %v", err)
	}
	if code != 3 || !strings.Contains(out, "partial") {
		t.Fatalf("want code=3 with output, got code=%d out=%q", code, out)
	}
}

func TestLaunchWritesProtocolAndDetaches(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "seen")
	// The fake client records its stdin (the protocol) and exits.
	bin := writeFakeBin(t, dir, `[ "$1" = "connect" ] || exit 1
cat > `+marker)
	c := Client{Bin: bin, BaseDir: dir}
	pid, err := c.Launch("city #1", "lwip")
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("expected positive pid, got %d", pid)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b, err := os.ReadFile(marker); err == nil {
			if strings.TrimSpace(string(b)) != "lwip" {
				t.Fatalf("protocol not written to stdin: %q", b)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("fake client never received stdin")
}
