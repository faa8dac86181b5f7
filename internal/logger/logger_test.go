package logger

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

// helper to close non-nil closers and ignore errors
func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func TestWriters_WithDirOnly(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir}
	outW, errW, err := cfg.Writers("ajiasu")
	if err != nil {
		t.Fatalf("Writers error: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatalf("expected both writers non-nil when Dir is set")
	}
	_, _ = outW.Write([]byte("hello-out\n"))
	_, _ = errW.Write([]byte("hello-err\n"))
	closeIf(outW)
	closeIf(errW)
	if _, err := os.Stat(filepath.Join(dir, "ajiasu.stdout.log")); err != nil {
		t.Fatalf("stdout log not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ajiasu.stderr.log")); err != nil {
		t.Fatalf("stderr log not created: %v", err)
	}
}

func TestWriters_WithExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	sp := filepath.Join(dir, "s.out.log")
	ep := filepath.Join(dir, "s.err.log")
	cfg := Config{StdoutPath: sp, StderrPath: ep}
	outW, errW, err := cfg.Writers("ignored-name")
	if err != nil {
		t.Fatalf("Writers error: %v", err)
	}
	_, _ = outW.Write([]byte("x"))
	_, _ = errW.Write([]byte("y"))
	closeIf(outW)
	closeIf(errW)
	if _, err := os.Stat(sp); err != nil {
		t.Fatalf("explicit stdout path not created: %v", err)
	}
	if _, err := os.Stat(ep); err != nil {
		t.Fatalf("explicit stderr path not created: %v", err)
	}
}

func TestWriters_Empty(t *testing.T) {
	outW, errW, err := Config{}.Writers("x")
	if err != nil || outW != nil || errW != nil {
		t.Fatalf("empty config must yield nil writers")
	}
}

func TestSetup(t *testing.T) {
	l := Setup("", false)
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Info("setup smoke test")

	dir := t.TempDir()
	lf := Setup(filepath.Join(dir, "ajiasud.log"), true)
	lf.Debug("file-backed logger")
	if _, err := os.Stat(filepath.Join(dir, "ajiasud.log")); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}
