//go:build !windows

package terminator

import (
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"
)

// fakeProcs simulates a set of processes with scripted reactions to signals.
type fakeProcs struct {
	mu      sync.Mutex
	alive   map[int]bool
	dieOn   map[int]syscall.Signal // pid exits when this signal arrives
	signals []syscall.Signal
}

func (f *fakeProcs) signal(pid int, sig syscall.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
	if want, ok := f.dieOn[pid]; ok && want == sig {
		f.alive[pid] = false
	}
	return nil
}

func (f *fakeProcs) isAlive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func newFastTerminator(f *fakeProcs) *Terminator {
	t := New()
	t.GraceDelay = 5 * time.Millisecond
	t.PollInterval = 5 * time.Millisecond
	t.Deadline = 100 * time.Millisecond
	t.signalGroup = f.signal
	t.alive = f.isAlive
	return t
}

func TestKillEmptySet(t *testing.T) {
	res := New().Kill(nil)
	if len(res.Killed) != 0 || len(res.Errors) != 0 {
		t.Fatalf("empty input must be a no-op: %+v", res)
	}
}

func TestKillGracefulExit(t *testing.T) {
	f := &fakeProcs{
		alive: map[int]bool{101: true, 102: true},
		dieOn: map[int]syscall.Signal{101: syscall.SIGTERM, 102: syscall.SIGTERM},
	}
	res := newFastTerminator(f).Kill([]int{101, 102})
	if len(res.Killed) != 2 || len(res.Errors) != 0 {
		t.Fatalf("expected both confirmed dead: %+v", res)
	}
}

func TestKillEscalatesAndReportsStubborn(t *testing.T) {
	// 201 and 202 exit on SIGTERM, 203 never exits.
	f := &fakeProcs{
		alive: map[int]bool{201: true, 202: true, 203: true},
		dieOn: map[int]syscall.Signal{201: syscall.SIGTERM, 202: syscall.SIGTERM},
	}
	tr := newFastTerminator(f)
	start := time.Now()
	res := tr.Kill([]int{201, 202, 203})
	elapsed := time.Since(start)

	if len(res.Killed) != 2 || res.Killed[0] != 201 || res.Killed[1] != 202 {
		t.Fatalf("expected 201,202 killed: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].PID != 203 || res.Errors[0].Error != "still_alive_after_kill" {
		t.Fatalf("expected 203 still_alive_after_kill: %+v", res)
	}
	// Bounded: grace + deadline + one poll slack.
	if elapsed > tr.GraceDelay+tr.Deadline+50*time.Millisecond {
		t.Fatalf("kill exceeded bounded window: %v", elapsed)
	}
	// The stubborn pid must have seen a forced kill.
	f.mu.Lock()
	defer f.mu.Unlock()
	sawKill := false
	for _, s := range f.signals {
		if s == syscall.SIGKILL {
			sawKill = true
		}
	}
	if !sawKill {
		t.Fatalf("expected SIGKILL escalation, signals=%v", f.signals)
	}
}

func TestKillDiesOnlyAfterForce(t *testing.T) {
	f := &fakeProcs{
		alive: map[int]bool{301: true},
		dieOn: map[int]syscall.Signal{301: syscall.SIGKILL},
	}
	res := newFastTerminator(f).Kill([]int{301})
	if len(res.Killed) != 1 || res.Killed[0] != 301 {
		t.Fatalf("expected 301 dead after SIGKILL: %+v", res)
	}
}

// TestKillRealProcess exercises the default syscall path end to end.
func TestKillRealProcess(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	pid := cmd.Process.Pid
	defer func() { _ = cmd.Wait() }()

	tr := New()
	tr.GraceDelay = 50 * time.Millisecond
	res := tr.Kill([]int{pid})
	if len(res.Killed) != 1 || res.Killed[0] != pid {
		t.Fatalf("expected %d confirmed dead: %+v", pid, res)
	}
}
