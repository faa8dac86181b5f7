//go:build !windows

// Package terminator drives sets of process identifiers to termination with
// bounded worst-case latency: SIGTERM to each process group, a short grace
// delay, then a polling loop that escalates to SIGKILL until a hard deadline.
package terminator

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"syscall"
	"time"
)

// Named timing constants so tests can shrink them.
const (
	DefaultGraceDelay   = 250 * time.Millisecond
	DefaultPollInterval = 200 * time.Millisecond
	DefaultDeadline     = 5 * time.Second
)

// pidState tracks one identifier through the escalation sequence.
type pidState int

const (
	stateSignaled pidState = iota // SIGTERM delivered
	stateForced                   // SIGKILL delivered at least once
	stateDead                     // liveness probe confirmed exit
	stateTimeout                  // unconfirmed at deadline
)

// KillError reports an identifier that could not be confirmed dead.
type KillError struct {
	PID   int    `json:"pid"`
	Error string `json:"error"`
}

// Result reports the outcome of one Kill invocation.
type Result struct {
	Killed []int       `json:"killed"`
	Errors []KillError `json:"errors"`
}

// Terminator is safe for concurrent use; each Kill call is independent.
// The syscall hooks exist so tests can simulate stubborn processes without
// spawning unkillable children.
type Terminator struct {
	GraceDelay   time.Duration
	PollInterval time.Duration
	Deadline     time.Duration

	signalGroup func(pid int, sig syscall.Signal) error
	alive       func(pid int) bool
}

func New() *Terminator {
	return &Terminator{
		GraceDelay:   DefaultGraceDelay,
		PollInterval: DefaultPollInterval,
		Deadline:     DefaultDeadline,
		signalGroup:  signalGroup,
		alive:        pidAlive,
	}
}

// Kill drives every pid to termination and reports which were confirmed dead
// within the deadline. Escalation is applied to all members per poll
// iteration, so wall time is bounded regardless of set size. Identifiers
// still unconfirmed at the deadline are reported as still_alive_after_kill
// and not retried by this call.
func (t *Terminator) Kill(pids []int) Result {
	var res Result
	if len(pids) == 0 {
		return res
	}

	states := make(map[int]pidState, len(pids))
	for _, pid := range pids {
		if err := t.signalGroup(pid, syscall.SIGTERM); err != nil {
			res.Errors = append(res.Errors, KillError{PID: pid, Error: fmt.Sprintf("sigterm_failed:%v", err)})
		}
		states[pid] = stateSignaled
	}

	time.Sleep(t.GraceDelay)

	deadline := time.Now().Add(t.Deadline)
	for remaining(states) > 0 && time.Now().Before(deadline) {
		for pid, st := range states {
			if st == stateDead {
				continue
			}
			if !t.alive(pid) {
				states[pid] = stateDead
				continue
			}
			_ = t.signalGroup(pid, syscall.SIGKILL)
			states[pid] = stateForced
		}
		time.Sleep(t.PollInterval)
		// Re-probe so a process that died during the sleep is confirmed
		// without waiting a full extra iteration.
		for pid, st := range states {
			if st != stateDead && !t.alive(pid) {
				states[pid] = stateDead
			}
		}
	}

	for pid, st := range states {
		switch st {
		case stateDead:
			res.Killed = append(res.Killed, pid)
		default:
			states[pid] = stateTimeout
			res.Errors = append(res.Errors, KillError{PID: pid, Error: "still_alive_after_kill"})
		}
	}
	sort.Ints(res.Killed)
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].PID < res.Errors[j].PID })
	return res
}

func remaining(states map[int]pidState) int {
	n := 0
	for _, st := range states {
		if st != stateDead {
			n++
		}
	}
	return n
}

// signalGroup signals the whole process group when the group id resolves,
// falling back to the individual process.
func signalGroup(pid int, sig syscall.Signal) error {
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		if err := syscall.Kill(-pgid, sig); err == nil {
			return nil
		}
	}
	return syscall.Kill(pid, sig)
}

// pidAlive treats a zombie as dead: the process has exited and only awaits
// reaping, which the reaper loop handles.
func pidAlive(pid int) bool {
	if isZombie(pid) {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

func isZombie(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
