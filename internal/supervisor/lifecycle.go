package supervisor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/loykin/ajiasud/internal/history"
	"github.com/loykin/ajiasud/internal/metrics"
	"github.com/loykin/ajiasud/internal/terminator"
)

// Startup unconditionally clears all managed processes, drops the belief,
// then heals once so the daemon comes up connected.
func (s *Supervisor) Startup() CleanupResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	res := s.killAllLocked("startup")
	heal := s.healLocked("startup")
	res.Heal = &heal
	return res
}

// KillAllConnects clears every managed process: scan, terminate, re-scan,
// terminate stragglers once more. The belief is always dropped, even when
// nothing was found.
func (s *Supervisor) KillAllConnects(reason string) CleanupResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.killAllLocked(reason)
}

func (s *Supervisor) killAllLocked(reason string) CleanupResult {
	found := s.scan()
	res := CleanupResult{Reason: reason, Found: found, Killed: []int{}, Errors: []terminator.KillError{}}
	if len(found) > 0 {
		s.logger.Info("cleanup: clearing connect processes", "reason", reason, "found", found)
		kr := s.kill(found)
		res.Killed = kr.Killed
		res.Errors = kr.Errors
		if remain := s.scan(); len(remain) > 0 {
			s.logger.Warn("cleanup: stragglers after kill, retrying", "reason", reason, "remain", remain)
			final := s.kill(remain)
			res.Killed = append(res.Killed, final.Killed...)
			res.Errors = append(res.Errors, final.Errors...)
		}
	}
	s.setCurrent(nil)
	res.Killed = dedupeSorted(res.Killed)

	metrics.IncCleanup(reason)
	metrics.AddKilled(len(res.Killed))
	metrics.AddKillTimeouts(len(res.Errors))
	s.record(history.Event{Type: history.EventCleanup, Killed: len(res.Killed), Detail: reason})
	s.logger.Info("cleanup: done", "reason", reason, "killed", res.Killed, "errors", len(res.Errors))
	return res
}

// Connect validates the request, clears every managed process, launches a
// new one for label with protocol on its stdin, records the belief, and
// after a short settle delay lets the enforcer remove anything that raced
// in, preferring the fresh PID.
func (s *Supervisor) Connect(ctx context.Context, label, protocol string) (ConnectResult, error) {
	if protocol == "" {
		protocol = DefaultProtocol
	}
	if label == "" {
		return ConnectResult{}, &ValidationError{Msg: "label is required"}
	}
	if !ProtocolAllowed(protocol) {
		return ConnectResult{}, &ValidationError{Msg: fmt.Sprintf("protocol must be one of %v", Protocols())}
	}
	if !s.catalog.HasLabel(label) {
		return ConnectResult{}, &ValidationError{Msg: "label not in latest list, refresh first"}
	}
	if err := s.ensureBin(); err != nil {
		return ConnectResult{}, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	_ = s.killAllLocked("pre_connect")

	pid, err := s.launch(label, protocol)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("spawn connect: %w", err)
	}
	s.setCurrent(&Connection{PID: pid, Label: label, Protocol: protocol, StartedAt: time.Now()})
	metrics.IncLaunch("connect")
	s.record(history.Event{Type: history.EventConnect, Label: label, Protocol: protocol, PID: pid})
	s.logger.Info("connect: launched", "label", label, "protocol", protocol, "pid", pid)

	time.Sleep(s.settleDelay)
	_ = s.enforceLocked(pid)
	return ConnectResult{OK: true, PID: pid, Label: label, Protocol: protocol}, nil
}

// Disconnect clears all managed processes and immediately heals to a default
// target: by policy there is no disconnected steady state.
func (s *Supervisor) Disconnect() CleanupResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	res := s.killAllLocked("manual")
	heal := s.healLocked("post_disconnect")
	res.Heal = &heal
	return res
}

// Cleanup is Disconnect under its explicit trigger names.
func (s *Supervisor) Cleanup() CleanupResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	res := s.killAllLocked("explicit_cleanup")
	heal := s.healLocked("post_cleanup")
	res.Heal = &heal
	return res
}

// GracefulDisconnect prefers the client's own disconnect subcommand; on any
// failure or unavailability it falls back to the unconditional clear.
func (s *Supervisor) GracefulDisconnect(ctx context.Context) GracefulResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.ensureBin(); err == nil {
		stdout, stderr, derr := s.clientDisconnect(ctx)
		if derr == nil {
			s.setCurrent(nil)
			s.record(history.Event{Type: history.EventDisconnect, Detail: "cli"})
			s.logger.Info("graceful disconnect via client succeeded")
			return GracefulResult{OK: true, Via: "cli", Stdout: stdout, Stderr: stderr}
		}
		s.logger.Warn("client disconnect failed, falling back to kill", "error", derr)
		res := s.killAllLocked(fmt.Sprintf("cli_failed:%v", derr))
		return GracefulResult{OK: true, Via: "kill", Fallback: &res}
	}
	res := s.killAllLocked("no_cli_or_failed")
	return GracefulResult{OK: true, Via: "kill", Fallback: &res}
}

// EnsureOne heals an empty inventory: when no managed process exists, launch
// one against a default target with the default protocol, rate-limited by
// the healing backoff.
func (s *Supervisor) EnsureOne(reason string) HealResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.healLocked(reason)
}

func (s *Supervisor) healLocked(reason string) HealResult {
	if pids := s.scan(); len(pids) > 0 {
		return HealResult{OK: true, Existing: pids}
	}
	now := time.Now()
	if now.Sub(s.lastHeal) < s.healBackoff {
		return HealResult{OK: false, Skipped: "backoff"}
	}
	label := s.defaultLabel()
	if label == "" {
		s.logger.Warn("heal: abort, no target available", "reason", reason)
		return HealResult{OK: false, Error: "no_label"}
	}
	if err := s.ensureBin(); err != nil {
		s.logger.Warn("heal: abort", "reason", reason, "error", err)
		return HealResult{OK: false, Error: err.Error()}
	}
	pid, err := s.launch(label, DefaultProtocol)
	if err != nil {
		s.logger.Error("heal: launch failed", "reason", reason, "error", err)
		return HealResult{OK: false, Error: err.Error()}
	}
	s.setCurrent(&Connection{PID: pid, Label: label, Protocol: DefaultProtocol, StartedAt: now})
	s.lastHeal = now
	metrics.IncHeal()
	metrics.IncLaunch("heal")
	s.record(history.Event{Type: history.EventHeal, Label: label, Protocol: DefaultProtocol, PID: pid, Detail: reason})
	s.logger.Info("heal: connected", "reason", reason, "label", label, "pid", pid)
	return HealResult{OK: true, Label: label, PID: pid}
}

// defaultLabel prefers the current belief, then the catalog head, refreshing
// the catalog once when it is empty.
func (s *Supervisor) defaultLabel() string {
	if label, _ := s.currentLabelPID(); label != "" {
		return label
	}
	if first, ok := s.catalog.FirstLabel(); ok {
		return first
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, _, _, err := s.RefreshCatalog(ctx); err != nil {
		s.logger.Debug("heal: catalog refresh failed", "error", err)
		return ""
	}
	first, _ := s.catalog.FirstLabel()
	return first
}

// EnforceSingle reduces the inventory to at most one managed process. With
// one or zero members it never kills. The keep precedence is: preferPID when
// present in the inventory, the believed current PID, then the process with
// the latest start time (ties to the numerically largest PID).
func (s *Supervisor) EnforceSingle(preferPID int) EnforceResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.enforceLocked(preferPID)
}

func (s *Supervisor) enforceLocked(preferPID int) EnforceResult {
	pids := s.scan()
	if len(pids) <= 1 {
		res := EnforceResult{Found: pids, Killed: []int{}}
		if len(pids) == 1 {
			res.Kept = &pids[0]
		}
		return res
	}

	keep := s.chooseKeep(pids, preferPID)
	toKill := make([]int, 0, len(pids)-1)
	for _, pid := range pids {
		if pid != keep {
			toKill = append(toKill, pid)
		}
	}
	kr := s.kill(toKill)
	metrics.AddEnforcerKills(len(kr.Killed))
	s.record(history.Event{Type: history.EventEnforce, PID: keep, Killed: len(kr.Killed)})
	s.logger.Info("enforcer: removed duplicates", "found", pids, "kept", keep, "killed", kr.Killed)
	return EnforceResult{Found: pids, Kept: &keep, Killed: kr.Killed}
}

func (s *Supervisor) chooseKeep(pids []int, preferPID int) int {
	if preferPID > 0 && containsInt(pids, preferPID) {
		return preferPID
	}
	if _, curPID := s.currentLabelPID(); curPID > 0 && containsInt(pids, curPID) {
		return curPID
	}
	best := pids[0]
	bestStart := s.startUnix(best)
	for _, pid := range pids[1:] {
		st := s.startUnix(pid)
		if st > bestStart || (st == bestStart && pid > best) {
			best, bestStart = pid, st
		}
	}
	return best
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func dedupeSorted(xs []int) []int {
	if len(xs) == 0 {
		return xs
	}
	sort.Ints(xs)
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
