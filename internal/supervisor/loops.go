package supervisor

import (
	"context"
	"time"

	"github.com/loykin/ajiasud/internal/history"
	"github.com/loykin/ajiasud/internal/metrics"
)

// StartBackground launches the watchdog and, when enabled, the rotation
// loop. It is a no-op when already started.
func (s *Supervisor) StartBackground() {
	if s.quit != nil {
		return
	}
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.run()
}

// Stop terminates the background loops and waits for them to exit. Managed
// processes are left running.
func (s *Supervisor) Stop() {
	if s.quit == nil {
		return
	}
	close(s.quit)
	<-s.done
	s.quit = nil
	s.done = nil
}

func (s *Supervisor) run() {
	defer close(s.done)

	watchdog := time.NewTicker(s.watchdogEvery)
	defer watchdog.Stop()

	var rotateC <-chan time.Time
	if s.rotateEnabled && s.rotateInterval > 0 {
		rotate := time.NewTicker(s.rotateInterval)
		defer rotate.Stop()
		rotateC = rotate.C
	}

	for {
		select {
		case <-s.quit:
			return
		case <-watchdog.C:
			s.watchdogTick()
		case <-rotateC:
			s.rotateTick()
		}
	}
}

// watchdogTick converges the inventory toward exactly one process: heal when
// empty, enforce when crowded. A single member needs no action.
func (s *Supervisor) watchdogTick() {
	pids := s.scan()
	metrics.SetManagedProcesses(len(pids))
	switch {
	case len(pids) == 0:
		s.opMu.Lock()
		res := s.healLocked("watchdog")
		s.opMu.Unlock()
		if !res.OK && res.Skipped == "" {
			s.logger.Warn("watchdog: heal failed", "error", res.Error)
		}
	case len(pids) > 1:
		_ = s.EnforceSingle(0)
	}
}

// rotateTick moves the connection to the next catalog entry after the
// current label, wrapping at the end. Any failure leaves rotation to the
// next tick; the healer covers a connection lost mid-switch.
func (s *Supervisor) rotateTick() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, _, _, err := s.RefreshCatalog(ctx); err != nil {
		s.logger.Warn("rotate: catalog refresh failed, skipping", "error", err)
		return
	}

	curLabel, _ := s.currentLabelPID()
	next, ok := s.catalog.NextAfter(curLabel)
	if !ok {
		s.logger.Warn("rotate: catalog empty, skipping")
		return
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	_ = s.killAllLocked("pre_rotate")
	if !s.catalog.HasLabel(next) {
		s.logger.Warn("rotate: target vanished from catalog, leaving heal to reconnect", "label", next)
		return
	}
	pid, err := s.launch(next, DefaultProtocol)
	if err != nil {
		s.logger.Error("rotate: launch failed, leaving heal to reconnect", "label", next, "error", err)
		return
	}
	s.setCurrent(&Connection{PID: pid, Label: next, Protocol: DefaultProtocol, StartedAt: time.Now()})
	s.lastHeal = time.Now()
	metrics.IncRotation()
	metrics.IncLaunch("rotate")
	s.record(history.Event{Type: history.EventRotate, Label: next, Protocol: DefaultProtocol, PID: pid})
	s.logger.Info("rotate: switched", "label", next, "pid", pid)

	time.Sleep(s.settleDelay)
	_ = s.enforceLocked(pid)
}
