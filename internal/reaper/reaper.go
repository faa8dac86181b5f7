//go:build !windows

// Package reaper drains exited child processes so defunct entries never
// accumulate while the daemon launches detached connect children.
package reaper

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// DefaultPeriod is the fallback drain interval when no SIGCHLD arrives.
const DefaultPeriod = 500 * time.Millisecond

type Reaper struct {
	logger *slog.Logger
	period time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

func New(logger *slog.Logger) *Reaper {
	return &Reaper{logger: logger, period: DefaultPeriod}
}

// Start launches the background drain loop. It wakes on SIGCHLD and on a
// fixed period, and runs until Stop is called.
func (r *Reaper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	sigchld := make(chan os.Signal, 10)
	signal.Notify(sigchld, syscall.SIGCHLD)

	go func() {
		defer close(r.done)
		defer signal.Stop(sigchld)
		t := time.NewTicker(r.period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigchld:
				r.drain()
			case <-t.C:
				r.drain()
			}
		}
	}()
}

// drain collects every exited child without blocking, looping until none
// remain. ECHILD (no children) is expected and ignored.
func (r *Reaper) drain() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil {
			if err != syscall.ECHILD && r.logger != nil {
				r.logger.Debug("wait4 failed", "error", err)
			}
			return
		}
		if pid <= 0 {
			return
		}
		if r.logger != nil {
			r.logger.Debug("reaped child", "pid", pid, "status", ws)
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (r *Reaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}
