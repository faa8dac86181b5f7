// Package ajiasud supervises a single ajiasu VPN connection: it keeps
// exactly one `ajiasu connect` process alive, heals dropped connections,
// enforces the single-instance invariant, and optionally rotates across
// endpoints on a schedule. The HTTP control surface is available separately
// for embedding.
package ajiasud

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/loykin/ajiasud/internal/ajiasu"
	"github.com/loykin/ajiasud/internal/egress"
	"github.com/loykin/ajiasud/internal/history"
	"github.com/loykin/ajiasud/internal/nodes"
	"github.com/loykin/ajiasud/internal/server"
	"github.com/loykin/ajiasud/internal/supervisor"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type Node = nodes.Node

type Summary = nodes.Summary

type Connection = supervisor.Connection

type CleanupResult = supervisor.CleanupResult

type HealResult = supervisor.HealResult

type EnforceResult = supervisor.EnforceResult

type ConnectResult = supervisor.ConnectResult

type GracefulResult = supervisor.GracefulResult

type HistorySink = history.Sink

// Config wires a Supervisor for embedding.
type Config struct {
	// BinPath overrides binary discovery; BaseDir sets the search and
	// working directory. Both empty means current dir then PATH.
	BinPath string
	BaseDir string

	Logger         *slog.Logger
	History        history.Sink
	HealBackoff    time.Duration
	RotateEnabled  bool
	RotateInterval time.Duration
}

// Supervisor is a thin facade over the internal supervisor. It provides a
// stable public API for embedding.
type Supervisor struct{ inner *supervisor.Supervisor }

func New(cfg Config) *Supervisor {
	client := ajiasu.Resolve(cfg.BinPath, cfg.BaseDir)
	inner := supervisor.New(supervisor.Config{
		Client:         client,
		Logger:         cfg.Logger,
		History:        cfg.History,
		HealBackoff:    cfg.HealBackoff,
		RotateEnabled:  cfg.RotateEnabled,
		RotateInterval: cfg.RotateInterval,
	})
	return &Supervisor{inner: inner}
}

func (s *Supervisor) Startup() CleanupResult { return s.inner.Startup() }
func (s *Supervisor) Connect(ctx context.Context, label, protocol string) (ConnectResult, error) {
	return s.inner.Connect(ctx, label, protocol)
}
func (s *Supervisor) Disconnect() CleanupResult { return s.inner.Disconnect() }
func (s *Supervisor) GracefulDisconnect(ctx context.Context) GracefulResult {
	return s.inner.GracefulDisconnect(ctx)
}
func (s *Supervisor) Cleanup() CleanupResult                { return s.inner.Cleanup() }
func (s *Supervisor) Current() *Connection                  { return s.inner.Current() }
func (s *Supervisor) EnsureOne(reason string) HealResult    { return s.inner.EnsureOne(reason) }
func (s *Supervisor) EnforceSingle(prefer int) EnforceResult {
	return s.inner.EnforceSingle(prefer)
}
func (s *Supervisor) RefreshNodes(ctx context.Context) ([]Node, Summary, error) {
	ns, sum, _, err := s.inner.RefreshCatalog(ctx)
	return ns, sum, err
}
func (s *Supervisor) Nodes() []Node { return s.inner.Catalog().Nodes() }
func (s *Supervisor) StartBackground() { s.inner.StartBackground() }
func (s *Supervisor) Stop()            { s.inner.Stop() }

// Handler returns the HTTP control surface for mounting in any mux.
func (s *Supervisor) Handler() http.Handler {
	return server.New(s.inner, egress.New(), nil).Handler()
}
