// Package supervisor owns the lifecycle of the managed connect process: the
// serialized connect/disconnect/cleanup entry points, the single-instance
// enforcer, the connection healer, and the rotation scheduler. A single
// orchestration mutex guarantees at most one clear-then-launch sequence is
// ever in flight; the connection belief and the catalog carry their own
// locks so status reads never contend with orchestration.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/loykin/ajiasud/internal/ajiasu"
	"github.com/loykin/ajiasud/internal/cmdline"
	"github.com/loykin/ajiasud/internal/history"
	"github.com/loykin/ajiasud/internal/inventory"
	"github.com/loykin/ajiasud/internal/nodes"
	"github.com/loykin/ajiasud/internal/terminator"
)

// Recognized connect protocols. DefaultProtocol applies when a request omits
// the protocol entirely.
const DefaultProtocol = "lwip"

var protocols = map[string]struct{}{
	"udp":   {},
	"tcp":   {},
	"lwip":  {},
	"proxy": {},
}

// ProtocolAllowed reports whether p is one of the recognized values.
func ProtocolAllowed(p string) bool {
	_, ok := protocols[p]
	return ok
}

// Protocols returns the recognized protocol values in sorted order.
func Protocols() []string {
	out := make([]string, 0, len(protocols))
	for p := range protocols {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Named loop/delay constants; tests shrink them through the Supervisor fields.
const (
	DefaultHealBackoff      = 3 * time.Second
	DefaultSettleDelay      = 300 * time.Millisecond
	DefaultWatchdogInterval = 2 * time.Second
)

// ValidationError rejects a request before any process action; no state is
// mutated when one is returned.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// Connection is the supervisor's belief about the active connect process.
// It is advisory; the inventory remains authoritative.
type Connection struct {
	PID       int       `json:"pid"`
	Label     string    `json:"label"`
	Protocol  string    `json:"protocol"`
	StartedAt time.Time `json:"started_at"`
	Alive     bool      `json:"alive"`
}

// CleanupResult reports one kill-all sweep, optionally with the healing step
// that followed it.
type CleanupResult struct {
	Reason string                 `json:"reason"`
	Found  []int                  `json:"found"`
	Killed []int                  `json:"killed"`
	Errors []terminator.KillError `json:"errors"`
	Heal   *HealResult            `json:"heal,omitempty"`
}

// HealResult reports one healing attempt.
type HealResult struct {
	OK       bool   `json:"ok"`
	Existing []int  `json:"existing,omitempty"`
	Skipped  string `json:"skipped,omitempty"`
	Label    string `json:"label,omitempty"`
	PID      int    `json:"pid,omitempty"`
	Error    string `json:"error,omitempty"`
}

// EnforceResult reports one single-instance correction. Kept is nil when the
// inventory was empty.
type EnforceResult struct {
	Found  []int `json:"found"`
	Kept   *int  `json:"kept"`
	Killed []int `json:"killed"`
}

// ConnectResult is the success payload of Connect.
type ConnectResult struct {
	OK       bool   `json:"ok"`
	PID      int    `json:"pid"`
	Label    string `json:"label"`
	Protocol string `json:"protocol"`
}

// GracefulResult reports a graceful disconnect attempt. When the client's
// own disconnect subcommand fails, Fallback carries the kill-all outcome.
type GracefulResult struct {
	OK       bool           `json:"ok"`
	Via      string         `json:"via,omitempty"`
	Stdout   string         `json:"stdout,omitempty"`
	Stderr   string         `json:"stderr,omitempty"`
	Fallback *CleanupResult `json:"fallback,omitempty"`
}

// Config wires a Supervisor.
type Config struct {
	Client         ajiasu.Client
	Catalog        *nodes.Catalog
	Logger         *slog.Logger
	History        history.Sink // optional audit sink
	HealBackoff    time.Duration
	RotateEnabled  bool
	RotateInterval time.Duration
}

type Supervisor struct {
	catalog *nodes.Catalog
	logger  *slog.Logger
	sink    history.Sink

	// collaborators behind function fields so tests can fake the OS
	scan             func() []int
	kill             func(pids []int) terminator.Result
	launch           func(label, protocol string) (int, error)
	ensureBin        func() error
	listRaw          func(ctx context.Context) (string, int, error)
	clientDisconnect func(ctx context.Context) (string, string, error)
	alive            func(pid int) bool
	startUnix        func(pid int) int64

	healBackoff    time.Duration
	settleDelay    time.Duration
	watchdogEvery  time.Duration
	rotateEnabled  bool
	rotateInterval time.Duration
	lastHeal       time.Time

	opMu   sync.Mutex // orchestration lock
	connMu sync.Mutex // belief lock

	current *Connection

	quit chan struct{}
	done chan struct{}
}

func New(cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = nodes.NewCatalog()
	}
	if cfg.HealBackoff <= 0 {
		cfg.HealBackoff = DefaultHealBackoff
	}
	scanner := inventory.Scanner{Matcher: cmdline.Matcher{
		Binary:     ajiasu.BinaryName,
		Subcommand: ajiasu.ConnectSubcommand,
	}}
	term := terminator.New()
	client := cfg.Client
	s := &Supervisor{
		catalog: cfg.Catalog,
		logger:  cfg.Logger,
		sink:    cfg.History,

		scan:      scanner.Scan,
		kill:      term.Kill,
		launch:    client.Launch,
		ensureBin: client.EnsureAvailable,
		listRaw: func(ctx context.Context) (string, int, error) {
			out, code, err := client.List(ctx)
			return out, code, err
		},
		clientDisconnect: client.Disconnect,
		alive:            inventory.Alive,
		startUnix:        inventory.StartUnix,

		healBackoff:    cfg.HealBackoff,
		settleDelay:    DefaultSettleDelay,
		watchdogEvery:  DefaultWatchdogInterval,
		rotateEnabled:  cfg.RotateEnabled,
		rotateInterval: cfg.RotateInterval,
	}
	return s
}

// Catalog exposes the target catalog for the HTTP layer.
func (s *Supervisor) Catalog() *nodes.Catalog { return s.catalog }

// Current returns a copy of the belief with liveness derived on read, or nil
// when no connection is believed active.
func (s *Supervisor) Current() *Connection {
	s.connMu.Lock()
	var cp *Connection
	if s.current != nil {
		c := *s.current
		cp = &c
	}
	s.connMu.Unlock()
	if cp != nil {
		cp.Alive = s.alive(cp.PID)
	}
	return cp
}

func (s *Supervisor) setCurrent(c *Connection) {
	s.connMu.Lock()
	s.current = c
	s.connMu.Unlock()
}

func (s *Supervisor) currentLabelPID() (string, int) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.current == nil {
		return "", 0
	}
	return s.current.Label, s.current.PID
}

// RefreshCatalog runs the client's list command, parses the output, and
// replaces the catalog wholesale. The parsed listing is returned along with
// the client's exit code.
func (s *Supervisor) RefreshCatalog(ctx context.Context) ([]nodes.Node, nodes.Summary, int, error) {
	if err := s.ensureBin(); err != nil {
		return nil, nodes.Summary{}, 0, err
	}
	out, code, err := s.listRaw(ctx)
	if err != nil {
		return nil, nodes.Summary{}, code, fmt.Errorf("list endpoints: %w", err)
	}
	ns, summary := nodes.Parse(out)
	s.catalog.Replace(ns, summary)
	return ns, summary, code, nil
}

// record ships an audit event; failures are logged and never propagate.
func (s *Supervisor) record(e history.Event) {
	if s.sink == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.sink.Send(ctx, e); err != nil {
		s.logger.Debug("history sink write failed", "error", err)
	}
}
