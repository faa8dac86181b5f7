// Package server exposes the control surface over HTTP: the node panel,
// the JSON API, and Prometheus metrics. Handlers delegate every lifecycle
// decision to the supervisor; nothing here touches a process directly.
//
// Endpoints:
//
//	GET  /                 HTML control panel
//	GET  /api/nodes        refresh and return the node catalog
//	GET  /api/status       current connection belief with derived liveness
//	POST /api/connect      body: {label, protocol}
//	POST /api/disconnect   kill-all then heal
//	POST /api/cleanup      kill-all then heal
//	GET  /api/external_ip  egress IP lookup
//	GET  /api/selftest     built-in property checks
//	GET  /metrics          Prometheus metrics
package server

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/ajiasud/internal/ajiasu"
	"github.com/loykin/ajiasud/internal/egress"
	"github.com/loykin/ajiasud/internal/metrics"
	"github.com/loykin/ajiasud/internal/nodes"
	"github.com/loykin/ajiasud/internal/selftest"
	"github.com/loykin/ajiasud/internal/supervisor"
)

type Server struct {
	sup    *supervisor.Supervisor
	egress *egress.Lookup
	logger *slog.Logger
}

func New(sup *supervisor.Supervisor, lookup *egress.Lookup, logger *slog.Logger) *Server {
	if lookup == nil {
		lookup = egress.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{sup: sup, egress: lookup, logger: logger}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (s *Server) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/", s.handleIndex)
	g.GET("/api/nodes", s.handleNodes)
	g.GET("/api/status", s.handleStatus)
	g.POST("/api/connect", s.handleConnect)
	g.POST("/api/disconnect", s.handleDisconnect)
	g.POST("/api/cleanup", s.handleCleanup)
	g.GET("/api/external_ip", s.handleExternalIP)
	g.GET("/api/selftest", s.handleSelftest)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewHTTPServer wraps the handler in an http.Server with bounded timeouts.
func NewHTTPServer(addr string, s *Server) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// list refreshes can hold a request for up to two minutes
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ChoosePort probes preferred and the next ten ports on host, returning the
// first that binds. When none bind it returns preferred and lets the real
// listen call surface the error.
func ChoosePort(host string, preferred int) int {
	for p := preferred; p <= preferred+10; p++ {
		addr := net.JoinHostPort(host, strconv.Itoa(p))
		l, err := net.Listen("tcp", addr)
		if err != nil {
			continue
		}
		_ = l.Close()
		return p
	}
	return preferred
}

// --- Handlers ---

type errorResp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type nodesResp struct {
	OK         bool          `json:"ok"`
	Returncode int           `json:"returncode"`
	Nodes      []nodes.Node  `json:"nodes"`
	Summary    nodes.Summary `json:"summary"`
	Error      string        `json:"error,omitempty"`
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(panelHTML))
}

func (s *Server) handleNodes(c *gin.Context) {
	ns, summary, code, err := s.sup.RefreshCatalog(c.Request.Context())
	if err != nil {
		var uerr *ajiasu.UnavailableError
		if errors.As(err, &uerr) {
			writeJSON(c, http.StatusOK, nodesResp{OK: false, Nodes: []nodes.Node{}, Error: uerr.Error()})
			return
		}
		s.logger.Error("node listing failed", "error", err)
		writeJSON(c, http.StatusBadGateway, nodesResp{OK: false, Returncode: code, Nodes: []nodes.Node{}, Error: err.Error()})
		return
	}
	if ns == nil {
		ns = []nodes.Node{}
	}
	writeJSON(c, http.StatusOK, nodesResp{OK: code == 0, Returncode: code, Nodes: ns, Summary: summary})
}

func (s *Server) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"current": s.sup.Current()})
}

type connectReq struct {
	Label    string `json:"label"`
	Protocol string `json:"protocol"`
}

func (s *Server) handleConnect(c *gin.Context) {
	var req connectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	res, err := s.sup.Connect(c.Request.Context(), req.Label, req.Protocol)
	if err != nil {
		var verr *supervisor.ValidationError
		var uerr *ajiasu.UnavailableError
		switch {
		case errors.As(err, &verr):
			writeJSON(c, http.StatusBadRequest, errorResp{Error: verr.Error()})
		case errors.As(err, &uerr):
			writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: uerr.Error()})
		default:
			s.logger.Error("connect failed", "label", req.Label, "error", err)
			writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		}
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handleDisconnect(c *gin.Context) {
	writeJSON(c, http.StatusOK, s.sup.Disconnect())
}

func (s *Server) handleCleanup(c *gin.Context) {
	writeJSON(c, http.StatusOK, s.sup.Cleanup())
}

func (s *Server) handleExternalIP(c *gin.Context) {
	writeJSON(c, http.StatusOK, s.egress.ExternalIP(c.Request.Context()))
}

func (s *Server) handleSelftest(c *gin.Context) {
	writeJSON(c, http.StatusOK, selftest.Run())
}
