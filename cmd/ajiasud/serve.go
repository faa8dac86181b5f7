package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/ajiasud/internal/ajiasu"
	"github.com/loykin/ajiasud/internal/config"
	"github.com/loykin/ajiasud/internal/history"
	historysqlite "github.com/loykin/ajiasud/internal/history/sqlite"
	"github.com/loykin/ajiasud/internal/logger"
	"github.com/loykin/ajiasud/internal/metrics"
	"github.com/loykin/ajiasud/internal/reaper"
	"github.com/loykin/ajiasud/internal/server"
	"github.com/loykin/ajiasud/internal/supervisor"
)

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	lg := logger.Setup(cfg.LogFile, cfg.LogDebug)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		lg.Warn("metrics registration failed", "error", err)
	}

	client := ajiasu.Resolve(cfg.Bin, cfg.Dir)
	client.Log = cfg.ChildLog
	if err := client.EnsureAvailable(); err != nil {
		// not fatal: the panel stays usable and reports the problem
		lg.Warn("ajiasu binary unavailable", "error", err)
	}

	var sink history.Sink
	if cfg.HistoryDSN != "" {
		s, err := historysqlite.New(cfg.HistoryDSN)
		if err != nil {
			return fmt.Errorf("open history sink: %w", err)
		}
		defer func() { _ = s.Close() }()
		sink = s
	}

	sup := supervisor.New(supervisor.Config{
		Client:         client,
		Logger:         lg,
		History:        sink,
		HealBackoff:    cfg.HealBackoff,
		RotateEnabled:  cfg.Autoswitch,
		RotateInterval: cfg.AutoswitchInterval,
	})

	rp := reaper.New(lg)
	rp.Start()
	defer rp.Stop()

	startup := sup.Startup()
	lg.Info("startup cleanup done", "killed", startup.Killed, "errors", len(startup.Errors))

	sup.StartBackground()
	defer sup.Stop()

	port := server.ChoosePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		lg.Warn("preferred port busy, using fallback", "preferred", cfg.Port, "port", port)
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	httpSrv := server.NewHTTPServer(addr, server.New(sup, nil, lg))

	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", "addr", addr, "bin", client.Bin, "base_dir", client.BaseDir,
			"autoswitch", cfg.Autoswitch)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		lg.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		lg.Warn("http shutdown incomplete", "error", err)
	}
	return nil
}
