package main

import (
	"context"
	"log/slog"

	"github.com/jllopis/actionhub/pkg/mcp"
	"github.com/jllopis/actionhub/pkg/server"
)

func (a *app) runServe(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.initTelemetry(ctx); err != nil {
		return err
	}

	d, err := a.dispatcher(ctx)
	if err != nil {
		return err
	}
	store, err := a.auditStore(ctx)
	if err != nil {
		return err
	}

	tools := mcp.NewServer("actionhub", version, d, a.logger)
	if err := tools.RegisterActions(a.reg, a.compiler()); err != nil {
		return err
	}

	srv := server.New(server.Options{
		Registry:     a.reg,
		Sources:      a.sources(),
		Schemas:      a.compiler(),
		Dispatcher:   d,
		Health:       a.healthProvider(),
		Audit:        store,
		OpenAPI:      a.openAPIOptions(),
		Logger:       a.logger,
		MCP:          tools.HTTPHandler(),
		Addr:         *addr,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	})
	a.logger.Info("actionhub listening",
		slog.String("addr", *addr),
		slog.Int("actions", len(a.reg.Actions())),
		slog.String("default_executor", d.Router().Default()))
	return srv.Run(ctx)
}

// runMCP exposes every action as an MCP tool over stdio. Logs go to stderr
// so stdout stays reserved for the protocol.
func (a *app) runMCP(ctx context.Context, _ []string) error {
	if e := a.cfg.Telemetry.Exporter; e == "" || e == "stdout" {
		a.logger.Warn("stdout telemetry exporter disabled in mcp mode")
		a.cfg.Telemetry.Exporter = "none"
	}
	if err := a.initTelemetry(ctx); err != nil {
		return err
	}
	d, err := a.dispatcher(ctx)
	if err != nil {
		return err
	}
	s := mcp.NewServer("actionhub", version, d, a.logger)
	if err := s.RegisterActions(a.reg, a.compiler()); err != nil {
		return err
	}
	a.logger.Info("mcp server ready", slog.Int("tools", len(s.Tools())))
	return s.ServeStdio()
}
