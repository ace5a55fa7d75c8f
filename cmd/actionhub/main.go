// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the actionhub CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/actionhub/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(NewInvalidArgumentError("flags", err.Error()), false)
	}
	if global.Help || len(args) == 0 {
		printUsage(os.Stdout)
		return
	}
	switch args[0] {
	case "help":
		printUsage(os.Stdout)
		return
	case "version":
		fmt.Printf("actionhub %s\n", version)
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		fatal(NewConfigError(err, global.ConfigPath), global.JSON)
	}

	a := newApp(cfg, global, os.Stdout)
	defer a.Close()

	if err := a.run(ctx, args); err != nil {
		a.Close()
		fatal(err, global.JSON)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "repos":
		return a.runRepos(ctx, rest)
	case "capabilities", "caps":
		return a.runCapabilities(ctx, rest)
	case "actions":
		return a.runActions(ctx, rest)
	case "validate":
		return a.runValidate(ctx, rest)
	case "generate":
		return a.runGenerate(ctx, rest)
	case "dispatch":
		return a.runDispatch(ctx, rest)
	case "executors":
		return a.runExecutors(ctx, rest)
	case "audit":
		return a.runAudit(ctx, rest)
	case "schema":
		return a.runSchema(rest)
	case "serve":
		return a.runServe(ctx, rest)
	case "mcp":
		return a.runMCP(ctx, rest)
	default:
		return NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{Timeout: 60 * time.Second}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			value, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
			i++
		case strings.HasPrefix(arg, "--timeout="):
			value, err := time.ParseDuration(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `actionhub: capability registry and action gateway

Usage:
  actionhub [global flags] <command> [args]

Global flags:
  --config <path>      Path to actionhub.yaml
  --set key=value      Override config (repeatable)
  --timeout <dur>      Dispatch timeout (default 60s)
  --json               JSON output

Commands:
  repos list [--stage N] [--domain D] [--tier T] [--status S] [--tag T]
  repos show <id|name>
  capabilities list [--domain D] [--tag T]
  capabilities show <id>
  actions list [--repo R] [--capability C] [--domain D]
  actions show <id>
  validate [repos|actions|all]
  generate [openapi|graph|all] [--out dir] [--stage N] [--domain D] [--tier T]
  dispatch <action-id> --input <json> [--context <json>]
  executors list
  audit list [--action A] [--executor E] [--outcome O] [--limit N]
  schema export [--out dir]
  serve [--addr :8080]
  mcp
  version
  help
`)
}

func printJSON(w io.Writer, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func printYAML(w io.Writer, value any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return err
	}
	return enc.Close()
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "\n", " "))
	if value == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func fatal(err error, asJSON bool) {
	if cliErr, ok := err.(*CLIError); ok {
		cliErr.PrintError(os.Stderr, asJSON)
	} else {
		PrintSimpleError(os.Stderr, err, asJSON)
	}
	os.Exit(1)
}
