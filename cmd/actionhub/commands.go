package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jllopis/actionhub/pkg/audit"
	"github.com/jllopis/actionhub/pkg/executor"
	"github.com/jllopis/actionhub/pkg/registry"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError(fs.Name(), err.Error())
	}
	return nil
}

// optionalStage turns a negative --stage into "no filter".
func optionalStage(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}

func subcommand(args []string, usage string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, NewInvalidArgumentError("subcommand", "usage: "+usage)
	}
	return args[0], args[1:], nil
}

// show prints a single record, as YAML unless --json was given.
func (a *app) show(v any) error {
	if a.flags.JSON {
		return printJSON(a.out, v)
	}
	return printYAML(a.out, v)
}

func (a *app) runRepos(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args, "actionhub repos list|show")
	if err != nil {
		return err
	}
	reg, err := a.registry(ctx)
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := newFlagSet("repos list")
		stage := fs.Int("stage", -1, "stage")
		domain := fs.String("domain", "", "domain")
		tier := fs.String("tier", "", "tier")
		status := fs.String("status", "", "status")
		tag := fs.String("tag", "", "tag")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		repos := reg.FilterRepositories(registry.RepositoryFilter{
			Stage:  optionalStage(*stage),
			Domain: *domain,
			Tier:   registry.Tier(*tier),
			Status: registry.Status(*status),
			Tag:    *tag,
		})
		if a.flags.JSON {
			return printJSON(a.out, repos)
		}
		w := newTabWriter(a.out)
		writeRow(w, "ID", "NAME", "STAGE", "DOMAIN", "TIER", "STATUS", "TAGS")
		for _, r := range repos {
			writeRow(w, r.ID, r.Name, strconv.Itoa(r.Stage), r.Domain, string(r.Tier), string(r.Status), strings.Join(r.Tags, ","))
		}
		return w.Flush()
	case "show":
		if len(rest) == 0 {
			return NewInvalidArgumentError("id", "usage: actionhub repos show <id|name>")
		}
		repo, ok := reg.Repository(rest[0])
		if !ok {
			return NewNotFoundError("repository", rest[0])
		}
		return a.show(repo)
	default:
		return NewInvalidArgumentError("subcommand", fmt.Sprintf("unknown repos subcommand %q", sub))
	}
}

func (a *app) runCapabilities(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args, "actionhub capabilities list|show")
	if err != nil {
		return err
	}
	reg, err := a.registry(ctx)
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := newFlagSet("capabilities list")
		domain := fs.String("domain", "", "domain")
		tag := fs.String("tag", "", "tag")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		caps := reg.FilterCapabilities(registry.CapabilityFilter{Domain: *domain, Tag: *tag})
		if a.flags.JSON {
			return printJSON(a.out, caps)
		}
		w := newTabWriter(a.out)
		writeRow(w, "ID", "NAME", "DOMAIN", "ACTIONS", "DESCRIPTION")
		for _, c := range caps {
			n := len(reg.ActionsForCapability(c.ID))
			writeRow(w, c.ID, c.Name, c.Domain, strconv.Itoa(n), truncate(c.Description, 60))
		}
		return w.Flush()
	case "show":
		if len(rest) == 0 {
			return NewInvalidArgumentError("id", "usage: actionhub capabilities show <id>")
		}
		c, ok := reg.Capability(rest[0])
		if !ok {
			return NewNotFoundError("capability", rest[0])
		}
		ids := make([]string, 0)
		for _, act := range reg.ActionsForCapability(c.ID) {
			ids = append(ids, act.ID)
		}
		return a.show(struct {
			registry.Capability `yaml:",inline"`
			Actions             []string `yaml:"actions" json:"actions"`
		}{c, ids})
	default:
		return NewInvalidArgumentError("subcommand", fmt.Sprintf("unknown capabilities subcommand %q", sub))
	}
}

func (a *app) runActions(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args, "actionhub actions list|show")
	if err != nil {
		return err
	}
	reg, err := a.registry(ctx)
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := newFlagSet("actions list")
		repo := fs.String("repo", "", "owning repository")
		capability := fs.String("capability", "", "capability id")
		domain := fs.String("domain", "", "domain")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		actions := reg.FilterActions(registry.ActionFilter{Repo: *repo, Capability: *capability, Domain: *domain})
		if a.flags.JSON {
			return printJSON(a.out, actions)
		}
		w := newTabWriter(a.out)
		writeRow(w, "ID", "METHOD", "PATH", "REPO", "AUTH", "EXECUTOR")
		for _, act := range actions {
			id := act.ID
			if act.Deprecated {
				id += " (deprecated)"
			}
			writeRow(w, id, act.HTTP.Method, act.HTTP.Path, act.Repo, string(act.Auth), act.ExecutorName())
		}
		return w.Flush()
	case "show":
		if len(rest) == 0 {
			return NewInvalidArgumentError("id", "usage: actionhub actions show <id>")
		}
		act, ok := reg.Action(rest[0])
		if !ok {
			return NewNotFoundError("action", rest[0])
		}
		return a.show(act)
	default:
		return NewInvalidArgumentError("subcommand", fmt.Sprintf("unknown actions subcommand %q", sub))
	}
}

func (a *app) runExecutors(_ context.Context, args []string) error {
	if len(args) > 0 && args[0] != "list" {
		return NewInvalidArgumentError("subcommand", "usage: actionhub executors list")
	}
	router, err := executor.FromConfig(a.cfg.Gateway, a.logger)
	if err != nil {
		return NewConfigError(err, a.flags.ConfigPath)
	}

	type row struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		Default bool   `json:"default"`
	}
	rows := make([]row, 0)
	for _, name := range router.ListAvailable() {
		typ := a.cfg.Gateway.Executors[name].Type
		if typ == "" {
			typ = name
		}
		rows = append(rows, row{Name: name, Type: typ, Default: name == router.Default()})
	}
	if a.flags.JSON {
		return printJSON(a.out, map[string]any{"default": router.Default(), "executors": rows})
	}
	w := newTabWriter(a.out)
	writeRow(w, "NAME", "TYPE", "DEFAULT")
	for _, r := range rows {
		def := ""
		if r.Default {
			def = "*"
		}
		writeRow(w, r.Name, r.Type, def)
	}
	return w.Flush()
}

func (a *app) runAudit(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "list" {
		return NewInvalidArgumentError("subcommand", "usage: actionhub audit list")
	}
	fs := newFlagSet("audit list")
	action := fs.String("action", "", "action id")
	exec := fs.String("executor", "", "executor name")
	outcome := fs.String("outcome", "", "success or error")
	limit := fs.Int("limit", 50, "maximum entries")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}

	store, err := a.auditStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return NewInvalidArgumentError("audit.backend", "audit is disabled; set audit.backend to sqlite")
	}
	entries, err := store.List(ctx, audit.Filter{
		ActionID: *action,
		Executor: *exec,
		Outcome:  *outcome,
		Limit:    *limit,
	})
	if err != nil {
		return err
	}
	if a.flags.JSON {
		return printJSON(a.out, entries)
	}
	w := newTabWriter(a.out)
	writeRow(w, "STARTED", "ACTION", "EXECUTOR", "OUTCOME", "DURATION", "ERROR")
	for _, e := range entries {
		writeRow(w, e.StartedAt.Format("2006-01-02T15:04:05"), e.ActionID, e.Executor, e.Outcome,
			e.Duration().String(), truncate(e.Error, 50))
	}
	return w.Flush()
}

// runSchema writes the record schemas generated from the registry types.
func (a *app) runSchema(args []string) error {
	if len(args) == 0 || args[0] != "export" {
		return NewInvalidArgumentError("subcommand", "usage: actionhub schema export [--out dir]")
	}
	fs := newFlagSet("schema export")
	out := fs.String("out", filepath.Join(a.cfg.Output.Dir, "schemas"), "output directory")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}

	docs, err := registry.RecordSchemas()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	refs := make([]string, 0, len(docs))
	for ref := range docs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		path := filepath.Join(*out, filepath.Base(ref))
		if err := os.WriteFile(path, docs[ref], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(a.out, "wrote %s\n", path)
	}
	return nil
}
