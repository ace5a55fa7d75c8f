package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jllopis/actionhub/pkg/generate"
	"github.com/jllopis/actionhub/pkg/registry"
)

func (a *app) runGenerate(ctx context.Context, args []string) error {
	target := "all"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		target, args = args[0], args[1:]
	}
	fs := newFlagSet("generate")
	out := fs.String("out", a.cfg.Output.Dir, "output directory")
	stage := fs.Int("stage", -1, "graph: only repositories at this stage")
	domain := fs.String("domain", "", "graph: only repositories in this domain")
	tier := fs.String("tier", "", "graph: only repositories in this tier")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	reg, err := a.registry(ctx)
	if err != nil {
		return err
	}
	filter := generate.GraphFilter{Stage: optionalStage(*stage), Domain: *domain, Tier: registry.Tier(*tier)}

	var written []string
	switch target {
	case "openapi":
		doc, err := generate.OpenAPI(reg, a.compiler(), a.openAPIOptions())
		if err != nil {
			return err
		}
		path, err := generate.WriteOpenAPI(*out, doc)
		if err != nil {
			return err
		}
		written = append(written, path)
	case "graph":
		g := generate.Graph(reg, filter)
		a.warnUnresolved(g)
		written, err = generate.WriteGraph(*out, g)
		if err != nil {
			return err
		}
	case "all":
		a.warnUnresolved(generate.Graph(reg, filter))
		written, err = generate.WriteArtifacts(*out, reg, a.compiler(), a.openAPIOptions(), filter)
		if err != nil {
			return err
		}
	default:
		return NewInvalidArgumentError("target", fmt.Sprintf("unknown generate target %q", target))
	}

	if a.flags.JSON {
		return printJSON(a.out, map[string]any{"written": written})
	}
	for _, path := range written {
		fmt.Fprintf(a.out, "wrote %s\n", path)
	}
	return nil
}

func (a *app) warnUnresolved(g *generate.ServiceGraph) {
	for _, d := range g.Unresolved {
		a.logger.Warn("unresolved dependency",
			slog.String("repository", d.Repository),
			slog.String("reference", d.Reference))
	}
}
