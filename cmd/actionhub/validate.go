package main

import (
	"context"
	"fmt"

	"github.com/jllopis/actionhub/pkg/errors"
	"github.com/jllopis/actionhub/pkg/registry"
)

// runValidate checks the registry documents record by record. The report
// is printed in full; an invalid registry makes the command fail.
func (a *app) runValidate(ctx context.Context, args []string) error {
	target := "all"
	if len(args) > 0 {
		target = args[0]
	}

	var (
		report *registry.Report
		err    error
	)
	switch target {
	case "all":
		report, err = registry.Validate(ctx, a.sources(), a.compiler())
	case "repos":
		report, err = registry.ValidateRepositories(ctx, a.sources(), a.compiler())
	case "actions":
		report, err = registry.ValidateActions(ctx, a.sources(), a.compiler())
	default:
		return NewInvalidArgumentError("target", fmt.Sprintf("unknown validation target %q", target))
	}
	if err != nil {
		return NewRegistryError(err)
	}

	if a.flags.JSON {
		if err := printJSON(a.out, report); err != nil {
			return err
		}
	} else {
		a.printReport(target, report)
	}
	if !report.Valid {
		return errors.New(errors.CodeConfig, "registry validation failed", nil)
	}
	return nil
}

func (a *app) printReport(target string, report *registry.Report) {
	if target == "all" || target == "repos" {
		printSection(a, "repositories", report.Repositories)
	}
	if target == "all" || target == "actions" {
		printSection(a, "capabilities", report.Capabilities)
		printSection(a, "actions", report.Actions)
	}
	for _, p := range report.Integrity {
		fmt.Fprintf(a.out, "integrity: %s\n", p)
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(a.out, "warning: %s\n", w)
	}
	if report.Valid {
		fmt.Fprintln(a.out, "registry is valid")
	}
}

func printSection(a *app, name string, s registry.SectionReport) {
	fmt.Fprintf(a.out, "%s: %d/%d valid\n", name, s.Valid, s.Total)
	for _, issue := range s.Invalid {
		fmt.Fprintf(a.out, "  %s (#%d)\n", issue.ID, issue.Index)
		for _, msg := range issue.Errors {
			fmt.Fprintf(a.out, "    - %s\n", msg)
		}
	}
}
