package registry

import (
	"context"
	"fmt"

	"github.com/jllopis/actionhub/pkg/schema"
)

// RecordIssue lists the schema violations of one record.
type RecordIssue struct {
	Index  int      `json:"index"`
	ID     string   `json:"id"`
	Errors []string `json:"errors"`
}

// SectionReport summarises one document section.
type SectionReport struct {
	Total   int           `json:"total"`
	Valid   int           `json:"valid"`
	Invalid []RecordIssue `json:"invalid,omitempty"`
}

// Report is the outcome of validating both registry documents without
// failing fast.
type Report struct {
	Valid        bool          `json:"valid"`
	Repositories SectionReport `json:"repositories"`
	Capabilities SectionReport `json:"capabilities"`
	Actions      SectionReport `json:"actions"`
	Integrity    []string      `json:"integrity,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// Validate checks every record of both documents against the record
// schemas and, when they are clean, the cross-record invariants. Unreadable
// documents and schema problems are returned as errors; record problems
// go in the report.
func Validate(ctx context.Context, src Sources, c *schema.Compiler) (*Report, error) {
	rep, err := ValidateRepositories(ctx, src, c)
	if err != nil {
		return nil, err
	}
	act, err := ValidateActions(ctx, src, c)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Repositories: rep.Repositories,
		Capabilities: act.Capabilities,
		Actions:      act.Actions,
	}
	if len(rep.Repositories.Invalid) == 0 && len(act.Capabilities.Invalid) == 0 && len(act.Actions.Invalid) == 0 {
		l := NewLoader(src)
		repos, err := l.LoadRepositories(ctx)
		if err != nil {
			return nil, err
		}
		caps, actions, err := l.LoadCapabilitiesAndActions(ctx)
		if err != nil {
			return nil, err
		}
		reg, err := New(repos, caps, actions)
		if err != nil {
			report.Integrity = unwrapProblems(err)
		} else {
			for _, d := range reg.DanglingDependencies() {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("repository %s depends on unknown %s", d.Repository, d.Reference))
			}
		}
	}
	report.Valid = len(report.Repositories.Invalid) == 0 &&
		len(report.Capabilities.Invalid) == 0 &&
		len(report.Actions.Invalid) == 0 &&
		len(report.Integrity) == 0
	return report, nil
}

// ValidateRepositories validates the repositories document only.
func ValidateRepositories(_ context.Context, src Sources, c *schema.Compiler) (*Report, error) {
	_, raw, err := readDocument(src.ReposPath, "repos")
	if err != nil {
		return nil, err
	}
	if err := RegisterRecordSchemas(c); err != nil {
		return nil, err
	}
	section, err := validateSection(c, RepositorySchemaRef, "repos", raw)
	if err != nil {
		return nil, err
	}
	return &Report{Valid: len(section.Invalid) == 0, Repositories: section}, nil
}

// ValidateActions validates the capabilities and actions document only.
func ValidateActions(_ context.Context, src Sources, c *schema.Compiler) (*Report, error) {
	_, raw, err := readDocument(src.ActionsPath, "capabilities", "actions")
	if err != nil {
		return nil, err
	}
	if err := RegisterRecordSchemas(c); err != nil {
		return nil, err
	}
	caps, err := validateSection(c, CapabilitySchemaRef, "capabilities", raw)
	if err != nil {
		return nil, err
	}
	actions, err := validateSection(c, ActionSchemaRef, "actions", raw)
	if err != nil {
		return nil, err
	}
	return &Report{
		Valid:        len(caps.Invalid) == 0 && len(actions.Invalid) == 0,
		Capabilities: caps,
		Actions:      actions,
	}, nil
}

func validateSection(c *schema.Compiler, ref, key string, raw rawDocument) (SectionReport, error) {
	list, _ := raw[key].([]any)
	issues, err := validateList(c, ref, key, list)
	if err != nil {
		return SectionReport{}, err
	}
	return SectionReport{Total: len(list), Valid: len(list) - len(issues), Invalid: issues}, nil
}

func validateList(c *schema.Compiler, ref, key string, list []any) ([]RecordIssue, error) {
	var issues []RecordIssue
	for i, record := range list {
		res, err := c.Validate(ref, record)
		if err != nil {
			return nil, err
		}
		if res.Valid {
			continue
		}
		issues = append(issues, RecordIssue{Index: i, ID: recordID(record, key, i), Errors: res.Messages()})
	}
	return issues, nil
}

func recordID(record any, key string, i int) string {
	var m map[string]any
	switch v := record.(type) {
	case map[string]any:
		m = v
	case rawDocument:
		m = v
	}
	if id, ok := m["id"].(string); ok && id != "" {
		return id
	}
	return fmt.Sprintf("%s[%d]", key, i)
}

func unwrapProblems(err error) []string {
	type multi interface{ Unwrap() []error }
	var out []string
	var walk func(error)
	walk = func(e error) {
		if m, ok := e.(multi); ok {
			for _, inner := range m.Unwrap() {
				walk(inner)
			}
			return
		}
		if u, ok := e.(interface{ Unwrap() error }); ok && u.Unwrap() != nil {
			walk(u.Unwrap())
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	return out
}
