package schema

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jllopis/actionhub/pkg/errors"
)

// ErrorDetail is one schema violation.
type ErrorDetail struct {
	InstancePath string `json:"instance_path"`
	KeywordPath  string `json:"keyword_path"`
	Message      string `json:"message"`
}

// String renders "<instancePath> <message>", or just the message at the root.
func (d ErrorDetail) String() string {
	return strings.TrimSpace(d.InstancePath + " " + d.Message)
}

// Result is the outcome of validating one instance. A failing instance is
// not an error: Valid is false and Errors lists every violation.
type Result struct {
	Valid  bool          `json:"valid"`
	Errors []ErrorDetail `json:"errors,omitempty"`
}

// Messages returns the violations rendered with ErrorDetail.String.
func (r Result) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, d := range r.Errors {
		out = append(out, d.String())
	}
	return out
}

// Validate checks instance against the schema behind ref. The returned
// error is non-nil only when the schema cannot be loaded (SchemaLoadError)
// or the instance cannot be represented as JSON.
func (c *Compiler) Validate(ref string, instance any) (Result, error) {
	sch, err := c.Compile(ref)
	if err != nil {
		return Result{}, err
	}
	doc, err := Normalize(instance)
	if err != nil {
		return Result{}, errors.New(errors.CodeInvalidInput, "instance is not JSON-representable", err)
	}
	return check(sch, doc)
}

func check(sch *jsonschema.Schema, doc any) (Result, error) {
	err := sch.Validate(doc)
	if err == nil {
		return Result{Valid: true}, nil
	}
	var verr *jsonschema.ValidationError
	if !stderrors.As(err, &verr) {
		return Result{}, errors.New(errors.CodeInternal, "schema evaluation failed", err)
	}
	details := flatten(verr, nil)
	sort.SliceStable(details, func(i, j int) bool {
		if details[i].InstancePath != details[j].InstancePath {
			return details[i].InstancePath < details[j].InstancePath
		}
		return details[i].Message < details[j].Message
	})
	return Result{Valid: false, Errors: details}, nil
}

// flatten collects the leaf causes, which carry the specific messages.
func flatten(e *jsonschema.ValidationError, out []ErrorDetail) []ErrorDetail {
	if len(e.Causes) == 0 {
		return append(out, ErrorDetail{
			InstancePath: e.InstanceLocation,
			KeywordPath:  e.KeywordLocation,
			Message:      e.Message,
		})
	}
	for _, cause := range e.Causes {
		out = flatten(cause, out)
	}
	return out
}

// Normalize converts instance into the generic JSON value model
// (map[string]any, []any, json.Number, string, bool, nil) so values decoded
// from YAML or built from Go types validate the same as raw JSON payloads.
func Normalize(instance any) (any, error) {
	var raw []byte
	switch v := instance.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(instance)
		if err != nil {
			return nil, fmt.Errorf("encode instance: %w", err)
		}
		raw = b
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	return out, nil
}
