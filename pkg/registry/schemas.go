package registry

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Record schema URLs. They are registered as in-memory resources and never
// fetched.
const (
	SchemaBaseURL       = "https://schemas.actionhub.dev/registry/"
	RepositorySchemaRef = SchemaBaseURL + "repository.json"
	CapabilitySchemaRef = SchemaBaseURL + "capability.json"
	ActionSchemaRef     = SchemaBaseURL + "action.json"
)

// ResourceRegistrar accepts in-memory schema documents.
type ResourceRegistrar interface {
	AddResource(url string, doc []byte) error
}

// RecordSchemas reflects the JSON Schemas of the record types. The action
// schema takes its capability_id rule from the capability schema by $ref.
func RecordSchemas() (map[string][]byte, error) {
	out := make(map[string][]byte, 3)
	for ref, v := range map[string]any{
		RepositorySchemaRef: Repository{},
		CapabilitySchemaRef: Capability{},
		ActionSchemaRef:     Action{},
	} {
		s := reflectSchema(v)
		s.ID = jsonschema.ID(ref)
		if ref == ActionSchemaRef {
			s.Properties.Set("capability_id", &jsonschema.Schema{Ref: "capability.json#/properties/id"})
		}
		raw, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s schema: %w", reflect.TypeOf(v).Name(), err)
		}
		out[ref] = raw
	}
	return out, nil
}

// RegisterRecordSchemas adds the record schemas to r.
func RegisterRecordSchemas(r ResourceRegistrar) error {
	docs, err := RecordSchemas()
	if err != nil {
		return err
	}
	for ref, doc := range docs {
		if err := r.AddResource(ref, doc); err != nil {
			return err
		}
	}
	return nil
}

func reflectSchema(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		ExpandedStruct: true,
	}
	return r.Reflect(v)
}
