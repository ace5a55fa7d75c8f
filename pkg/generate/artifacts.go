package generate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jllopis/actionhub/pkg/registry"
)

// Artifact file names written by WriteArtifacts.
const (
	GraphJSONFile    = "service-graph.json"
	GraphMermaidFile = "service-graph.mmd"
	GraphDotFile     = "service-graph.dot"
	OpenAPIFile      = "openapi-actions.json"
)

// MarshalIndent encodes v as 2-space indented JSON with a trailing newline.
func MarshalIndent(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// WriteGraph writes the JSON, Mermaid and DOT renderings of g into dir and
// returns the written paths.
func WriteGraph(dir string, g *ServiceGraph) ([]string, error) {
	raw, err := MarshalIndent(g)
	if err != nil {
		return nil, fmt.Errorf("encode graph: %w", err)
	}
	files := []struct {
		name string
		data []byte
	}{
		{GraphJSONFile, raw},
		{GraphMermaidFile, []byte(ToMermaid(g))},
		{GraphDotFile, []byte(ToDot(g))},
	}
	var paths []string
	for _, f := range files {
		p, err := writeFile(dir, f.name, f.data)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// WriteOpenAPI writes doc into dir and returns the written path.
func WriteOpenAPI(dir string, doc *Document) (string, error) {
	raw, err := MarshalIndent(doc)
	if err != nil {
		return "", fmt.Errorf("encode openapi: %w", err)
	}
	return writeFile(dir, OpenAPIFile, raw)
}

// WriteArtifacts generates and writes every artifact for reg.
func WriteArtifacts(dir string, reg *registry.Registry, schemas SchemaSource, opts OpenAPIOptions, f GraphFilter) ([]string, error) {
	doc, err := OpenAPI(reg, schemas, opts)
	if err != nil {
		return nil, err
	}
	paths, err := WriteGraph(dir, Graph(reg, f))
	if err != nil {
		return paths, err
	}
	p, err := WriteOpenAPI(dir, doc)
	if err != nil {
		return paths, err
	}
	return append(paths, p), nil
}

func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return p, nil
}
