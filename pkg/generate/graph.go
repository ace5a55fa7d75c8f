// SPDX-License-Identifier: Apache-2.0

package generate

import (
	"github.com/jllopis/actionhub/pkg/registry"
)

// GraphFilter restricts the repositories included in a graph. Zero fields
// do not constrain.
type GraphFilter struct {
	Stage  *int
	Domain string
	Tier   registry.Tier
}

// ServiceGraph is the repository dependency graph.
type ServiceGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	// Unresolved lists internal dependencies that name no repository in
	// the filtered set. They produce no edge.
	Unresolved []registry.DanglingDependency `json:"-"`
}

type Node struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	Metadata NodeMetadata `json:"metadata"`
}

type NodeMetadata struct {
	Stage   int             `json:"stage"`
	Domain  string          `json:"domain"`
	Tier    registry.Tier   `json:"tier"`
	Status  registry.Status `json:"status"`
	Runtime bool            `json:"runtime"`
	Tags    []string        `json:"tags,omitempty"`
}

type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

// Graph builds the dependency graph of the repositories matching f.
func Graph(reg *registry.Registry, f GraphFilter) *ServiceGraph {
	repos := reg.FilterRepositories(registry.RepositoryFilter{
		Stage:  f.Stage,
		Domain: f.Domain,
		Tier:   f.Tier,
	})

	g := &ServiceGraph{
		Nodes: make([]Node, 0, len(repos)),
		Edges: []Edge{},
	}
	byKey := make(map[string]string, len(repos)*2)
	for _, r := range repos {
		g.Nodes = append(g.Nodes, Node{
			ID:   r.ID,
			Name: r.Name,
			Type: "service",
			Metadata: NodeMetadata{
				Stage:   r.Stage,
				Domain:  r.Domain,
				Tier:    r.Tier,
				Status:  r.Status,
				Runtime: r.Runtime,
				Tags:    r.Tags,
			},
		})
		if _, taken := byKey[r.Name]; !taken && r.Name != "" {
			byKey[r.Name] = r.ID
		}
	}
	for _, r := range repos {
		byKey[r.ID] = r.ID
	}

	for _, r := range repos {
		for _, dep := range r.Dependencies.Internal {
			to, ok := byKey[dep]
			if !ok {
				g.Unresolved = append(g.Unresolved, registry.DanglingDependency{Repository: r.ID, Reference: dep})
				continue
			}
			g.Edges = append(g.Edges, Edge{From: r.ID, To: to, Type: "internal", Label: "depends on"})
		}
	}
	return g
}
