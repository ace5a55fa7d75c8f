// Package registry holds the immutable catalog of repositories,
// capabilities and actions loaded from the registry documents.
package registry

import (
	stderrors "errors"
	"fmt"
	"slices"
	"sort"

	"github.com/jllopis/actionhub/pkg/errors"
)

// Registry is built once and never mutated. Every accessor returns copies,
// so a *Registry is safe for concurrent use without locking.
type Registry struct {
	repos   []Repository
	caps    []Capability
	actions []Action

	repoByKey  map[string]int
	capByID    map[string]int
	actionByID map[string]int
}

// DanglingDependency is an internal dependency that names no known repository.
type DanglingDependency struct {
	Repository string `json:"repository"`
	Reference  string `json:"reference"`
}

// Stats summarises registry contents.
type Stats struct {
	Repositories int            `json:"repositories"`
	Capabilities int            `json:"capabilities"`
	Actions      int            `json:"actions"`
	Deprecated   int            `json:"deprecated_actions"`
	ByDomain     map[string]int `json:"actions_by_domain"`
}

// New builds a Registry and enforces the load-time invariants: unique ids
// for every record kind and an existing capability for every action.
func New(repos []Repository, caps []Capability, actions []Action) (*Registry, error) {
	r := &Registry{
		repos:      make([]Repository, 0, len(repos)),
		caps:       make([]Capability, 0, len(caps)),
		actions:    make([]Action, 0, len(actions)),
		repoByKey:  make(map[string]int, len(repos)*2),
		capByID:    make(map[string]int, len(caps)),
		actionByID: make(map[string]int, len(actions)),
	}

	var problems []error
	repoIDs := make(map[string]struct{}, len(repos))
	for _, repo := range repos {
		if _, dup := repoIDs[repo.ID]; dup {
			problems = append(problems, fmt.Errorf("duplicate repository id %q", repo.ID))
			continue
		}
		repoIDs[repo.ID] = struct{}{}
		r.repos = append(r.repos, repo.Clone())
	}
	// ids win over names when a name collides with another record's id.
	for i, repo := range r.repos {
		if _, taken := r.repoByKey[repo.Name]; !taken && repo.Name != "" {
			r.repoByKey[repo.Name] = i
		}
	}
	for i, repo := range r.repos {
		r.repoByKey[repo.ID] = i
	}

	for _, c := range caps {
		if _, dup := r.capByID[c.ID]; dup {
			problems = append(problems, fmt.Errorf("duplicate capability id %q", c.ID))
			continue
		}
		r.capByID[c.ID] = len(r.caps)
		r.caps = append(r.caps, c.Clone())
	}

	for _, a := range actions {
		if _, dup := r.actionByID[a.ID]; dup {
			problems = append(problems, fmt.Errorf("duplicate action id %q", a.ID))
			continue
		}
		if _, ok := r.capByID[a.CapabilityID]; !ok {
			problems = append(problems, fmt.Errorf("action %q references unknown capability %q", a.ID, a.CapabilityID))
			continue
		}
		r.actionByID[a.ID] = len(r.actions)
		r.actions = append(r.actions, a.Clone())
	}

	if len(problems) > 0 {
		return nil, errors.ConfigError("", "registry integrity check failed", stderrors.Join(problems...)).
			WithContext("problems", len(problems))
	}
	return r, nil
}

// Repository looks a repository up by id or name.
func (r *Registry) Repository(idOrName string) (Repository, bool) {
	i, ok := r.repoByKey[idOrName]
	if !ok {
		return Repository{}, false
	}
	return r.repos[i].Clone(), true
}

// Capability looks a capability up by id.
func (r *Registry) Capability(id string) (Capability, bool) {
	i, ok := r.capByID[id]
	if !ok {
		return Capability{}, false
	}
	return r.caps[i].Clone(), true
}

// Action looks an action up by id.
func (r *Registry) Action(id string) (Action, bool) {
	i, ok := r.actionByID[id]
	if !ok {
		return Action{}, false
	}
	return r.actions[i].Clone(), true
}

// Repositories returns every repository in document order.
func (r *Registry) Repositories() []Repository {
	return r.FilterRepositories(RepositoryFilter{})
}

// Capabilities returns every capability in document order.
func (r *Registry) Capabilities() []Capability {
	return r.FilterCapabilities(CapabilityFilter{})
}

// Actions returns every action in document order.
func (r *Registry) Actions() []Action {
	return r.FilterActions(ActionFilter{})
}

// ActionsForCapability returns the actions realizing capability id.
func (r *Registry) ActionsForCapability(id string) []Action {
	return r.FilterActions(ActionFilter{Capability: id})
}

// ActionsForRepository returns the actions served by the named repository.
func (r *Registry) ActionsForRepository(name string) []Action {
	return r.FilterActions(ActionFilter{Repo: name})
}

// DanglingDependencies lists internal dependencies naming no repository.
func (r *Registry) DanglingDependencies() []DanglingDependency {
	var out []DanglingDependency
	for _, repo := range r.repos {
		for _, dep := range repo.Dependencies.Internal {
			if _, ok := r.repoByKey[dep]; !ok {
				out = append(out, DanglingDependency{Repository: repo.ID, Reference: dep})
			}
		}
	}
	return out
}

// Domains returns the distinct capability domains in first-seen order.
func (r *Registry) Domains() []string {
	var out []string
	for _, c := range r.caps {
		if c.Domain != "" && !slices.Contains(out, c.Domain) {
			out = append(out, c.Domain)
		}
	}
	return out
}

// Stats counts registry records.
func (r *Registry) Stats() Stats {
	s := Stats{
		Repositories: len(r.repos),
		Capabilities: len(r.caps),
		Actions:      len(r.actions),
		ByDomain:     make(map[string]int),
	}
	for _, a := range r.actions {
		if a.Deprecated {
			s.Deprecated++
		}
		c := r.caps[r.capByID[a.CapabilityID]]
		s.ByDomain[c.Domain]++
	}
	return s
}

// SortedActionIDs returns all action ids in lexical order.
func (r *Registry) SortedActionIDs() []string {
	ids := make([]string, 0, len(r.actions))
	for _, a := range r.actions {
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)
	return ids
}
