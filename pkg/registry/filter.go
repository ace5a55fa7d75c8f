package registry

import "slices"

// RepositoryFilter narrows FilterRepositories. Zero-valued fields match
// everything; set fields are combined with AND.
type RepositoryFilter struct {
	Stage  *int
	Domain string
	Tier   Tier
	Status Status
	Tag    string
}

// CapabilityFilter narrows FilterCapabilities.
type CapabilityFilter struct {
	Domain string
	Tag    string
}

// ActionFilter narrows FilterActions. Domain matches through the owning
// capability.
type ActionFilter struct {
	Repo       string
	Capability string
	Domain     string
}

func (f RepositoryFilter) match(r Repository) bool {
	if f.Stage != nil && r.Stage != *f.Stage {
		return false
	}
	if f.Domain != "" && r.Domain != f.Domain {
		return false
	}
	if f.Tier != "" && r.Tier != f.Tier {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Tag != "" && !slices.Contains(r.Tags, f.Tag) {
		return false
	}
	return true
}

// FilterRepositories returns repositories matching f in document order.
func (r *Registry) FilterRepositories(f RepositoryFilter) []Repository {
	out := make([]Repository, 0, len(r.repos))
	for _, repo := range r.repos {
		if f.match(repo) {
			out = append(out, repo.Clone())
		}
	}
	return out
}

// FilterCapabilities returns capabilities matching f in document order.
func (r *Registry) FilterCapabilities(f CapabilityFilter) []Capability {
	out := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		if f.Domain != "" && c.Domain != f.Domain {
			continue
		}
		if f.Tag != "" && !slices.Contains(c.Tags, f.Tag) {
			continue
		}
		out = append(out, c.Clone())
	}
	return out
}

// FilterActions returns actions matching f in document order.
func (r *Registry) FilterActions(f ActionFilter) []Action {
	out := make([]Action, 0, len(r.actions))
	for _, a := range r.actions {
		if f.Repo != "" && a.Repo != f.Repo {
			continue
		}
		if f.Capability != "" && a.CapabilityID != f.Capability {
			continue
		}
		if f.Domain != "" && r.caps[r.capByID[a.CapabilityID]].Domain != f.Domain {
			continue
		}
		out = append(out, a.Clone())
	}
	return out
}
