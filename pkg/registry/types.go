// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import "slices"

// Tier is the criticality class of a repository.
type Tier string

const (
	Tier0 Tier = "tier_0"
	Tier1 Tier = "tier_1"
	Tier2 Tier = "tier_2"
)

// Status is the maturity of a repository.
type Status string

const (
	StatusActive       Status = "active"
	StatusPartial      Status = "partial"
	StatusScaffold     Status = "scaffold"
	StatusExperimental Status = "experimental"
	StatusDeprecated   Status = "deprecated"
)

// AuthMode tags how an action endpoint is protected. It is descriptive only.
type AuthMode string

const (
	AuthPublic         AuthMode = "public"
	AuthInternalAPIKey AuthMode = "internal_api_key"
	AuthOAuth2         AuthMode = "oauth2"
	AuthJWT            AuthMode = "jwt"
)

// Repository is a deployable service known to the registry.
type Repository struct {
	ID             string       `yaml:"id" json:"id" jsonschema:"minLength=1"`
	Name           string       `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Repo           string       `yaml:"repo" json:"repo" jsonschema:"minLength=1"`
	Stage          int          `yaml:"stage" json:"stage" jsonschema:"minimum=0"`
	Domain         string       `yaml:"domain" json:"domain" jsonschema:"minLength=1"`
	Tier           Tier         `yaml:"tier" json:"tier" jsonschema:"enum=tier_0,enum=tier_1,enum=tier_2"`
	Status         Status       `yaml:"status" json:"status" jsonschema:"enum=active,enum=partial,enum=scaffold,enum=experimental,enum=deprecated"`
	Runtime        bool         `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	Stack          string       `yaml:"stack,omitempty" json:"stack,omitempty"`
	Description    string       `yaml:"description,omitempty" json:"description,omitempty"`
	Owner          string       `yaml:"owner,omitempty" json:"owner,omitempty"`
	Languages      []string     `yaml:"languages,omitempty" json:"languages,omitempty"`
	RuntimeEnv     string       `yaml:"runtime_env,omitempty" json:"runtime_env,omitempty"`
	HealthEndpoint string       `yaml:"health_endpoint,omitempty" json:"health_endpoint,omitempty"`
	Tags           []string     `yaml:"tags,omitempty" json:"tags,omitempty"`
	Entrypoints    *Entrypoints `yaml:"entrypoints,omitempty" json:"entrypoints,omitempty"`
	Datastores     []Datastore  `yaml:"datastores,omitempty" json:"datastores,omitempty"`
	Dependencies   Dependencies `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Entrypoints lists the ways a repository can be invoked.
type Entrypoints struct {
	API     []APIEntrypoint `yaml:"api,omitempty" json:"api,omitempty"`
	Workers []string        `yaml:"workers,omitempty" json:"workers,omitempty"`
	CLI     []string        `yaml:"cli,omitempty" json:"cli,omitempty"`
}

type APIEntrypoint struct {
	Path        string `yaml:"path" json:"path"`
	Method      string `yaml:"method" json:"method" jsonschema:"enum=GET,enum=POST,enum=PUT,enum=PATCH,enum=DELETE"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type Datastore struct {
	Type        string `yaml:"type" json:"type" jsonschema:"enum=postgres,enum=redis,enum=firestore,enum=mongodb,enum=s3,enum=gcs"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Dependencies holds references to other repositories (internal, by id or
// name) and to third-party systems (external).
type Dependencies struct {
	Internal []string `yaml:"internal,omitempty" json:"internal,omitempty"`
	External []string `yaml:"external,omitempty" json:"external,omitempty"`
}

// Capability is an abstract business ability such as sending an email.
type Capability struct {
	ID                  string     `yaml:"id" json:"id" jsonschema:"pattern=^cap\\.[a-z0-9_]+(\\.[a-z0-9_-]+)+$"`
	Name                string     `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Description         string     `yaml:"description" json:"description"`
	Domain              string     `yaml:"domain" json:"domain" jsonschema:"minLength=1"`
	Tags                []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	DefaultOwnerRepo    string     `yaml:"default_owner_repo,omitempty" json:"default_owner_repo,omitempty"`
	RequiredPermissions []string   `yaml:"required_permissions,omitempty" json:"required_permissions,omitempty"`
	RateLimit           *RateLimit `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// RateLimit is a per-capability request budget. Zero means unlimited.
type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty" json:"requests_per_minute,omitempty" jsonschema:"minimum=0"`
	RequestsPerHour   int `yaml:"requests_per_hour,omitempty" json:"requests_per_hour,omitempty" jsonschema:"minimum=0"`
}

// Action is a concrete invocable endpoint realizing a capability.
type Action struct {
	ID                string         `yaml:"id" json:"id" jsonschema:"pattern=^act\\.[a-z0-9_]+(\\.[a-z0-9_-]+)*$"`
	Name              string         `yaml:"name,omitempty" json:"name,omitempty"`
	CapabilityID      string         `yaml:"capability_id" json:"capability_id"`
	Repo              string         `yaml:"repo" json:"repo" jsonschema:"minLength=1"`
	Service           string         `yaml:"service" json:"service" jsonschema:"minLength=1"`
	HTTP              HTTPBinding    `yaml:"http" json:"http"`
	Auth              AuthMode       `yaml:"auth" json:"auth" jsonschema:"enum=public,enum=internal_api_key,enum=oauth2,enum=jwt"`
	InputSchemaRef    string         `yaml:"input_schema_ref,omitempty" json:"input_schema_ref,omitempty"`
	OutputSchemaRef   string         `yaml:"output_schema_ref,omitempty" json:"output_schema_ref,omitempty"`
	Description       string         `yaml:"description,omitempty" json:"description,omitempty"`
	Metadata          map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Examples          []any          `yaml:"examples,omitempty" json:"examples,omitempty"`
	Deprecated        bool           `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	DeprecationNotice string         `yaml:"deprecation_notice,omitempty" json:"deprecation_notice,omitempty"`
}

// HTTPBinding is the HTTP method and path an action is served on.
type HTTPBinding struct {
	Method  string `yaml:"method" json:"method" jsonschema:"enum=GET,enum=POST,enum=PUT,enum=PATCH,enum=DELETE"`
	Path    string `yaml:"path" json:"path" jsonschema:"pattern=^/"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"format=uri"`
}

// DisplayName is the action name, falling back to its id.
func (a Action) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// ExecutorName returns the executor requested in metadata, or "".
// llm_provider and llmProvider are accepted as legacy spellings.
func (a Action) ExecutorName() string {
	for _, key := range []string{"executor", "llm_provider", "llmProvider"} {
		if v, ok := a.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a copy that shares no slices with r.
func (r Repository) Clone() Repository {
	out := r
	out.Languages = slices.Clone(r.Languages)
	out.Tags = slices.Clone(r.Tags)
	out.Datastores = slices.Clone(r.Datastores)
	out.Dependencies.Internal = slices.Clone(r.Dependencies.Internal)
	out.Dependencies.External = slices.Clone(r.Dependencies.External)
	if r.Entrypoints != nil {
		ep := *r.Entrypoints
		ep.API = slices.Clone(r.Entrypoints.API)
		ep.Workers = slices.Clone(r.Entrypoints.Workers)
		ep.CLI = slices.Clone(r.Entrypoints.CLI)
		out.Entrypoints = &ep
	}
	return out
}

// Clone returns a copy that shares no slices with c.
func (c Capability) Clone() Capability {
	out := c
	out.Tags = slices.Clone(c.Tags)
	out.RequiredPermissions = slices.Clone(c.RequiredPermissions)
	if c.RateLimit != nil {
		rl := *c.RateLimit
		out.RateLimit = &rl
	}
	return out
}

// Clone returns a copy of a. Metadata is copied one level deep.
func (a Action) Clone() Action {
	out := a
	out.Examples = slices.Clone(a.Examples)
	if a.Metadata != nil {
		out.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
