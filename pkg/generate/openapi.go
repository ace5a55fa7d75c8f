// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package generate builds the OpenAPI document and the service dependency
// graph from a loaded registry.
package generate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jllopis/actionhub/pkg/registry"
)

// OpenAPIVersion is the OpenAPI release the generator emits.
const OpenAPIVersion = "3.1.0"

// SchemaSource returns raw JSON Schema documents. *schema.Compiler satisfies it.
type SchemaSource interface {
	Document(ref string) (map[string]any, error)
}

// Document is an OpenAPI 3.1 document. Maps marshal with sorted keys, so
// output is byte-stable for a given registry.
type Document struct {
	OpenAPI    string               `json:"openapi"`
	Info       Info                 `json:"info"`
	Servers    []Server             `json:"servers,omitempty"`
	Paths      map[string]*PathItem `json:"paths"`
	Components Components           `json:"components"`
	Tags       []Tag                `json:"tags"`
}

type Info struct {
	Title       string   `json:"title"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Contact     *Contact `json:"contact,omitempty"`
}

type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PathItem holds one operation per HTTP method.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
}

// Operation returns the operation bound to method, or nil.
func (p *PathItem) Operation(method string) *Operation {
	if p == nil {
		return nil
	}
	switch strings.ToUpper(method) {
	case "GET":
		return p.Get
	case "PUT":
		return p.Put
	case "POST":
		return p.Post
	case "DELETE":
		return p.Delete
	case "PATCH":
		return p.Patch
	}
	return nil
}

func (p *PathItem) set(method string, op *Operation) error {
	switch strings.ToUpper(method) {
	case "GET":
		p.Get = op
	case "PUT":
		p.Put = op
	case "POST":
		p.Post = op
	case "DELETE":
		p.Delete = op
	case "PATCH":
		p.Patch = op
	default:
		return fmt.Errorf("unsupported HTTP method %q", method)
	}
	return nil
}

type Operation struct {
	OperationID string                `json:"operationId"`
	Summary     string                `json:"summary,omitempty"`
	Description string                `json:"description,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
	Parameters  []Parameter           `json:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty"`
	Responses   map[string]Response   `json:"responses"`
	Security    []map[string][]string `json:"security,omitempty"`
	Deprecated  bool                  `json:"deprecated,omitempty"`
}

type Parameter struct {
	Name     string         `json:"name"`
	In       string         `json:"in"`
	Required bool           `json:"required"`
	Schema   map[string]any `json:"schema"`
}

type RequestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

type MediaType struct {
	Schema map[string]any `json:"schema"`
}

type Components struct {
	Schemas         map[string]any            `json:"schemas"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes"`
}

type SecurityScheme struct {
	Type         string      `json:"type"`
	Description  string      `json:"description,omitempty"`
	Name         string      `json:"name,omitempty"`
	In           string      `json:"in,omitempty"`
	Scheme       string      `json:"scheme,omitempty"`
	BearerFormat string      `json:"bearerFormat,omitempty"`
	Flows        *OAuthFlows `json:"flows,omitempty"`
}

type OAuthFlows struct {
	AuthorizationCode *OAuthFlow `json:"authorizationCode,omitempty"`
}

type OAuthFlow struct {
	AuthorizationURL string            `json:"authorizationUrl"`
	TokenURL         string            `json:"tokenUrl"`
	Scopes           map[string]string `json:"scopes"`
}

// OpenAPIOptions carries the document metadata.
type OpenAPIOptions struct {
	Title            string
	Version          string
	Description      string
	Contact          *Contact
	Servers          []Server
	AuthorizationURL string
	TokenURL         string
}

func (o OpenAPIOptions) withDefaults() OpenAPIOptions {
	if o.Title == "" {
		o.Title = "Capability Actions API"
	}
	if o.Version == "" {
		o.Version = "1.0.0"
	}
	if o.AuthorizationURL == "" {
		o.AuthorizationURL = "https://auth.example.com/oauth/authorize"
	}
	if o.TokenURL == "" {
		o.TokenURL = "https://auth.example.com/oauth/token"
	}
	return o
}

var pathParam = regexp.MustCompile(`\{([^{}]+)\}`)

// OpenAPI builds the document for every action in reg. A schema that cannot
// be loaded fails the whole generation.
func OpenAPI(reg *registry.Registry, schemas SchemaSource, opts OpenAPIOptions) (*Document, error) {
	opts = opts.withDefaults()
	domains := reg.Domains()

	doc := &Document{
		OpenAPI: OpenAPIVersion,
		Info: Info{
			Title:       opts.Title,
			Version:     opts.Version,
			Description: opts.Description,
			Contact:     opts.Contact,
		},
		Servers: opts.Servers,
		Paths:   make(map[string]*PathItem),
		Components: Components{
			Schemas:         make(map[string]any),
			SecuritySchemes: securitySchemes(opts, domains),
		},
		Tags: make([]Tag, 0, len(domains)),
	}
	for _, d := range domains {
		doc.Tags = append(doc.Tags, Tag{Name: d, Description: capitalize(d) + " domain capabilities"})
	}

	for _, action := range reg.Actions() {
		capability, ok := reg.Capability(action.CapabilityID)
		if !ok {
			continue
		}
		op := &Operation{
			OperationID: action.ID,
			Summary:     capability.Name,
			Description: describe(action, capability),
			Tags:        []string{capability.Domain},
			Parameters:  pathParameters(action.HTTP.Path),
			Responses:   standardResponses(),
			Security:    security(action.Auth, capability.Domain),
			Deprecated:  action.Deprecated,
		}

		if action.InputSchemaRef != "" {
			name := action.ID + "_request"
			if err := addComponent(doc, schemas, name, action.InputSchemaRef); err != nil {
				return nil, err
			}
			op.RequestBody = &RequestBody{
				Required: true,
				Content:  jsonContent(name),
			}
		}
		if action.OutputSchemaRef != "" {
			name := action.ID + "_response"
			if err := addComponent(doc, schemas, name, action.OutputSchemaRef); err != nil {
				return nil, err
			}
			success := op.Responses["200"]
			success.Content = jsonContent(name)
			op.Responses["200"] = success
		}

		item := doc.Paths[action.HTTP.Path]
		if item == nil {
			item = &PathItem{}
			doc.Paths[action.HTTP.Path] = item
		}
		if err := item.set(action.HTTP.Method, op); err != nil {
			return nil, fmt.Errorf("action %s: %w", action.ID, err)
		}
	}
	return doc, nil
}

func addComponent(doc *Document, schemas SchemaSource, name, ref string) error {
	if schemas == nil {
		return fmt.Errorf("schema %s referenced but no schema source configured", ref)
	}
	sch, err := schemas.Document(ref)
	if err != nil {
		return err
	}
	doc.Components.Schemas[name] = sch
	return nil
}

func jsonContent(component string) map[string]MediaType {
	return map[string]MediaType{
		"application/json": {Schema: map[string]any{"$ref": "#/components/schemas/" + component}},
	}
}

func standardResponses() map[string]Response {
	return map[string]Response{
		"200": {Description: "Successful response"},
		"400": {Description: "Bad request - invalid parameters"},
		"401": {Description: "Unauthorized - missing or invalid authentication"},
		"403": {Description: "Forbidden - insufficient permissions"},
		"429": {Description: "Too many requests - rate limit exceeded"},
		"500": {Description: "Internal server error"},
	}
}

func security(auth registry.AuthMode, domain string) []map[string][]string {
	switch auth {
	case registry.AuthInternalAPIKey:
		return []map[string][]string{{"apiKey": {}}}
	case registry.AuthOAuth2:
		return []map[string][]string{{"oauth2": {domain + ":write"}}}
	case registry.AuthJWT:
		return []map[string][]string{{"jwt": {}}}
	default:
		return nil
	}
}

func securitySchemes(opts OpenAPIOptions, domains []string) map[string]SecurityScheme {
	scopes := make(map[string]string, len(domains)*2)
	for _, d := range domains {
		scopes[d+":read"] = "Read " + d + " data"
		scopes[d+":write"] = "Write " + d + " data"
	}
	return map[string]SecurityScheme{
		"apiKey": {
			Type:        "apiKey",
			In:          "header",
			Name:        "X-API-Key",
			Description: "Internal API key for service-to-service authentication",
		},
		"oauth2": {
			Type: "oauth2",
			Flows: &OAuthFlows{AuthorizationCode: &OAuthFlow{
				AuthorizationURL: opts.AuthorizationURL,
				TokenURL:         opts.TokenURL,
				Scopes:           scopes,
			}},
		},
		"jwt": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "JWT token for authenticated requests",
		},
	}
}

func describe(action registry.Action, capability registry.Capability) string {
	desc := action.Description
	if desc == "" {
		desc = capability.Description
	}
	if action.Deprecated && action.DeprecationNotice != "" {
		desc += "\n\n**Deprecated:** " + action.DeprecationNotice
	}
	rl := capability.RateLimit
	if rl == nil || (rl.RequestsPerMinute == 0 && rl.RequestsPerHour == 0) {
		return desc
	}
	var b strings.Builder
	b.WriteString(desc)
	b.WriteString("\n\n**Rate Limits:**\n")
	if rl.RequestsPerMinute > 0 {
		fmt.Fprintf(&b, "- %d requests per minute\n", rl.RequestsPerMinute)
	}
	if rl.RequestsPerHour > 0 {
		fmt.Fprintf(&b, "- %d requests per hour\n", rl.RequestsPerHour)
	}
	return b.String()
}

func pathParameters(path string) []Parameter {
	var params []Parameter
	for _, m := range pathParam.FindAllStringSubmatch(path, -1) {
		params = append(params, Parameter{
			Name:     m[1],
			In:       "path",
			Required: true,
			Schema:   map[string]any{"type": "string"},
		})
	}
	return params
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
