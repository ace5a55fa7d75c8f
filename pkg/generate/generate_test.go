package generate

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jllopis/actionhub/pkg/registry"
	"github.com/jllopis/actionhub/pkg/schema"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	repos := []registry.Repository{
		{ID: "gw", Name: "gateway", Stage: 0, Domain: "platform", Tier: registry.Tier0, Status: registry.StatusActive,
			Dependencies: registry.Dependencies{Internal: []string{"workspace-service", "media-service"}}},
		{ID: "ws", Name: "workspace-service", Stage: 1, Domain: "workspace", Tier: registry.Tier1, Status: registry.StatusActive,
			Dependencies: registry.Dependencies{Internal: []string{"ml"}}},
		{ID: "ml", Name: "ml-service", Stage: 2, Domain: "ml", Tier: registry.Tier2, Status: registry.StatusExperimental},
	}
	caps := []registry.Capability{
		{ID: "cap.email.send", Name: "Send Email", Description: "Send email", Domain: "email",
			RateLimit: &registry.RateLimit{RequestsPerMinute: 60, RequestsPerHour: 1000}},
		{ID: "cap.calendar.create_event", Name: "Create Event", Description: "Create a calendar event", Domain: "calendar"},
		{ID: "cap.ml.summarize", Name: "Summarize", Domain: "ml"},
	}
	actions := []registry.Action{
		{ID: "act.email.send", CapabilityID: "cap.email.send", Repo: "workspace-service", Service: "email",
			HTTP: registry.HTTPBinding{Method: "POST", Path: "/email/send"}, Auth: registry.AuthInternalAPIKey,
			InputSchemaRef: "email/send.input.json", OutputSchemaRef: "email/send.output.json"},
		{ID: "act.calendar.create_event", CapabilityID: "cap.calendar.create_event", Repo: "workspace-service", Service: "calendar",
			HTTP: registry.HTTPBinding{Method: "PUT", Path: "/calendars/{calendar_id}/events"}, Auth: registry.AuthOAuth2},
		{ID: "act.ml.summarize", CapabilityID: "cap.ml.summarize", Repo: "ml-service", Service: "summarizer",
			HTTP: registry.HTTPBinding{Method: "POST", Path: "/summarize"}, Auth: registry.AuthPublic,
			Description: "Summarize text"},
		{ID: "act.ml.summarize_v0", CapabilityID: "cap.ml.summarize", Repo: "ml-service", Service: "summarizer",
			HTTP: registry.HTTPBinding{Method: "GET", Path: "/summarize"}, Auth: registry.AuthJWT,
			Deprecated: true, DeprecationNotice: "use act.ml.summarize"},
	}
	reg, err := registry.New(repos, caps, actions)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func testSchemas() *schema.Compiler {
	return schema.NewCompiler("../../schemas")
}

func TestOpenAPIEmailAction(t *testing.T) {
	doc, err := OpenAPI(testRegistry(t), testSchemas(), OpenAPIOptions{})
	if err != nil {
		t.Fatalf("OpenAPI: %v", err)
	}
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("expected openapi 3.1.0, got %s", doc.OpenAPI)
	}

	op := doc.Paths["/email/send"].Operation("POST")
	if op == nil {
		t.Fatal("expected post operation on /email/send")
	}
	if op.OperationID != "act.email.send" || op.Summary != "Send Email" {
		t.Errorf("unexpected operation identity %s / %s", op.OperationID, op.Summary)
	}
	if !reflect.DeepEqual(op.Tags, []string{"email"}) {
		t.Errorf("expected tags [email], got %v", op.Tags)
	}
	if len(op.Security) != 1 {
		t.Fatalf("expected one security requirement, got %v", op.Security)
	}
	if _, ok := op.Security[0]["apiKey"]; !ok {
		t.Errorf("expected apiKey security, got %v", op.Security)
	}
	for _, code := range []string{"200", "400", "401", "403", "429", "500"} {
		if _, ok := op.Responses[code]; !ok {
			t.Errorf("missing %s response", code)
		}
	}
	if op.RequestBody == nil || op.RequestBody.Content["application/json"].Schema["$ref"] != "#/components/schemas/act.email.send_request" {
		t.Errorf("unexpected request body %+v", op.RequestBody)
	}
	if op.Responses["200"].Content["application/json"].Schema["$ref"] != "#/components/schemas/act.email.send_response" {
		t.Errorf("expected response schema ref")
	}
	if _, ok := doc.Components.Schemas["act.email.send_request"]; !ok {
		t.Errorf("expected request component schema")
	}
	if !strings.Contains(op.Description, "- 60 requests per minute\n- 1000 requests per hour") {
		t.Errorf("expected rate limit note, got %q", op.Description)
	}
	if !strings.HasPrefix(op.Description, "Send email") {
		t.Errorf("expected capability description fallback, got %q", op.Description)
	}
}

func TestOpenAPISecurityAndParameters(t *testing.T) {
	doc, err := OpenAPI(testRegistry(t), testSchemas(), OpenAPIOptions{Title: "Test API"})
	if err != nil {
		t.Fatalf("OpenAPI: %v", err)
	}
	if doc.Info.Title != "Test API" {
		t.Errorf("expected custom title, got %s", doc.Info.Title)
	}

	cal := doc.Paths["/calendars/{calendar_id}/events"].Operation("PUT")
	if cal == nil {
		t.Fatal("expected put operation")
	}
	if got := cal.Security[0]["oauth2"]; !reflect.DeepEqual(got, []string{"calendar:write"}) {
		t.Errorf("expected calendar:write scope, got %v", got)
	}
	if len(cal.Parameters) != 1 || cal.Parameters[0].Name != "calendar_id" || cal.Parameters[0].In != "path" {
		t.Errorf("unexpected parameters %+v", cal.Parameters)
	}

	summarize := doc.Paths["/summarize"]
	if summarize.Post == nil || summarize.Get == nil {
		t.Fatal("expected both methods on /summarize")
	}
	if summarize.Post.Security != nil {
		t.Errorf("public action must carry no security, got %v", summarize.Post.Security)
	}
	if _, ok := summarize.Get.Security[0]["jwt"]; !ok {
		t.Errorf("expected jwt security")
	}
	if !summarize.Get.Deprecated || !strings.Contains(summarize.Get.Description, "use act.ml.summarize") {
		t.Errorf("expected deprecation to be documented")
	}

	names := make([]string, 0, len(doc.Tags))
	for _, tag := range doc.Tags {
		names = append(names, tag.Name)
	}
	if !reflect.DeepEqual(names, []string{"email", "calendar", "ml"}) {
		t.Errorf("expected tags in first-seen order, got %v", names)
	}
	if doc.Tags[0].Description != "Email domain capabilities" {
		t.Errorf("unexpected tag description %q", doc.Tags[0].Description)
	}

	schemes := doc.Components.SecuritySchemes
	if schemes["apiKey"].Name != "X-API-Key" || schemes["apiKey"].In != "header" {
		t.Errorf("unexpected apiKey scheme %+v", schemes["apiKey"])
	}
	if schemes["jwt"].BearerFormat != "JWT" {
		t.Errorf("unexpected jwt scheme %+v", schemes["jwt"])
	}
	if _, ok := schemes["oauth2"].Flows.AuthorizationCode.Scopes["ml:write"]; !ok {
		t.Errorf("expected ml scopes in oauth2 flow")
	}
}

func TestOpenAPIDeterministic(t *testing.T) {
	reg := testRegistry(t)
	a, err := OpenAPI(reg, testSchemas(), OpenAPIOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := OpenAPI(reg, testSchemas(), OpenAPIOptions{})
	if err != nil {
		t.Fatal(err)
	}
	rawA, _ := MarshalIndent(a)
	rawB, _ := MarshalIndent(b)
	if !bytes.Equal(rawA, rawB) {
		t.Fatal("expected byte-identical documents")
	}

	var first, second any
	if err := json.Unmarshal(rawA, &first); err != nil {
		t.Fatal(err)
	}
	again, _ := json.Marshal(first)
	if err := json.Unmarshal(again, &second); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected JSON round trip to preserve the document")
	}
}

func TestOpenAPIMissingSchemaFails(t *testing.T) {
	caps := []registry.Capability{{ID: "cap.x.y", Name: "X", Domain: "x"}}
	actions := []registry.Action{{ID: "act.x", CapabilityID: "cap.x.y", Repo: "r", Service: "s",
		HTTP: registry.HTTPBinding{Method: "POST", Path: "/x"}, Auth: registry.AuthPublic, InputSchemaRef: "nope/missing.json"}}
	reg, err := registry.New(nil, caps, actions)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := OpenAPI(reg, testSchemas(), OpenAPIOptions{}); err == nil {
		t.Fatal("expected error for missing schema")
	}
}

func TestGraph(t *testing.T) {
	reg := testRegistry(t)
	g := Graph(reg, GraphFilter{})

	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes))
	}
	want := []Edge{
		{From: "gw", To: "ws", Type: "internal", Label: "depends on"},
		{From: "ws", To: "ml", Type: "internal", Label: "depends on"},
	}
	if !reflect.DeepEqual(g.Edges, want) {
		t.Errorf("unexpected edges %+v", g.Edges)
	}
	if len(g.Unresolved) != 1 || g.Unresolved[0].Reference != "media-service" {
		t.Errorf("expected media-service to be unresolved, got %+v", g.Unresolved)
	}
	if g.Nodes[0].Type != "service" || g.Nodes[0].Metadata.Tier != registry.Tier0 {
		t.Errorf("unexpected node %+v", g.Nodes[0])
	}

	raw, _ := json.Marshal(g)
	if strings.Contains(string(raw), "media-service") {
		t.Errorf("unresolved references must not be serialised")
	}
}

func TestGraphFilterDropsEdgesOutsideSet(t *testing.T) {
	reg := testRegistry(t)
	one := 1
	tests := []struct {
		name   string
		filter GraphFilter
		nodes  int
	}{
		{"stage", GraphFilter{Stage: &one}, 1},
		{"tier", GraphFilter{Tier: registry.Tier0}, 1},
		{"domain", GraphFilter{Domain: "ml"}, 1},
		{"none", GraphFilter{Domain: "nothing"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Graph(reg, tt.filter)
			if len(g.Nodes) != tt.nodes {
				t.Fatalf("expected %d nodes, got %d", tt.nodes, len(g.Nodes))
			}
			ids := map[string]bool{}
			for _, n := range g.Nodes {
				ids[n.ID] = true
			}
			for _, e := range g.Edges {
				if !ids[e.From] || !ids[e.To] {
					t.Errorf("edge %+v leaves the node set", e)
				}
			}
		})
	}
}

func TestToMermaid(t *testing.T) {
	out := ToMermaid(Graph(testRegistry(t), GraphFilter{}))
	for _, want := range []string{
		"graph TD\n",
		"  gw[\"gateway\"]:::tier0\n",
		"  ws[\"workspace-service\"]:::tier1\n",
		"  ml[\"ml-service\"]:::tier2\n",
		"  gw -->|\"depends on\"| ws\n",
		"  classDef tier0 fill:#ff6b6b",
		"  classDef tier2 fill:#69db7c",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("mermaid output missing %q:\n%s", want, out)
		}
	}
	if got := mermaidID("workspace-service.v2"); got != "workspace_2dservice_2ev2" {
		t.Errorf("unexpected mermaid id %s", got)
	}
}

func collidingRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	repos := []registry.Repository{
		{ID: "auth-service", Name: "auth-service", Stage: 1, Domain: "auth", Tier: registry.Tier1, Status: registry.StatusActive},
		{ID: "auth_service", Name: `auth_service "legacy" \ v1`, Stage: 2, Domain: "auth", Tier: registry.Tier2, Status: registry.StatusDeprecated,
			Dependencies: registry.Dependencies{Internal: []string{"auth-service"}}},
	}
	reg, err := registry.New(repos, nil, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func TestMermaidIDsStayDistinct(t *testing.T) {
	ids := []string{"auth-service", "auth_service", "auth.service", "auth__2dservice", "authservice", "auth_2dservice"}
	seen := map[string]string{}
	for _, id := range ids {
		got := mermaidID(id)
		if prev, dup := seen[got]; dup {
			t.Errorf("%q and %q both render as %q", prev, id, got)
		}
		seen[got] = id
	}

	out := ToMermaid(Graph(collidingRegistry(t), GraphFilter{}))
	for _, want := range []string{
		"  auth_2dservice[\"auth-service\"]:::tier1\n",
		"  auth__service[\"auth_service #quot;legacy#quot; \\ v1\"]:::tier2\n",
		"  auth__service -->|\"depends on\"| auth_2dservice\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("mermaid output missing %q:\n%s", want, out)
		}
	}
}

func TestToDotEscapesQuotesAndBackslashes(t *testing.T) {
	out := ToDot(Graph(collidingRegistry(t), GraphFilter{}))
	for _, want := range []string{
		`"auth_service" [label="auth_service \"legacy\" \\ v1\n(stage 2)"`,
		`"auth_service" -> "auth-service" [label="depends on"];`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dot output missing %q:\n%s", want, out)
		}
	}
	if got := dotID("café\tx"); got != "\"café\tx\"" {
		t.Errorf("dotID kept Go escaping: %s", got)
	}
}

func TestToDot(t *testing.T) {
	out := ToDot(Graph(testRegistry(t), GraphFilter{}))
	for _, want := range []string{
		"digraph services {\n  rankdir=LR;\n",
		`"gw" [label="gateway\n(stage 0)", color="red", fillcolor="red20", style="filled,rounded"];`,
		`"ws" [label="workspace-service\n(stage 1)", color="blue"`,
		`"ml" [label="ml-service\n(stage 2)", color="green"`,
		`"gw" -> "ws" [label="depends on"];`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dot output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("dot output must close the digraph")
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "generated")
	paths, err := WriteArtifacts(dir, testRegistry(t), testSchemas(), OpenAPIOptions{}, GraphFilter{})
	if err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("expected 4 artifacts, got %v", paths)
	}
	for _, name := range []string{GraphJSONFile, GraphMermaidFile, GraphDotFile, OpenAPIFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, GraphJSONFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "{\n  \"nodes\": [") {
		t.Errorf("expected 2-space indented JSON, got %s", raw[:20])
	}
}
