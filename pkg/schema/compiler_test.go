// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/actionhub/pkg/errors"
)

const emailAddress = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "string",
  "format": "email"
}`

const sendInput = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["to", "subject", "body"],
  "properties": {
    "to": { "$ref": "../common/email.json" },
    "subject": { "type": "string", "minLength": 1 },
    "body": { "type": "string" },
    "priority": { "type": "integer", "minimum": 1 }
  },
  "additionalProperties": false
}`

func writeSchemas(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"common/email.json":   emailAddress,
		"email/send.json":     sendInput,
		"broken/invalid.json": `{"type": `,
		"broken/badtype.json": `{"type": "banana"}`,
		"email/dangling.json": `{"$ref": "../common/missing.json"}`,
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestValidateAcceptsConformingInstance(t *testing.T) {
	c := NewCompiler(writeSchemas(t))

	res, err := c.Validate("email/send.json", map[string]any{
		"to":      "a@b.co",
		"subject": "hi",
		"body":    "x",
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateReportsViolations(t *testing.T) {
	c := NewCompiler(writeSchemas(t))

	tests := []struct {
		name     string
		instance any
		path     string
	}{
		{"missing required", map[string]any{"to": "a@b.co", "body": "x"}, ""},
		{"bad email format", map[string]any{"to": "not-an-email", "subject": "s", "body": "x"}, "/to"},
		{"extra property", map[string]any{"to": "a@b.co", "subject": "s", "body": "x", "bcc": "c@d.co"}, ""},
		{"integer constraint", map[string]any{"to": "a@b.co", "subject": "s", "body": "x", "priority": 0}, "/priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Validate("email/send.json", tt.instance)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.path, res.Errors[0].InstancePath)
			assert.NotEmpty(t, res.Errors[0].Message)
		})
	}
}

func TestValidateGoTypedInstances(t *testing.T) {
	c := NewCompiler(writeSchemas(t))
	type payload struct {
		To       string `json:"to"`
		Subject  string `json:"subject"`
		Body     string `json:"body"`
		Priority int    `json:"priority"`
	}
	res, err := c.Validate("email/send.json", payload{To: "a@b.co", Subject: "s", Body: "b", Priority: 2})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = c.Validate("email/send.json", []byte(`{"to":"a@b.co","subject":"s","body":"b","priority":1.5}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestSchemaLoadErrors(t *testing.T) {
	c := NewCompiler(writeSchemas(t))

	for _, ref := range []string{
		"email/missing.json",
		"broken/invalid.json",
		"broken/badtype.json",
		"email/dangling.json",
		"../outside.json",
		"",
		"https://schemas.example.com/unknown.json",
	} {
		t.Run(ref, func(t *testing.T) {
			_, err := c.Validate(ref, map[string]any{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeSchemaLoad), "got %v", err)
		})
	}
}

func TestCompileCachesByRef(t *testing.T) {
	dir := writeSchemas(t)
	c := NewCompiler(dir)

	first, err := c.Compile("email/send.json")
	require.NoError(t, err)
	assert.True(t, c.Cached("email/send.json"))

	// The cached schema survives the file disappearing.
	require.NoError(t, os.Remove(filepath.Join(dir, "email", "send.json")))
	second, err := c.Compile("email/send.json")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestConcurrentValidate(t *testing.T) {
	c := NewCompiler(writeSchemas(t))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Validate("email/send.json", map[string]any{"to": "a@b.co", "subject": "s", "body": "b"})
			assert.NoError(t, err)
			assert.True(t, res.Valid)
		}()
	}
	wg.Wait()
}

func TestAddResourceAndCrossReference(t *testing.T) {
	dir := writeSchemas(t)
	c := NewCompiler(dir)
	require.NoError(t, c.AddResource("https://schemas.example.com/id.json", []byte(`{"type":"string","pattern":"^cap\\."}`)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uses-remote.json"),
		[]byte(`{"type":"object","properties":{"id":{"$ref":"https://schemas.example.com/id.json"}}}`), 0o644))

	res, err := c.Validate("uses-remote.json", map[string]any{"id": "cap.email.send"})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = c.Validate("uses-remote.json", map[string]any{"id": "email"})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = c.Validate("https://schemas.example.com/id.json", "cap.x")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	assert.Error(t, c.AddResource("relative.json", []byte(`{}`)))
	assert.Error(t, c.AddResource("https://schemas.example.com/bad.json", []byte(`{`)))
}

func TestDocument(t *testing.T) {
	c := NewCompiler(writeSchemas(t))
	doc, err := c.Document("email/send.json")
	require.NoError(t, err)
	assert.Equal(t, "object", doc["type"])

	_, err = c.Document("email/none.json")
	assert.True(t, errors.Is(err, errors.CodeSchemaLoad))
}

func TestErrorDetailString(t *testing.T) {
	assert.Equal(t, "/to is invalid", ErrorDetail{InstancePath: "/to", Message: "is invalid"}.String())
	assert.Equal(t, "missing properties: 'to'", ErrorDetail{Message: "missing properties: 'to'"}.String())
}
