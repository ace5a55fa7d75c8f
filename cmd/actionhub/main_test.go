// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/actionhub/pkg/errors"
)

func TestParseGlobalFlags(t *testing.T) {
	flags, rest, err := parseGlobalFlags([]string{
		"--config", "hub.yaml", "--set=log.level=debug", "--timeout", "5s", "--json",
		"actions", "list", "--domain", "workspace",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flags.ConfigPath != "hub.yaml" {
		t.Errorf("config path = %q", flags.ConfigPath)
	}
	if len(flags.ConfigArgs) != 3 {
		t.Errorf("expected --config pair and --set, got %v", flags.ConfigArgs)
	}
	if flags.Timeout != 5*time.Second || !flags.JSON {
		t.Errorf("unexpected flags %+v", flags)
	}
	if strings.Join(rest, " ") != "actions list --domain workspace" {
		t.Errorf("unexpected rest %v", rest)
	}
}

func TestParseGlobalFlagsDefaultsAndErrors(t *testing.T) {
	flags, rest, err := parseGlobalFlags(nil)
	if err != nil || len(rest) != 0 {
		t.Fatalf("unexpected %v %v", rest, err)
	}
	if flags.Timeout != 60*time.Second {
		t.Errorf("default timeout = %v", flags.Timeout)
	}

	for _, args := range [][]string{
		{"--config"},
		{"--timeout", "soon"},
		{"--bogus"},
	} {
		if _, _, err := parseGlobalFlags(args); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}

	flags, _, _ = parseGlobalFlags([]string{"-h", "repos"})
	if !flags.Help {
		t.Error("expected help")
	}
}

func TestCLIErrorOutput(t *testing.T) {
	err := NewNotFoundError("capability", "cap.none")
	if !strings.Contains(err.Error(), "actionhub capabilities list") {
		t.Errorf("hint missing from %q", err.Error())
	}
	if !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND to unwrap, got %v", err)
	}

	var buf bytes.Buffer
	err.PrintError(&buf, true)
	if !strings.Contains(buf.String(), `"code":"NOT_FOUND"`) {
		t.Errorf("unexpected JSON error %s", buf.String())
	}

	buf.Reset()
	PrintSimpleError(&buf, errors.New(errors.CodeInvalidInput, "bad", nil), false)
	if !strings.HasPrefix(buf.String(), "Error [INVALID_INPUT]: bad") {
		t.Errorf("unexpected text error %q", buf.String())
	}
}

func TestTruncateAndCells(t *testing.T) {
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	if got := normalizeCell("  \n"); got != "-" {
		t.Errorf("normalizeCell = %q", got)
	}
}
