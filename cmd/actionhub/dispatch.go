package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jllopis/actionhub/pkg/dispatch"
	"github.com/jllopis/actionhub/pkg/errors"
)

func (a *app) runDispatch(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return NewInvalidArgumentError("action", "usage: actionhub dispatch <action-id> --input <json>")
	}
	actionID := args[0]
	fs := newFlagSet("dispatch")
	input := fs.String("input", "{}", "input object as JSON, or @file")
	callerCtx := fs.String("context", "", "caller context as JSON, or @file")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}

	req := dispatch.Request{}
	if err := decodeObject("input", *input, &req.Input); err != nil {
		return err
	}
	if *callerCtx != "" {
		if err := decodeObject("context", *callerCtx, &req.Context); err != nil {
			return err
		}
	}

	d, err := a.dispatcher(ctx)
	if err != nil {
		return err
	}
	resp := d.Dispatch(ctx, actionID, req)
	if err := printJSON(a.out, resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(errors.ErrorCode(resp.Code), resp.Error, nil)
	}
	return nil
}

// decodeObject parses a JSON object given inline or as @path.
func decodeObject(name, value string, dst *map[string]any) error {
	raw := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return NewInvalidArgumentError(name, fmt.Sprintf("read %s: %v", path, err))
		}
		raw = data
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewInvalidArgumentError(name, fmt.Sprintf("--%s must be a JSON object: %v", name, err))
	}
	if *dst == nil {
		*dst = map[string]any{}
	}
	return nil
}
