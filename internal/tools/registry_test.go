package tools

import (
	"context"
	"testing"

	"github.com/povagent/agent/internal/model"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(t.TempDir(), nil)
	if err := r.Register(&ToolDef{
		Name:           "echo",
		RequiredFields: []string{"msg"},
		Execute: func(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
			msg, _ := stringField(fields, "msg")
			return model.ToolResult{Status: model.ToolSuccess, Output: msg}, nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r
}

func TestDispatchNoInvocationFound(t *testing.T) {
	r := newTestRegistry(t)
	_, found, err := r.Dispatch(context.Background(), "plain text with no tool tags")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected found=false when no <TOOL> block present")
	}
}

func TestDispatchMalformedJSON(t *testing.T) {
	r := newTestRegistry(t)
	res, found, err := r.Dispatch(context.Background(), `<TOOL>{"name": "echo", </TOOL>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found=true for a present but malformed block")
	}
	if res.Status != model.ToolFailure {
		t.Fatalf("expected failure status, got %v", res.Status)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := newTestRegistry(t)
	res, found, err := r.Dispatch(context.Background(), `<TOOL>{"name": "nope"}</TOOL>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if res.Status != model.ToolFailure {
		t.Fatalf("expected failure status for unknown tool, got %v", res.Status)
	}
}

func TestDispatchMissingRequiredField(t *testing.T) {
	r := newTestRegistry(t)
	res, found, err := r.Dispatch(context.Background(), `<TOOL>{"name": "echo"}</TOOL>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if res.Status != model.ToolFailure {
		t.Fatalf("expected failure for missing required field, got %v", res.Status)
	}
}

func TestDispatchUnknownField(t *testing.T) {
	r := newTestRegistry(t)
	res, found, err := r.Dispatch(context.Background(), `<TOOL>{"name": "echo", "msg": "hi", "extra": "nope"}</TOOL>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if res.Status != model.ToolFailure {
		t.Fatalf("expected failure for unknown field, got %v", res.Status)
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := newTestRegistry(t)
	res, found, err := r.Dispatch(context.Background(), `preamble <TOOL>{"name": "echo", "msg": "hello"}</TOOL> trailer`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if res.Status != model.ToolSuccess || res.Output != "hello" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRegisterDuplicateNameErrors(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Register(&ToolDef{Name: "echo", Execute: func(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
		return model.ToolResult{}, nil
	}})
	if err == nil {
		t.Fatal("expected error registering a duplicate tool name")
	}
}

func TestDispatchOnlyFirstInvocationPerCall(t *testing.T) {
	r := newTestRegistry(t)
	res, found, err := r.Dispatch(context.Background(), `<TOOL>{"name": "echo", "msg": "first"}</TOOL> some text <TOOL>{"name": "echo", "msg": "second"}</TOOL>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if res.Output != "first" {
		t.Fatalf("expected only the first invocation to be dispatched, got %q", res.Output)
	}
}
