// Package tools implements the Tool Registry & Dispatcher and the eight
// Sandbox Tools, adapted from the teacher's tools package structure
// (registry.go, pathutil.go, bash.go) to the spec's tagged-text invocation
// protocol rather than native function-calling.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
)

// ExecuteFunc is the signature every sandbox tool implements.
type ExecuteFunc func(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error)

// ToolDef advertises a tool's name, description, usage template, and
// declared schema (spec §4.1: presence-check required fields, reject
// unknown fields).
type ToolDef struct {
	Name           string
	Description    string
	Usage          string
	RequiredFields []string
	OptionalFields []string
	Execute        ExecuteFunc
}

func (t *ToolDef) allowsField(name string) bool {
	for _, f := range t.RequiredFields {
		if f == name {
			return true
		}
	}
	for _, f := range t.OptionalFields {
		if f == name {
			return true
		}
	}
	return false
}

// Registry catalogs tools and dispatches exactly one invocation per call.
type Registry struct {
	tools   map[string]*ToolDef
	order   []string
	workDir string
	logger  *logging.Logger
}

// NewRegistry creates an empty registry rooted at workDir.
func NewRegistry(workDir string, logger *logging.Logger) *Registry {
	return &Registry{
		tools:   make(map[string]*ToolDef),
		workDir: workDir,
		logger:  logger,
	}
}

// Register adds a tool, returning an idempotence error on duplicate name.
func (r *Registry) Register(t *ToolDef) error {
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q is already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get returns a registered tool's definition, for prompt construction.
func (r *Registry) Get(name string) (*ToolDef, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all registered tools in registration order.
func (r *Registry) Definitions() []*ToolDef {
	out := make([]*ToolDef, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Dispatch detects a <TOOL>...</TOOL> block anywhere in modelText, parses
// and validates it, and executes exactly one call. found=false means no
// invocation was present in modelText (the phase loop's "else" branch).
func (r *Registry) Dispatch(ctx context.Context, modelText string) (result model.ToolResult, found bool, err error) {
	start := strings.Index(modelText, "<TOOL>")
	if start < 0 {
		return model.ToolResult{}, false, nil
	}
	rest := modelText[start+len("<TOOL>"):]
	end := strings.Index(rest, "</TOOL>")
	if end < 0 {
		return model.ToolResult{}, false, nil
	}
	inner := rest[:end]

	var raw map[string]json.RawMessage
	if uerr := json.Unmarshal([]byte(inner), &raw); uerr != nil {
		return failureResult(fmt.Sprintf("malformed tool invocation: %v", uerr)), true, nil
	}

	nameRaw, ok := raw["name"]
	if !ok {
		return failureResult(`tool invocation missing required field "name"`), true, nil
	}
	var name string
	if uerr := json.Unmarshal(nameRaw, &name); uerr != nil {
		return failureResult(`field "name" must be a string`), true, nil
	}

	def, ok := r.tools[name]
	if !ok {
		return failureResult(fmt.Sprintf("unknown tool: %s", name)), true, nil
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "name" {
			continue
		}
		if !def.allowsField(k) {
			return failureResult(fmt.Sprintf("unknown field %q for tool %q", k, name)), true, nil
		}
		var val any
		if uerr := json.Unmarshal(v, &val); uerr != nil {
			return failureResult(fmt.Sprintf("invalid value for field %q: %v", k, uerr)), true, nil
		}
		fields[k] = val
	}
	for _, req := range def.RequiredFields {
		if _, present := fields[req]; !present {
			return failureResult(fmt.Sprintf("missing required field %q for tool %q", req, name)), true, nil
		}
	}

	callStart := time.Now()
	res, execErr := def.Execute(ctx, r.workDir, fields)
	if r.logger != nil {
		r.logger.LogToolCall(name, callStart, time.Since(callStart))
	}
	if execErr != nil {
		return model.ToolResult{Status: model.ToolFailure, Output: execErr.Error()}, true, nil
	}
	return res, true, nil
}

func failureResult(msg string) model.ToolResult {
	return model.ToolResult{Status: model.ToolFailure, Output: msg}
}

// stringField/intField help tool implementations pull typed values out of
// the generic fields map produced by Dispatch's JSON decoding.
func stringField(fields map[string]any, name string) (string, bool) {
	v, ok := fields[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intField(fields map[string]any, name string) (int, bool) {
	v, ok := fields[name]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64) // encoding/json decodes numbers as float64 into any
	if !ok {
		return 0, false
	}
	return int(f), true
}
