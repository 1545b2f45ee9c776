package tools

import (
	"time"

	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/sandbox"
)

// NewReadOnlyRegistry builds the registry FlowReasoning and BranchReasoning
// use: read, listdir, grep, find (spec §4.4.1, §4.4.2).
func NewReadOnlyRegistry(workDir string, logger *logging.Logger) (*Registry, error) {
	r := NewRegistry(workDir, logger)
	for _, t := range []*ToolDef{ReadTool(), ListdirTool(), GrepTool(), FindTool()} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewTestGenRegistry builds the full registry TestGen uses: the read-only
// set plus write, mkdir, run, reset (spec §4.4.3).
func NewTestGenRegistry(workDir string, logger *logging.Logger, docker sandbox.Runtime, projectSlug, buildContextRoot string, buildTimeout, runTimeout time.Duration) (*Registry, error) {
	r := NewRegistry(workDir, logger)
	defs := []*ToolDef{
		ReadTool(), ListdirTool(), GrepTool(), FindTool(),
		WriteTool(), MkdirTool(), ResetTool(),
		RunTool(docker, projectSlug, buildContextRoot, buildTimeout, runTimeout),
	}
	for _, t := range defs {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
