package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/povagent/agent/internal/model"
)

// MkdirTool returns the directory-creation tool definition (spec §4.2: mkdir).
// Like write, it fails rather than recursing through missing ancestors.
func MkdirTool() *ToolDef {
	return &ToolDef{
		Name:           "mkdir",
		Description:    "Create a directory. The parent directory must already exist.",
		Usage:          `<TOOL>{"name": "mkdir", "path": "/abs/path"}</TOOL>`,
		RequiredFields: []string{"path"},
		Execute:        mkdirExecute,
	}
}

func mkdirExecute(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
	path, _ := stringField(fields, "path")
	if path == "" {
		return failureResult("path is required"), nil
	}

	absPath, err := ValidatePath(workDir, path)
	if err != nil {
		return failureResult(err.Error()), nil
	}

	parent := filepath.Dir(absPath)
	if info, statErr := os.Stat(parent); statErr != nil || !info.IsDir() {
		return failureResult(fmt.Sprintf("parent directory %s does not exist", parent)), nil
	}

	if err := os.Mkdir(absPath, 0755); err != nil {
		return failureResult(fmt.Sprintf("mkdir %s: %v", path, err)), nil
	}

	return model.ToolResult{Status: model.ToolSuccess, Output: ""}, nil
}
