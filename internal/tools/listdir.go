package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/povagent/agent/internal/model"
)

// ListdirTool returns the directory-listing tool definition (spec §4.2: listdir).
func ListdirTool() *ToolDef {
	return &ToolDef{
		Name:           "listdir",
		Description:    "List a directory's entries, one per line. Hidden entries (dot-prefixed) are elided.",
		Usage:          `<TOOL>{"name": "listdir", "directory": "/abs/path"}</TOOL>`,
		RequiredFields: []string{"directory"},
		Execute:        listdirExecute,
	}
}

func listdirExecute(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
	dir, _ := stringField(fields, "directory")
	if dir == "" {
		return failureResult("directory is required"), nil
	}

	absPath, err := ValidatePath(workDir, dir)
	if err != nil {
		return failureResult(err.Error()), nil
	}

	info, statErr := os.Stat(absPath)
	if statErr != nil || !info.IsDir() {
		return failureResult(fmt.Sprintf("%s is not a directory", dir)), nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return failureResult(fmt.Sprintf("listdir %s: %v", dir, err)), nil
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}

	return model.ToolResult{Status: model.ToolSuccess, Output: truncateHead(strings.Join(names, "\n"), runTruncateBytes)}, nil
}
