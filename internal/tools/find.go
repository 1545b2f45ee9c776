package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/povagent/agent/internal/model"
)

// FindTool returns the filename-search tool definition (spec §4.2: find),
// shelling out to `find -name` per the original (vuln_agent/tools/find.py).
func FindTool() *ToolDef {
	return &ToolDef{
		Name:           "find",
		Description:    "Find files or directories whose name contains a search string.",
		Usage:          `<TOOL>{"name": "find", "query": "search_string", "path": "/abs/path"}</TOOL>`,
		RequiredFields: []string{"query", "path"},
		Execute:        findExecute,
	}
}

func findExecute(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
	query, _ := stringField(fields, "query")
	path, _ := stringField(fields, "path")
	if query == "" {
		return failureResult("query is required"), nil
	}
	if path == "" {
		return failureResult("path is required"), nil
	}

	absPath, err := ValidatePath(workDir, path)
	if err != nil {
		return failureResult(err.Error()), nil
	}
	if _, statErr := os.Stat(absPath); statErr != nil {
		return failureResult(fmt.Sprintf("path %s does not exist", path)), nil
	}

	command := fmt.Sprintf("find %s -not -path '*/.*' -name %q", shellQuote(absPath), "*"+query+"*")
	res, err := shellOut(ctx, workDir, command, searchShellTimeout)
	if err != nil {
		return failureResult(err.Error()), nil
	}

	output := strings.TrimSpace(res.Stdout)
	if output == "" {
		return model.ToolResult{Status: model.ToolSuccess, Output: "No results found"}, nil
	}
	return model.ToolResult{Status: model.ToolSuccess, Output: truncateHead(output, searchTruncateBytes)}, nil
}
