package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/povagent/agent/internal/model"
)

const searchShellTimeout = 5 * time.Second

// GrepTool returns the literal-string search tool definition (spec §4.2:
// grep). Shells out to `grep -nr -F`, matching the original's exact
// semantics (vuln_agent/tools/grep.py) rather than the teacher's in-process
// RE2 regex walk — grep here is fixed-string, not regex.
func GrepTool() *ToolDef {
	return &ToolDef{
		Name:           "grep",
		Description:    "Search for a literal string in the contents of a single file or all files in a directory.",
		Usage:          `<TOOL>{"name": "grep", "query": "search_string", "path": "/abs/path"}</TOOL>`,
		RequiredFields: []string{"query", "path"},
		Execute:        grepExecute,
	}
}

func grepExecute(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
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

	command := fmt.Sprintf("grep -nr -F --exclude='.?*' %q %s", query, shellQuote(absPath))
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

// shellQuote wraps a path in single quotes for safe shell interpolation.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
