package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/povagent/agent/internal/model"
)

// ReadTool returns the file-read tool definition (spec §4.2: read).
func ReadTool() *ToolDef {
	return &ToolDef{
		Name:           "read",
		Description:    "Read a slice of a file's contents, optionally bounded by start_line/end_line.",
		Usage:          `<TOOL>{"name": "read", "file": "/abs/path", "start_line": 1, "end_line": 50}</TOOL>`,
		RequiredFields: []string{"file"},
		OptionalFields: []string{"start_line", "end_line"},
		Execute:        readExecute,
	}
}

func readExecute(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
	file, _ := stringField(fields, "file")
	if file == "" {
		return failureResult("file is required"), nil
	}

	absPath, err := ValidatePath(workDir, file)
	if err != nil {
		return failureResult(err.Error()), nil
	}
	if HasHiddenSegment(workDir, absPath) {
		return failureResult(fmt.Sprintf("%s is a hidden path", file)), nil
	}

	startLine, hasStart := intField(fields, "start_line")
	endLine, hasEnd := intField(fields, "end_line")
	if !hasStart {
		startLine = 1
	}
	if startLine < 1 {
		return failureResult("start_line must be >= 1"), nil
	}
	if hasEnd && endLine < startLine {
		return failureResult("end_line must be >= start_line"), nil
	}

	f, err := os.Open(absPath)
	if err != nil {
		return failureResult(fmt.Sprintf("%s does not exist", file)), nil
	}
	defer f.Close()

	var out []byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 1<<20)
	lineNum := 0
	wroteAny := false
	for scanner.Scan() {
		lineNum++
		if lineNum < startLine {
			continue
		}
		if hasEnd && lineNum > endLine {
			break
		}
		out = append(out, []byte(fmt.Sprintf("%d\t%s\n", lineNum, scanner.Text()))...)
		wroteAny = true
	}
	if err := scanner.Err(); err != nil {
		return failureResult(fmt.Sprintf("read %s: %v", file, err)), nil
	}
	if !wroteAny {
		return failureResult(fmt.Sprintf("no lines in the requested window [%d,%v] for %s", startLine, endLine, file)), nil
	}

	return model.ToolResult{Status: model.ToolSuccess, Output: truncateHead(string(out), headTruncateBytes)}, nil
}
