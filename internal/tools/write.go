package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/povagent/agent/internal/model"
)

// WriteTool returns the file-write tool definition (spec §4.2: write).
// Unlike the teacher's tools/write.go, this does NOT auto-create parent
// directories: the original (vuln_agent/tools/write.py) fails on a missing
// parent dir, leaving mkdir as the dedicated directory-creation tool.
func WriteTool() *ToolDef {
	return &ToolDef{
		Name:           "write",
		Description:    "Create or overwrite a file with the given content. The parent directory must already exist; use mkdir first if it doesn't.",
		Usage:          `<TOOL>{"name": "write", "file": "/abs/path", "content": "..."}</TOOL>`,
		RequiredFields: []string{"file", "content"},
		Execute:        writeExecute,
	}
}

func writeExecute(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
	file, _ := stringField(fields, "file")
	content, hasContent := stringField(fields, "content")
	if file == "" {
		return failureResult("file is required"), nil
	}
	if !hasContent {
		return failureResult("content is required"), nil
	}

	absPath, err := ValidatePath(workDir, file)
	if err != nil {
		return failureResult(err.Error()), nil
	}

	parent := filepath.Dir(absPath)
	if info, statErr := os.Stat(parent); statErr != nil || !info.IsDir() {
		return failureResult(fmt.Sprintf("parent directory %s does not exist; use mkdir first", parent)), nil
	}

	if err := AtomicWrite(absPath, []byte(content), 0644); err != nil {
		return failureResult(fmt.Sprintf("write %s: %v", file, err)), nil
	}

	return model.ToolResult{Status: model.ToolSuccess, Output: "File written successfully"}, nil
}

// AtomicWrite writes content to targetPath via a temp file + rename,
// adapted from the teacher's tools/pathutil.go AtomicWrite.
func AtomicWrite(targetPath string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(targetPath)
	tmp, err := os.CreateTemp(dir, ".povagent-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	tmpPath = ""
	return nil
}
