package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/povagent/agent/internal/config"
	"github.com/povagent/agent/internal/model"
)

const resetShellTimeout = 30 * time.Second

// ResetTool returns the workspace-reset tool definition (spec §4.2: reset).
// Stashes VCS changes, deletes every untracked file except the protected
// set, and restores Dockerfile.vuln from .Dockerfile.backup.
func ResetTool() *ToolDef {
	return &ToolDef{
		Name:        "reset",
		Description: "Resets the working directory to its initial state.",
		Usage:       `<TOOL>{"name": "reset"}</TOOL>`,
		Execute:     resetExecute,
	}
}

func resetExecute(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
	stashRes, err := shellOut(ctx, workDir, "git stash", resetShellTimeout)
	if err != nil || stashRes.ExitCode != 0 {
		return model.ToolResult{Status: model.ToolFailure, Output: "reset failed"}, nil
	}

	lsRes, err := shellOut(ctx, workDir, "git ls-files --others --exclude-standard", resetShellTimeout)
	if err != nil || lsRes.ExitCode != 0 {
		return model.ToolResult{Status: model.ToolFailure, Output: "reset failed"}, nil
	}

	for _, rel := range strings.Split(strings.TrimSpace(lsRes.Stdout), "\n") {
		rel = strings.TrimSpace(rel)
		if rel == "" || config.IsProtected(rel) {
			continue
		}
		_ = os.Remove(filepath.Join(workDir, rel))
	}

	backup := filepath.Join(workDir, ".Dockerfile.backup")
	target := filepath.Join(workDir, "Dockerfile.vuln")
	if _, err := os.Stat(backup); err == nil {
		_ = os.Remove(target)
		data, err := os.ReadFile(backup)
		if err != nil {
			return model.ToolResult{Status: model.ToolFailure, Output: fmt.Sprintf("restore Dockerfile.vuln: %v", err)}, nil
		}
		if err := AtomicWrite(target, data, 0644); err != nil {
			return model.ToolResult{Status: model.ToolFailure, Output: fmt.Sprintf("restore Dockerfile.vuln: %v", err)}, nil
		}
	}

	return model.ToolResult{Status: model.ToolSuccess, Output: "Working directory reset successfully."}, nil
}
