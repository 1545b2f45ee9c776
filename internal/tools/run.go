package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/sandbox"
)

// cautionPostscript is the fixed "reflect on 5-7 hypotheses" nudge appended
// to every run output, verbatim in spirit from the original's CAUTION_MSG
// (vuln_agent/modules/test_gen.py).
const cautionPostscript = `Carefully analyze this output for errors or messages that can help you debug your test.
If it is not the behavior you expected:
1. Step back and reflect on 5-7 different possible sources of the problem
2. Assess the likelihood of each possible cause
3. Methodically address the most likely causes, starting with the highest probability
4. If necessary, add print statements to the source code to debug the issue

If your Docker build is timing out, try using the reset tool to reset the working directory and start from scratch.

Lastly, remember that your test should actually run the vulnerable code in the project.
- It should NOT read the source code to check for the presence of a vulnerability.
- It should NOT "simulate" the vulnerability by running some separate code that does not use the project.`

// RunTool returns the container build+run tool definition (spec §4.2: run).
// Build failure and run-nonzero are both returned as status=Success so the
// model stays in its reason-act loop ("dual truth of run", spec §9); only
// errors the runtime returns as Go errors (tarring the build context,
// creating, starting or waiting on the container) return Failure. A
// rejected image-build request is reported by Build as a build failure.
func RunTool(docker sandbox.Runtime, projectSlug, buildContextRoot string, buildTimeout, runTimeout time.Duration) *ToolDef {
	return &ToolDef{
		Name:        "run",
		Description: "Builds and runs the Docker image for the project.",
		Usage:       `<TOOL>{"name": "run"}</TOOL>`,
		Execute: func(ctx context.Context, workDir string, fields map[string]any) (model.ToolResult, error) {
			return runExecute(ctx, workDir, docker, projectSlug, buildContextRoot, buildTimeout, runTimeout)
		},
	}
}

func runExecute(ctx context.Context, workDir string, docker sandbox.Runtime, projectSlug, buildContextRoot string, buildTimeout, runTimeout time.Duration) (model.ToolResult, error) {
	tag := sandbox.ImageTag(projectSlug)
	dockerfile := filepath.Join(workDir, "Dockerfile.vuln")
	contextDir := filepath.Join(workDir, buildContextRoot)

	buildOutcome, err := docker.Build(ctx, contextDir, dockerfile, tag, buildTimeout)
	if err != nil {
		return model.ToolResult{Status: model.ToolFailure, Output: err.Error()}, nil
	}
	if buildOutcome.BuildFailed {
		msg := buildOutcome.Stderr
		if msg == "" {
			msg = buildOutcome.Stdout
		}
		output := fmt.Sprintf("Build failed: %s\n\n%s", truncateTail(msg, runTruncateBytes), cautionPostscript)
		return model.ToolResult{Status: model.ToolSuccess, Output: output}, nil
	}

	runOutcome, err := docker.Run(ctx, tag, runTimeout)
	if err != nil {
		return model.ToolResult{Status: model.ToolFailure, Output: err.Error()}, nil
	}
	if runOutcome.TimedOut {
		output := fmt.Sprintf("Run timed out after %ds.\n\n%s", int(runTimeout.Seconds()), cautionPostscript)
		return model.ToolResult{Status: model.ToolSuccess, Output: output}, nil
	}
	if runOutcome.ExitCode != 0 {
		output := fmt.Sprintf("Run exited with non-zero code %d.\nSTDOUT:\n%s\nSTDERR:\n%s\n\n%s",
			runOutcome.ExitCode, truncateTail(runOutcome.Stdout, runTruncateBytes), truncateTail(runOutcome.Stderr, runTruncateBytes), cautionPostscript)
		return model.ToolResult{Status: model.ToolSuccess, Output: output}, nil
	}

	output := fmt.Sprintf("Run succeeded. STDOUT:\n%s\n\n%s", truncateTail(runOutcome.Stdout, runTruncateBytes), cautionPostscript)
	return model.ToolResult{Status: model.ToolSuccess, Output: output}, nil
}
