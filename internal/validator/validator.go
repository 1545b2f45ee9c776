// Package validator builds and runs the workspace's Dockerfile.vuln image
// and categorizes the container's exit behavior as the actual vulnerability
// verdict — the only place in the system where a nonzero exit code means
// anything more than "the test script needs debugging" (spec §4.5, §9
// "dual truth of run").
package validator

import (
	"context"
	"path/filepath"
	"time"

	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/sandbox"
)

// Validator is stateless across calls; it re-reads the workspace each time
// validate() runs.
type Validator struct {
	Docker           sandbox.Runtime
	Logger           *logging.Logger
	WorkDir          string
	ProjectSlug      string
	BuildContextRoot string
	BuildTimeout     time.Duration
	RunTimeout       time.Duration
}

// Validate builds and runs the image, recording one `validation` action
// event regardless of outcome.
func (v *Validator) Validate(ctx context.Context) model.ValidationFeedback {
	start := time.Now()
	feedback := v.validate(ctx)
	v.Logger.LogValidation(string(feedback.Status), start, time.Since(start))
	return feedback
}

func (v *Validator) validate(ctx context.Context) model.ValidationFeedback {
	tag := sandbox.ImageTag(v.ProjectSlug)
	dockerfile := filepath.Join(v.WorkDir, "Dockerfile.vuln")
	contextDir := filepath.Join(v.WorkDir, v.BuildContextRoot)

	buildOutcome, err := v.Docker.Build(ctx, contextDir, dockerfile, tag, v.BuildTimeout)
	if err != nil {
		return model.ValidationFeedback{Status: model.ValidationFailed, Error: err.Error()}
	}
	if buildOutcome.BuildFailed {
		msg := buildOutcome.Stderr
		if msg == "" {
			msg = buildOutcome.Stdout
		}
		return model.ValidationFeedback{Status: model.ValidationFailed, Error: msg}
	}

	runOutcome, err := v.Docker.Run(ctx, tag, v.RunTimeout)
	if err != nil {
		return model.ValidationFeedback{Status: model.ValidationFailed, Error: err.Error()}
	}
	if runOutcome.TimedOut {
		return model.ValidationFeedback{Status: model.ValidationFailed, Error: "container run timed out"}
	}
	if runOutcome.ExitCode != 0 {
		return model.ValidationFeedback{
			Status: model.ValidationIncorrect,
			Error:  "STDOUT:\n" + runOutcome.Stdout + "\nSTDERR:\n" + runOutcome.Stderr,
		}
	}
	return model.ValidationFeedback{Status: model.ValidationCorrect}
}
