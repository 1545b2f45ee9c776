// Package engine implements the top-level run controller: working-copy
// setup, phase ordering with hand-offs, and the bounded validate-repair
// outer loop, grounded on original_source/vuln_agent/core/engine.py.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/povagent/agent/internal/config"
	"github.com/povagent/agent/internal/conversation"
	"github.com/povagent/agent/internal/llmclient"
	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/phases"
	"github.com/povagent/agent/internal/sandbox"
	"github.com/povagent/agent/internal/tools"
	"github.com/povagent/agent/internal/validator"
)

// contextWindow is the model's context window used for condensation
// threshold math (spec §4.3). Claude Sonnet family defaults to 200k.
const contextWindow = 200_000

// Engine owns the project workspace and drives one end-to-end run.
type Engine struct {
	Config    *config.Config
	Logger    *logging.Logger
	Client    llmclient.Client
	Docker    sandbox.Runtime
	WorkDir   string
	Advisory  model.Advisory
	Project   string

	results []model.PhaseResult
}

// New validates the workspace exists and removes any image left over from
// a prior run (spec §4.6 setup).
func New(cfg *config.Config, logger *logging.Logger, client llmclient.Client, docker sandbox.Runtime, workDir, project string, advisory model.Advisory) (*Engine, error) {
	info, err := os.Stat(workDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("code directory %s does not exist", workDir)
	}
	e := &Engine{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Docker:   docker,
		WorkDir:  workDir,
		Advisory: advisory,
		Project:  project,
	}
	if err := docker.RemoveImage(context.Background(), sandbox.ImageTag(project)); err != nil {
		logger.LogFailure(fmt.Sprintf("remove prior image: %v", err))
	}
	return e, nil
}

// reset invokes the reset tool's logic directly against the workspace at
// each phase boundary (spec §4.6: "reset is invoked at the start of each
// phase boundary").
func (e *Engine) reset(ctx context.Context) error {
	r := tools.NewRegistry(e.WorkDir, e.Logger)
	if err := r.Register(tools.ResetTool()); err != nil {
		return err
	}
	result, _, err := r.Dispatch(ctx, `<TOOL>{"name": "reset"}</TOOL>`)
	if err != nil {
		return err
	}
	if result.Status != model.ToolSuccess {
		return fmt.Errorf("reset failed: %s", result.Output)
	}
	return nil
}

func (e *Engine) freshConversation() *conversation.Conversation {
	conv := conversation.New(e.Client, e.Logger, phases.SystemPrompt, contextWindow, e.Config)
	return conv
}

func (e *Engine) recordResult(phase model.PhaseName, status model.PhaseStatus) {
	e.results = append(e.results, model.PhaseResult{Phase: phase, Status: status})
	_ = e.Logger.LogResult(string(phase), string(status))
}

// Results returns the ordered phase-outcome rows recorded so far.
func (e *Engine) Results() []model.PhaseResult {
	return append([]model.PhaseResult(nil), e.results...)
}

// Run executes Flow → Branch → TestGen → up to MaxRepairIterations
// {validate, repair} cycles → one final validate (spec §4.6, preserving
// the "Open Question" double-validate behavior verbatim). A cycle that
// validates Correct ends the run at once; the final validate runs
// whenever the loop exhausts its iterations or stops on a Failed status.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.reset(ctx); err != nil {
		return fmt.Errorf("initial reset: %w", err)
	}

	buildContextRoot := phases.BuildContextRoot(e.Config.Dataset)

	var flow model.Flow
	if !e.Config.NoFlow {
		readOnly, err := tools.NewReadOnlyRegistry(e.WorkDir, e.Logger)
		if err != nil {
			return err
		}
		conv := e.freshConversation()
		fr := &phases.FlowReasoning{
			Dataset:     e.Config.Dataset,
			ProjectName: e.Project,
			WorkDir:     e.WorkDir,
			Logger:      e.Logger,
			Registry:    readOnly,
			MaxTurns:    e.Config.MaxTurns,
			UsePatch:    e.Config.UsePatch,
		}
		flow, err = fr.Run(ctx, conv, e.Advisory)
		if err != nil {
			e.Logger.LogFailure(fmt.Sprintf("flow reasoning: %v", err))
			e.recordResult(model.PhaseFlow, model.PhaseFailure)
			return nil
		}
		e.recordResult(model.PhaseFlow, model.PhaseSuccess)
	}

	var conditions model.Conditions
	if !e.Config.NoBranch {
		if err := e.reset(ctx); err != nil {
			return fmt.Errorf("branch-phase reset: %w", err)
		}
		readOnly, err := tools.NewReadOnlyRegistry(e.WorkDir, e.Logger)
		if err != nil {
			return err
		}
		conv := e.freshConversation()
		br := &phases.BranchReasoning{
			Dataset:     e.Config.Dataset,
			ProjectName: e.Project,
			WorkDir:     e.WorkDir,
			Logger:      e.Logger,
			Registry:    readOnly,
			MaxTurns:    e.Config.MaxTurns,
		}
		out, err := br.Run(ctx, conv, e.Advisory, flow)
		if err != nil {
			e.Logger.LogFailure(fmt.Sprintf("branch reasoning: %v", err))
			e.recordResult(model.PhaseBranch, model.PhaseFailure)
			return nil
		}
		conditions = out.Conditions
		e.recordResult(model.PhaseBranch, model.PhaseSuccess)
	}

	if err := e.reset(ctx); err != nil {
		return fmt.Errorf("test-gen-phase reset: %w", err)
	}
	buildTimeout := time.Duration(e.Config.BuildTimeoutSecs) * time.Second
	runTimeout := time.Duration(e.Config.RunTimeoutSecs) * time.Second
	testRegistry, err := tools.NewTestGenRegistry(e.WorkDir, e.Logger, e.Docker, e.Project, buildContextRoot, buildTimeout, runTimeout)
	if err != nil {
		return err
	}
	conv := e.freshConversation()
	tg := &phases.TestGen{
		Dataset:     e.Config.Dataset,
		ProjectName: e.Project,
		WorkDir:     e.WorkDir,
		Logger:      e.Logger,
		Registry:    testRegistry,
		MaxTurns:    e.Config.MaxTurns,
	}
	if err := tg.Run(ctx, conv, e.Advisory, flow, conditions); err != nil {
		e.Logger.LogFailure(fmt.Sprintf("test generation: %v", err))
		e.recordResult(model.PhaseTest, model.PhaseFailure)
		return nil
	}
	e.recordResult(model.PhaseTest, model.PhaseSuccess)

	v := &validator.Validator{
		Docker:           e.Docker,
		Logger:           e.Logger,
		WorkDir:          e.WorkDir,
		ProjectSlug:      e.Project,
		BuildContextRoot: buildContextRoot,
		BuildTimeout:     buildTimeout,
		RunTimeout:       runTimeout,
	}

	for i := 0; i < config.MaxRepairIterations; i++ {
		feedback := v.Validate(ctx)
		switch feedback.Status {
		case model.ValidationCorrect:
			e.recordResult(model.PhaseValidation, model.PhaseSuccess)
			return nil
		case model.ValidationIncorrect:
			e.recordResult(model.PhaseValidation, model.PhaseIncorrect)
			if err := tg.Repair(ctx, conv, feedback.Error); err != nil {
				e.Logger.LogFailure(fmt.Sprintf("repair: %v", err))
			}
		case model.ValidationFailed:
			e.recordResult(model.PhaseValidation, model.PhaseFailure)
			goto finalValidate
		}
	}

finalValidate:

	// Final validate is always recorded, never elided, even if the loop
	// above exhausted its iterations or broke on a Failed status.
	finalFeedback := v.Validate(ctx)
	switch finalFeedback.Status {
	case model.ValidationCorrect:
		e.recordResult(model.PhaseValidation, model.PhaseSuccess)
	case model.ValidationIncorrect:
		e.recordResult(model.PhaseValidation, model.PhaseIncorrect)
	case model.ValidationFailed:
		e.recordResult(model.PhaseValidation, model.PhaseFailure)
	}
	return nil
}
