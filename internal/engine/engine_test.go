package engine

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/povagent/agent/internal/config"
	"github.com/povagent/agent/internal/llmclient"
	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/sandbox"
)

// sequencedDocker hands out one scripted outcome per validate() round
// (a Build+Run pair): Build reports the outcome's BuildFailed/build text,
// Run reports its exit code/output. The round advances in Run, or in Build
// when the outcome is a build failure (Run is never called for that
// round). Exhausted rounds repeat the last scripted outcome.
type sequencedDocker struct {
	outcomes []sandbox.RunOutcome
	idx      int
}

func (d *sequencedDocker) current() sandbox.RunOutcome {
	if len(d.outcomes) == 0 {
		return sandbox.RunOutcome{ExitCode: 0}
	}
	if d.idx >= len(d.outcomes) {
		return d.outcomes[len(d.outcomes)-1]
	}
	return d.outcomes[d.idx]
}

func (d *sequencedDocker) Build(ctx context.Context, buildContextDir, dockerfilePath, tag string, timeout time.Duration) (sandbox.RunOutcome, error) {
	o := d.current()
	if o.BuildFailed {
		d.idx++
		return o, nil
	}
	return sandbox.RunOutcome{}, nil
}

func (d *sequencedDocker) Run(ctx context.Context, tag string, timeout time.Duration) (sandbox.RunOutcome, error) {
	o := d.current()
	d.idx++
	return o, nil
}

func (d *sequencedDocker) RemoveImage(ctx context.Context, tag string) error { return nil }

func baseConfig() *config.Config {
	return &config.Config{
		Dataset:          "cwe-bench-java",
		NoFlow:           true,
		NoBranch:         true,
		BudgetDollars:    5,
		TimeoutSecs:      2400,
		MaxTurns:         10,
		BuildTimeoutSecs: 1,
		RunTimeoutSecs:   1,
	}
}

// newGitWorkspace returns a temp dir holding a git repository with one
// commit, since Engine.Run resets the workspace through git stash.
func newGitWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cmd := exec.Command("bash", "-c", "git init -q && git -c user.email=t@t -c user.name=t commit --allow-empty -q -m init")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("init git workspace: %v: %s", err, out)
	}
	return dir
}

func newTestEngine(t *testing.T, client llmclient.Client, docker sandbox.Runtime) *Engine {
	t.Helper()
	e, err := New(baseConfig(), logging.Dummy(), client, docker, newGitWorkspace(t), "demo", model.Advisory{Details: "path traversal", CWEIDs: []string{"CWE-22"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEngineHappyPath(t *testing.T) {
	client := &llmclient.StubClient{Responses: []llmclient.ScriptedResult{{Text: "<DONE>"}}}
	docker := &sequencedDocker{outcomes: []sandbox.RunOutcome{{ExitCode: 0}}}
	e := newTestEngine(t, client, docker)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := e.Results()
	if len(results) == 0 {
		t.Fatal("expected at least one recorded phase result")
	}
	last := results[len(results)-1]
	if last.Phase != model.PhaseValidation || last.Status != model.PhaseSuccess {
		t.Fatalf("expected final validation success, got %+v", last)
	}
}

func TestEngineRepairConverges(t *testing.T) {
	client := &llmclient.StubClient{Responses: []llmclient.ScriptedResult{
		{Text: "<DONE>"},        // initial test gen
		{Text: "<DONE>"},        // repair after first Incorrect
	}}
	docker := &sequencedDocker{outcomes: []sandbox.RunOutcome{
		{ExitCode: 1, Stdout: "fail once"}, // first validate: Incorrect
		{ExitCode: 0},                      // second validate (after repair): Correct
	}}
	e := newTestEngine(t, client, docker)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := e.Results()
	last := results[len(results)-1]
	if last.Phase != model.PhaseValidation || last.Status != model.PhaseSuccess {
		t.Fatalf("expected repair to converge to success, got %+v", results)
	}
	foundIncorrect := false
	for _, r := range results {
		if r.Phase == model.PhaseValidation && r.Status == model.PhaseIncorrect {
			foundIncorrect = true
		}
	}
	if !foundIncorrect {
		t.Fatalf("expected an intermediate Incorrect validation row, got %+v", results)
	}
}

func TestEngineBuildFailureStopsRepairLoopEarly(t *testing.T) {
	client := &llmclient.StubClient{Responses: []llmclient.ScriptedResult{{Text: "<DONE>"}}}
	docker := &sequencedDocker{outcomes: []sandbox.RunOutcome{
		{BuildFailed: true, Stderr: "compile error"}, // Failed -> goto finalValidate
	}}
	e := newTestEngine(t, client, docker)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := e.Results()
	validationRows := 0
	for _, r := range results {
		if r.Phase == model.PhaseValidation {
			validationRows++
		}
	}
	// one Failed row from inside the loop, plus the always-executed final validate.
	if validationRows != 2 {
		t.Fatalf("expected exactly 2 validation rows (loop-exit + final), got %d: %+v", validationRows, results)
	}
}

func TestEngineBudgetExhaustionFailsPhase(t *testing.T) {
	client := &llmclient.StubClient{Responses: []llmclient.ScriptedResult{{Text: "<DONE>"}}}
	logger := logging.Dummy()
	logger.LogLLMCall(0, 0, 0, 100.0, time.Now(), 0) // blows past the $5 default budget before any phase runs

	cfg := baseConfig()
	e, err := New(cfg, logger, client, &sequencedDocker{}, newGitWorkspace(t), "demo", model.Advisory{Details: "x", CWEIDs: []string{"CWE-22"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := e.Results()
	if len(results) != 1 || results[0].Phase != model.PhaseTest || results[0].Status != model.PhaseFailure {
		t.Fatalf("expected the test-gen phase to fail once its conversation hits the budget ceiling, got %+v", results)
	}
}

func TestEngineMissingTerminatorFailsTestGenPhase(t *testing.T) {
	client := &llmclient.StubClient{Responses: []llmclient.ScriptedResult{{Text: "still working, no terminator"}}}
	cfg := baseConfig()
	cfg.MaxTurns = 1
	e, err := New(cfg, logging.Dummy(), client, &sequencedDocker{}, newGitWorkspace(t), "demo", model.Advisory{Details: "x", CWEIDs: []string{"CWE-22"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := e.Results()
	if len(results) != 1 || results[0].Phase != model.PhaseTest || results[0].Status != model.PhaseFailure {
		t.Fatalf("expected a single failed test_gen row, got %+v", results)
	}
}
