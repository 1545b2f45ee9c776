package validator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/sandbox"
)

type fakeRuntime struct {
	buildOutcome sandbox.RunOutcome
	buildErr     error
	runOutcome   sandbox.RunOutcome
	runErr       error
}

func (f *fakeRuntime) Build(ctx context.Context, buildContextDir, dockerfilePath, tag string, timeout time.Duration) (sandbox.RunOutcome, error) {
	return f.buildOutcome, f.buildErr
}

func (f *fakeRuntime) Run(ctx context.Context, tag string, timeout time.Duration) (sandbox.RunOutcome, error) {
	return f.runOutcome, f.runErr
}

func (f *fakeRuntime) RemoveImage(ctx context.Context, tag string) error {
	return nil
}

func newTestValidator(rt sandbox.Runtime, workDir string) *Validator {
	return &Validator{
		Docker:           rt,
		Logger:           logging.Dummy(),
		WorkDir:          workDir,
		ProjectSlug:      "demo",
		BuildContextRoot: ".",
		BuildTimeout:     time.Second,
		RunTimeout:       time.Second,
	}
}

func TestValidateCorrectWhenExitZero(t *testing.T) {
	rt := &fakeRuntime{runOutcome: sandbox.RunOutcome{ExitCode: 0}}
	v := newTestValidator(rt, t.TempDir())
	fb := v.Validate(context.Background())
	if fb.Status != model.ValidationCorrect {
		t.Fatalf("expected Correct, got %+v", fb)
	}
}

func TestValidateIncorrectWhenExitNonzero(t *testing.T) {
	rt := &fakeRuntime{runOutcome: sandbox.RunOutcome{ExitCode: 1, Stdout: "out", Stderr: "boom"}}
	v := newTestValidator(rt, t.TempDir())
	fb := v.Validate(context.Background())
	if fb.Status != model.ValidationIncorrect {
		t.Fatalf("expected Incorrect, got %+v", fb)
	}
	if fb.Error == "" {
		t.Fatal("expected combined stdout/stderr in feedback error")
	}
}

func TestValidateFailedOnBuildFailure(t *testing.T) {
	rt := &fakeRuntime{buildOutcome: sandbox.RunOutcome{BuildFailed: true, Stderr: "compile error"}}
	v := newTestValidator(rt, t.TempDir())
	fb := v.Validate(context.Background())
	if fb.Status != model.ValidationFailed {
		t.Fatalf("expected Failed, got %+v", fb)
	}
}

func TestValidateFailedOnRunTimeout(t *testing.T) {
	rt := &fakeRuntime{runOutcome: sandbox.RunOutcome{TimedOut: true}}
	v := newTestValidator(rt, t.TempDir())
	fb := v.Validate(context.Background())
	if fb.Status != model.ValidationFailed {
		t.Fatalf("expected Failed on timeout, got %+v", fb)
	}
}

func TestValidateLogsRegardlessOfOutcome(t *testing.T) {
	logDir := t.TempDir()
	logger, err := logging.New(logDir, nil)
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	for _, rt := range []*fakeRuntime{
		{runOutcome: sandbox.RunOutcome{ExitCode: 0}},
		{buildOutcome: sandbox.RunOutcome{BuildFailed: true, Stderr: "compile error"}},
	} {
		v := newTestValidator(rt, t.TempDir())
		v.Logger = logger
		v.Validate(context.Background())
	}
	data, err := os.ReadFile(filepath.Join(logDir, "record.json"))
	if err != nil {
		t.Fatalf("read record.json: %v", err)
	}
	var rec logging.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if len(rec.Actions) != 2 || rec.Actions[0].Type != logging.ActionValidation || rec.Actions[1].Type != logging.ActionValidation {
		t.Fatalf("expected one validation action per call (Correct and Failed), got %+v", rec.Actions)
	}
}
