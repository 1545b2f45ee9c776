package phases

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/povagent/agent/internal/llmclient"
	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/tools"
)

func newTestGenRegistry(t *testing.T, workDir string) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(workDir, nil)
	if err := r.Register(tools.WriteTool()); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestTestGenHappyPathWritesThenDone(t *testing.T) {
	workDir := t.TempDir()
	registry := newTestGenRegistry(t, workDir)

	client := &llmclient.StubClient{Responses: []llmclient.ScriptedResult{
		{Text: `<TOOL>{"name": "write", "file": "` + filepath.Join(workDir, "Exploit.java") + `", "content": "class Exploit {}"}</TOOL>`},
		{Text: "<DONE>"},
	}}
	conv := newTestConv(client)
	p := &TestGen{Dataset: "cwe-bench-java", ProjectName: "demo", WorkDir: workDir, Logger: logging.Dummy(), Registry: registry, MaxTurns: 10}

	err := p.Run(context.Background(), conv, model.Advisory{Details: "path traversal", CWEIDs: []string{"CWE-22"}}, model.Flow{}, model.Conditions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestTestGenUnsupportedCWERejected(t *testing.T) {
	workDir := t.TempDir()
	registry := newTestGenRegistry(t, workDir)
	client := &llmclient.StubClient{}
	conv := newTestConv(client)
	p := &TestGen{Dataset: "cwe-bench-java", ProjectName: "demo", WorkDir: workDir, Logger: logging.Dummy(), Registry: registry, MaxTurns: 10}

	err := p.Run(context.Background(), conv, model.Advisory{Details: "x", CWEIDs: []string{"CWE-611"}}, model.Flow{}, model.Conditions{})
	if err == nil {
		t.Fatal("expected error for an unsupported CWE id")
	}
}

func TestTestGenMissingDoneFails(t *testing.T) {
	workDir := t.TempDir()
	registry := newTestGenRegistry(t, workDir)
	client := &llmclient.StubClient{Responses: []llmclient.ScriptedResult{{Text: "still working, no terminator"}}, Fallback: "still working, no terminator"}
	conv := newTestConv(client)
	p := &TestGen{Dataset: "cwe-bench-java", ProjectName: "demo", WorkDir: workDir, Logger: logging.Dummy(), Registry: registry, MaxTurns: 2}

	err := p.Run(context.Background(), conv, model.Advisory{Details: "x", CWEIDs: []string{"CWE-22"}}, model.Flow{}, model.Conditions{})
	if err == nil {
		t.Fatal("expected error when the model never emits <DONE> within max turns")
	}
}

func TestTestGenRepairReEntersConversation(t *testing.T) {
	workDir := t.TempDir()
	registry := newTestGenRegistry(t, workDir)
	client := &llmclient.StubClient{Responses: []llmclient.ScriptedResult{{Text: "<DONE>"}}}
	conv := newTestConv(client)
	p := &TestGen{Dataset: "cwe-bench-java", ProjectName: "demo", WorkDir: workDir, Logger: logging.Dummy(), Registry: registry, MaxTurns: 10}

	if err := p.Repair(context.Background(), conv, "exit code 1: NullPointerException"); err != nil {
		t.Fatalf("Repair: %v", err)
	}
}
