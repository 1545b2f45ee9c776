package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/povagent/agent/internal/config"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func writeProjectSource(t *testing.T, dataset, project string) {
	t.Helper()
	dir := filepath.Join("data", dataset, "project-sources", project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Main.java"), []byte("class Main {}"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestStageWorkspaceCopiesProjectSources(t *testing.T) {
	chdirTemp(t)
	writeProjectSource(t, "primevul", "demo")

	workDir, err := stageWorkspace(&config.Config{Dataset: "primevul", Project: "demo"})
	if err != nil {
		t.Fatalf("stageWorkspace: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(workDir, "Main.java"))
	if err != nil {
		t.Fatalf("expected copied source file: %v", err)
	}
	if string(data) != "class Main {}" {
		t.Fatalf("unexpected copied content: %q", data)
	}
}

func TestStageWorkspaceRefusesExistingWorkdir(t *testing.T) {
	chdirTemp(t)
	writeProjectSource(t, "primevul", "demo")

	if _, err := stageWorkspace(&config.Config{Dataset: "primevul", Project: "demo"}); err != nil {
		t.Fatalf("first stageWorkspace: %v", err)
	}
	if _, err := stageWorkspace(&config.Config{Dataset: "primevul", Project: "demo"}); err == nil {
		t.Fatal("expected second stageWorkspace for the same project to refuse overwriting the workdir")
	}
}

func TestStageWorkspaceRejectsUnknownDataset(t *testing.T) {
	chdirTemp(t)
	if _, err := stageWorkspace(&config.Config{Dataset: "not-a-real-dataset", Project: "demo"}); err == nil {
		t.Fatal("expected an error for an unsupported dataset")
	}
}

func TestStageWorkspaceMissingProjectSource(t *testing.T) {
	chdirTemp(t)
	if err := os.MkdirAll(filepath.Join("data", "primevul", "project-sources"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := stageWorkspace(&config.Config{Dataset: "primevul", Project: "missing"}); err == nil {
		t.Fatal("expected an error when the project source directory doesn't exist")
	}
}
