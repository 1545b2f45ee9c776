package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/povagent/agent/internal/model"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	target := filepath.Join(dir, "Main.java")

	wres, err := writeExecute(ctx, dir, map[string]any{"file": target, "content": "line one\nline two\n"})
	if err != nil || wres.Status != model.ToolSuccess {
		t.Fatalf("write: status=%v err=%v", wres.Status, err)
	}

	rres, err := readExecute(ctx, dir, map[string]any{"file": target})
	if err != nil || rres.Status != model.ToolSuccess {
		t.Fatalf("read: status=%v err=%v", rres.Status, err)
	}
	if rres.Output == "" {
		t.Fatal("expected non-empty read output")
	}
}

func TestWriteRejectsMissingParentDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nonexistent", "Main.java")
	res, err := writeExecute(context.Background(), dir, map[string]any{"file": target, "content": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.ToolFailure {
		t.Fatal("expected write to fail when parent directory is missing")
	}
}

func TestMkdirRequiresExistingParent(t *testing.T) {
	dir := t.TempDir()
	ok, err := mkdirExecute(context.Background(), dir, map[string]any{"path": filepath.Join(dir, "sub")})
	if err != nil || ok.Status != model.ToolSuccess {
		t.Fatalf("expected mkdir of direct child to succeed: %v %v", ok.Status, err)
	}

	bad, err := mkdirExecute(context.Background(), dir, map[string]any{"path": filepath.Join(dir, "a", "b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bad.Status != model.ToolFailure {
		t.Fatal("expected mkdir to fail when parent directory is missing")
	}
}

func TestReadRejectsHiddenPath(t *testing.T) {
	dir := t.TempDir()
	hiddenDir := filepath.Join(dir, ".git")
	if err := os.Mkdir(hiddenDir, 0755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(hiddenDir, "config")
	if err := os.WriteFile(target, []byte("secret"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := readExecute(context.Background(), dir, map[string]any{"file": target})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.ToolFailure {
		t.Fatal("expected read of hidden path to fail")
	}
}

func TestListdirOmitsHiddenEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "visible.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := listdirExecute(context.Background(), dir, map[string]any{"directory": dir})
	if err != nil || res.Status != model.ToolSuccess {
		t.Fatalf("listdir: status=%v err=%v", res.Status, err)
	}
	if res.Output != "visible.txt" {
		t.Fatalf("expected only visible.txt listed, got %q", res.Output)
	}
}

func TestResetPreservesProtectedFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if _, err := shellOut(ctx, dir, "git init -q && git -c user.email=t@t -c user.name=t commit --allow-empty -q -m init", resetShellTimeout); err != nil {
		t.Skipf("git unavailable in test environment: %v", err)
	}

	protected := filepath.Join(dir, ".build_diff.patch")
	if err := os.WriteFile(protected, []byte("patch"), 0644); err != nil {
		t.Fatal(err)
	}
	stray := filepath.Join(dir, "scratch.txt")
	if err := os.WriteFile(stray, []byte("scratch"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := resetExecute(ctx, dir, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(protected); err != nil {
		t.Fatalf("expected protected file to survive reset: %v", err)
	}
	if _, err := os.Stat(stray); err == nil {
		t.Fatal("expected untracked non-protected file to be removed by reset")
	}
}
