package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/povagent/agent/internal/config"
	"github.com/povagent/agent/internal/dataset"
	"github.com/povagent/agent/internal/engine"
	"github.com/povagent/agent/internal/llmclient"
	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/sandbox"
)

// runPipeline sets up a fresh per-run workspace copy (grounded on main.py's
// workdir staging: data/<dataset>/workdir<suffix>/project-sources/<project>,
// copied once from data/<dataset>/project-sources/<project> and refused if
// it already exists) and drives one Engine run to completion.
func runPipeline(ctx context.Context, cfg *config.Config) error {
	workDir, err := stageWorkspace(cfg)
	if err != nil {
		return err
	}

	logDir := filepath.Join("logs", fmt.Sprintf("%s_%s", cfg.Project, time.Now().Format("20060102_150405")))
	logger, err := logging.New(logDir, map[string]any{
		"dataset":   cfg.Dataset,
		"project":   cfg.Project,
		"model":     cfg.Model,
		"budget":    cfg.BudgetDollars,
		"timeout":   cfg.TimeoutSecs,
		"use_patch": cfg.UsePatch,
		"no_flow":   cfg.NoFlow,
		"no_branch": cfg.NoBranch,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	advisory, err := dataset.LoadAdvisory(cfg.Dataset, workDir, cfg.Project)
	if err != nil {
		logger.LogFailure(err.Error())
		return err
	}

	client := llmclient.NewAnthropicClient(cfg.APIKey, cfg.Model)

	docker, err := sandbox.New()
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}

	eng, err := engine.New(cfg, logger, client, docker, workDir, cfg.Project, advisory)
	if err != nil {
		return err
	}

	if err := eng.Run(ctx); err != nil {
		return err
	}

	printResults(eng.Results())
	return nil
}

// stageWorkspace copies the project's source tree into a per-run workdir,
// matching main.py's dataset staging exactly (including its refusal to
// overwrite an existing workdir).
func stageWorkspace(cfg *config.Config) (string, error) {
	if cfg.Dataset != "cwe-bench-java" && cfg.Dataset != "primevul" {
		return "", fmt.Errorf("unknown dataset: %s", cfg.Dataset)
	}

	projectDir := filepath.Join("data", cfg.Dataset, "project-sources", cfg.Project)
	workdir := filepath.Join("data", cfg.Dataset, "workdir"+cfg.WorkdirSuffix())
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return "", err
	}

	if cfg.Dataset == "cwe-bench-java" {
		if err := copyTreeIfAbsent(filepath.Join("data", cfg.Dataset, "java-env"), filepath.Join(workdir, "java-env")); err != nil {
			return "", err
		}
		if err := copyTreeIfAbsent(filepath.Join("data", cfg.Dataset, "resources"), filepath.Join(workdir, "resources")); err != nil {
			return "", err
		}
	}

	projectWorkdir := filepath.Join(workdir, "project-sources", cfg.Project)
	if _, err := os.Stat(projectWorkdir); err == nil {
		return "", fmt.Errorf("project workdir %s already exists; please remove it first", projectWorkdir)
	}
	if _, err := os.Stat(projectDir); err != nil {
		return "", fmt.Errorf("project %s does not exist in %s", cfg.Project, projectDir)
	}
	if err := copyTree(projectDir, projectWorkdir); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(projectWorkdir)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func copyTreeIfAbsent(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	return copyTree(src, dst)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

