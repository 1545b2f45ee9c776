// Package dataset loads the per-project Advisory from whichever dataset
// family the run targets, grounded on the repeated get_issue_details
// method in flow_reasoning.py/branch_reasoning.py/test_gen.py — identical
// across all three in the source, folded here into one shared loader.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/povagent/agent/internal/model"
)

// LoadAdvisory reads the project's vulnerability record from the dataset
// layout rooted at workDir. Supported datasets: cwe-bench-java, primevul.
func LoadAdvisory(dataset, workDir, project string) (model.Advisory, error) {
	switch dataset {
	case "cwe-bench-java":
		return loadCWEBenchJava(workDir, project)
	case "primevul":
		return loadPrimeVul(workDir, project)
	default:
		return model.Advisory{}, fmt.Errorf("unsupported dataset %q; supported datasets are: cwe-bench-java, primevul", dataset)
	}
}

func loadCWEBenchJava(workDir, project string) (model.Advisory, error) {
	advisoryPath := filepath.Join(workDir, "..", "..", "..", "advisory", project+".json")
	data, err := os.ReadFile(advisoryPath)
	if err != nil {
		return model.Advisory{}, fmt.Errorf("advisory file %s does not exist", advisoryPath)
	}
	var doc struct {
		Details          string `json:"details"`
		Summary          string `json:"summary"`
		DatabaseSpecific struct {
			CWEIDs []string `json:"cwe_ids"`
		} `json:"database_specific"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Advisory{}, fmt.Errorf("parse advisory file %s: %w", advisoryPath, err)
	}
	return model.Advisory{CWEIDs: doc.DatabaseSpecific.CWEIDs, Summary: doc.Summary, Details: doc.Details}, nil
}

func loadPrimeVul(workDir, project string) (model.Advisory, error) {
	infoPath := filepath.Join(workDir, "..", "..", "..", "processed_info.json")
	data, err := os.ReadFile(infoPath)
	if err != nil {
		return model.Advisory{}, fmt.Errorf("processed info file %s does not exist", infoPath)
	}
	var all map[string]struct {
		CWEIDs  []string `json:"cwe_ids"`
		CVEDesc string   `json:"cve_desc"`
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return model.Advisory{}, fmt.Errorf("parse processed info file %s: %w", infoPath, err)
	}
	info, ok := all[project]
	if !ok {
		return model.Advisory{}, fmt.Errorf("no information found for project %s in %s", project, infoPath)
	}
	return model.Advisory{CWEIDs: info.CWEIDs, Details: info.CVEDesc}, nil
}
