package main

import (
	"fmt"

	"github.com/povagent/agent/internal/model"
)

// printResults renders the ordered phase-outcome rows, standing in for the
// original's print_results() (a no-op stub in the source — the spec's
// persisted log record is the real accounting, restored here as a terminal
// summary for interactive runs).
func printResults(results []model.PhaseResult) {
	fmt.Println("Results:")
	for _, r := range results {
		fmt.Printf("  %-16s %s\n", r.Phase, r.Status)
	}
}
