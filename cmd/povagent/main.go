// Command povagent synthesizes proof-of-vulnerability tests for projects
// with a known CWE-22/78/79/94 vulnerability, by driving an LLM through a
// flow-reasoning → branch-reasoning → test-generation pipeline against a
// sandboxed project workspace.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "povagent",
		Short:         "Synthesize proof-of-vulnerability tests for known CWE findings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(buildRunCmd())
	return cmd
}
