// Package phases implements the three reasoning phases — FlowReasoning,
// BranchReasoning, TestGen — that share one reason-act loop shape over a
// borrowed Conversation, grounded on the corresponding modules of the
// teacher's agent package generalized to the tagged-text protocol.
package phases

import (
	"fmt"

	"github.com/povagent/agent/internal/tools"
)

// SystemPrompt is the fixed system message every Engine-owned Conversation
// opens with.
const SystemPrompt = `You are a helpful AI assistant that can interact with a computer to solve tasks.

<ROLE>
Your primary role is to assist by executing commands, modifying code, and solving technical problems effectively.
You should be thorough, methodical, and prioritize quality over speed.
Your code will never be read by humans, so focus on correctness, not style.
</ROLE>

<EFFICIENCY>
* Each action you take is somewhat expensive. Minimize unnecessary actions.
* When exploring the codebase, use the find and grep tools with appropriate filters to minimize unnecessary operations.
* You do not have access to the internet, so do not attempt to search online for information.
</EFFICIENCY>

<CODE_QUALITY>
* Write clean, efficient code with minimal comments. Avoid redundancy in comments: do not repeat information that can be easily inferred from the code itself.
* When implementing solutions, focus on making the minimal changes needed to solve the problem.
* Before implementing any changes, first thoroughly understand the codebase through exploration.
</CODE_QUALITY>

<TROUBLESHOOTING>
* If you've made repeated attempts to solve a problem and it is still failing:
  1. Step back and reflect on 5-7 different possible sources of the problem
  2. Assess the likelihood of each possible cause
  3. Methodically address the most likely causes, starting with the highest probability
</TROUBLESHOOTING>
`

// IssueDescPrompt constructs the opening description of the reported
// vulnerability, optionally including a fix patch.
func IssueDescPrompt(issueDesc, issueSummary, diff string) string {
	var descStr string
	if issueSummary != "" {
		descStr = fmt.Sprintf("\"Summary: %s\nDescription: %s\"", issueSummary, issueDesc)
	} else {
		descStr = fmt.Sprintf("%q", issueDesc)
	}
	prompt := fmt.Sprintf(
		"The project I am working with has a vulnerability, reported as a CWE. The issue description says:\n%s\n"+
			"You do not have access to the internet or GitHub to look up more details.\n"+
			"There are no vulnerability reports in the project directory either.\n",
		descStr,
	)
	if diff != "" {
		prompt += fmt.Sprintf("```\nHere is the patch that fixed the vulnerability:\n%s\n```\n", diff)
	}
	return prompt
}

// ToolPrompt renders the registry's advertised tools into the fixed
// "The following tools are available" block every phase prompt ends with.
func ToolPrompt(registry *tools.Registry, workDir string) string {
	prompt := "The following tools are available:\n"
	for _, def := range registry.Definitions() {
		prompt += fmt.Sprintf("- %s: %s\n", def.Name, def.Description)
		prompt += fmt.Sprintf("  Usage:\n%s\n", def.Usage)
	}
	prompt += "\n"
	prompt += "If you emit output in one of the above formats, you will get the output of the corresponding tool as a reply.\n"
	prompt += "Note that each tool invocation must be in a separate reply! You can only invoke one tool per turn.\n"
	prompt += fmt.Sprintf("The current working directory is %s\n", workDir)
	return prompt
}

// DockerInstructions describes how the Dockerfile.vuln / run contract works
// for the given dataset family.
func DockerInstructions(dataset, workDir string) string {
	switch dataset {
	case "cwe-bench-java":
		return fmt.Sprintf(`
The project is built and run as a Docker container, and the Dockerfile is at %s/Dockerfile.vuln.
All the build dependencies for the project are already installed in Dockerfile.vuln.
However, if you need any new dependencies, you can add them to Dockerfile.vuln.
Make sure to not modify any of the lines in the Dockerfile above "# Do not modify anything above this line".
The entire project directory is copied into the Docker container, so you don't need to write any new COPY commands in the Dockerfile.
The command to run the test should be the CMD command in Dockerfile.vuln, so that the test can be run with
`+"`docker run -t imagename`"+`.
`, workDir)
	default:
		return fmt.Sprintf(`
The project is built and run as a Docker container, and the Dockerfile is at %s/Dockerfile.vuln.
The Dockerfile currently has some build dependencies, but you may need to add more.
Analyze the installation instructions in the project README or other documentation files, and add the necessary build/installation commands to Dockerfile.vuln.
The Dockerfile contains an instruction to copy the entire project directory into the Docker container, so you don't need to write any new COPY commands in the Dockerfile.
The command to run the test should be the CMD command in Dockerfile.vuln, so that the test can be run with
`+"`docker run -t imagename`"+`.
`, workDir)
	}
}

// BuildContextRoot returns the Docker build context root relative to the
// project workspace, which differs across dataset families (spec §4.6,
// supplemented from original_source/vuln_agent/modules/test_gen.py's Run
// tool: cwe-bench-java checks out the project two levels below the
// dataset root it builds from).
func BuildContextRoot(dataset string) string {
	if dataset == "cwe-bench-java" {
		return "../.."
	}
	return "."
}
