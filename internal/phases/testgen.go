package phases

import (
	"context"
	"fmt"
	"strings"

	"github.com/povagent/agent/internal/config"
	"github.com/povagent/agent/internal/conversation"
	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/tools"
)

// TestGen drives the project workspace toward a Dockerfile.vuln-backed
// test case that fails exactly when the advisory's vulnerability is
// present, grounded on original_source/vuln_agent/modules/test_gen.py.
type TestGen struct {
	Dataset     string
	ProjectName string
	WorkDir     string
	Logger      *logging.Logger
	Registry    *tools.Registry
	MaxTurns    int
}

// noSimulationRule is the fixed reminder in the initial prompt (Repair's
// prompt restates the same rule in its own text): the test must drive
// the real project, not stand in for it.
const noSimulationRule = "This test should actually run the vulnerable code in the project.\n" +
	"- It should NOT read the source code to check for the presence of a vulnerability.\n" +
	"- It should NOT \"simulate\" the vulnerability by running some separate code that does not use the project.\n"

func onWriteSuccessNudge(output string) (string, bool) {
	if strings.Contains(output, "File written successfully") {
		return "If you have finished generating your test, use the Run tool to check it.", true
	}
	return "", false
}

func onNoInvocationWaitForDone(response string) bool {
	return strings.Contains(response, "<DONE>")
}

// Run builds the initial test-generation prompt — naming the CWE class,
// the flow and conditions handed off from earlier phases (either may be
// the zero value when no_flow/no_branch elided them) — and drives the
// reason-act loop until the model emits <DONE>.
func (p *TestGen) Run(ctx context.Context, conv *conversation.Conversation, advisory model.Advisory, flow model.Flow, conditions model.Conditions) error {
	if advisory.Details == "" {
		return fmt.Errorf("failed to retrieve issue details")
	}

	var cweDesc string
	for _, id := range advisory.CWEIDs {
		if ins, ok := config.LookupCWE(id); ok {
			cweDesc = ins.Instruction
			break
		}
	}
	if cweDesc == "" {
		return fmt.Errorf("unsupported CWE ID(s) %v for project %s", advisory.CWEIDs, p.ProjectName)
	}

	dockerInstructions := DockerInstructions(p.Dataset, p.WorkDir)

	prompt := IssueDescPrompt(advisory.Details, advisory.Summary, "")
	prompt += fmt.Sprintf(`
Now create a test case that FAILS (exits with non-zero code) if the vulnerability EXISTS,
and PASSES (exits with code 0) if the vulnerability DOES NOT EXIST.
%s
%s
`, cweDesc, noSimulationRule)

	if flow.Raw != "" {
		prompt += fmt.Sprintf("Here is a flow consisting of a sequence of program points to reach the vulnerability:\n%s\n\n", flow.Raw)
	}

	prompt += "The test should start from the vulnerability 'source' and reach the 'sink'. " +
		"It should be designed such that it passes through all the branch conditions on the way.\n"
	if conditions.Raw != "" {
		prompt += fmt.Sprintf("This means that the input and method calls should be carefully crafted, satisfying the following conditions:\n%s\n\n", conditions.Raw)
	}

	prompt += dockerInstructions
	prompt += `
Feel free to create any new files to create the test case.
You are highly encouraged to insert print statements in the existing source files to debug your test.
Remember the branch conditions and flow that you derived earlier, and use them to guide your test generation and debugging process.

Once you verify that the flow has reached the 'sink', you should analyze the observed behavior of the program
to ensure that the test FAILS if the vulnerability exists, and PASSES if it does not exist.
To re-emphasize, this test should NOT be based on reading the source code, but rather on the actual behavior of the program when it is run.
If I fix the vulnerability in the project, the test should PASS.
`
	prompt += ToolPrompt(p.Registry, p.WorkDir)
	prompt += "If you successfully generate the test case and confirm that it satisfies all the above conditions, respond <DONE>."

	if err := conv.Append(ctx, model.RoleUser, prompt); err != nil {
		return err
	}

	if err := runReasonActLoop(ctx, conv, p.Registry, p.Logger, p.MaxTurns, onWriteSuccessNudge, onNoInvocationWaitForDone); err != nil {
		return err
	}

	response, ok := lastAssistantMessage(conv)
	if !ok {
		return fmt.Errorf("test generation failed to produce a valid response")
	}
	if !strings.Contains(response, "<DONE>") {
		return fmt.Errorf("test generation failed to produce a valid test case")
	}
	return nil
}

// Repair re-enters the same conversation with the validator's feedback,
// driving the loop again until <DONE>. Grounded on test_gen.py's repair().
func (p *TestGen) Repair(ctx context.Context, conv *conversation.Conversation, feedback string) error {
	if len(conv.Messages()) == 0 {
		return fmt.Errorf("no conversation history to repair")
	}

	prompt := fmt.Sprintf(
		"The test you generated had the following error:\n%s\n"+
			"Please fix the test case. Carefully analyze this output for errors or messages that can help you debug your test. "+
			"Reason step-by-step about what might have gone wrong, and how you can fix it.\n"+
			"You can use the <TOOL>...</TOOL> format to invoke tools, and you can also add new files.\n"+
			"When you have generated, run and checked your test again, respond with a message containing the string \"<DONE>\".\n"+
			"Remember that the test should actually run the vulnerable code in the project, \n"+
			"- It should NOT read the source code to check for the presence of a vulnerability.\n"+
			"- It should NOT \"simulate\" the vulnerability by running some separate code that does not use the project.\n",
		feedback,
	)

	if err := conv.Append(ctx, model.RoleUser, prompt); err != nil {
		return err
	}

	if err := runReasonActLoop(ctx, conv, p.Registry, p.Logger, p.MaxTurns, onWriteSuccessNudge, onNoInvocationWaitForDone); err != nil {
		return err
	}

	if _, ok := lastAssistantMessage(conv); !ok {
		return fmt.Errorf("repair failed to produce a valid response")
	}
	return nil
}
