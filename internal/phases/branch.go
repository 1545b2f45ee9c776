package phases

import (
	"context"
	"fmt"

	"github.com/povagent/agent/internal/conversation"
	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/tools"
)

// BranchReasoning derives the branch-condition sequence on the flow's
// source-to-sink path, then the external-input conditions implied by it,
// grounded on original_source/vuln_agent/modules/branch_reasoning.py.
type BranchReasoning struct {
	Dataset     string
	ProjectName string
	WorkDir     string
	Logger      *logging.Logger
	Registry    *tools.Registry
	MaxTurns    int
}

// BranchOutput is the pair TestGen consumes.
type BranchOutput struct {
	Sequence   model.BranchSequence
	Conditions model.Conditions
}

// Run executes both sub-loops: first the <SEQUENCE> of branch conditions,
// then the <CONDITIONS> derived from it. flow may be the zero value when
// the Engine's no_flow flag elided flow reasoning.
func (p *BranchReasoning) Run(ctx context.Context, conv *conversation.Conversation, advisory model.Advisory, flow model.Flow) (BranchOutput, error) {
	if advisory.Details == "" {
		return BranchOutput{}, fmt.Errorf("failed to retrieve issue details")
	}

	prompt := IssueDescPrompt(advisory.Details, advisory.Summary, "")
	if flow.Raw != "" {
		prompt += "Here is a flow consisting of a sequence of program points to reach the vulnerability:\n" + flow.Raw + "\n"
	}
	prompt += "Could you generate the sequence of branch conditions encountered on the way to the sink, " +
		"starting from the source? Include *every single* if-else, try-except, or switch statement that the " +
		"program flow will encounter in the path from the source to the sink.\n" +
		"This should take the form of a sequence of program points, each in the following format:\n" +
		`{"type": "If-Else | Try-Except | Switch",` + "\n" +
		` "code": "Source code of program point (1-2 lines)",` + "\n" +
		` "file": "File path (absolute)",` + "\n" +
		` "outcome": "What should be the outcome of the branch statement in order to reach the vulnerability?"}` + "\n" +
		"You can use multiple intermediate steps and tool invocations, but when you are finished, your final " +
		"response should contain the sequence in the above format, within the tags <SEQUENCE> and </SEQUENCE>.\n"
	prompt += ToolPrompt(p.Registry, p.WorkDir)

	if err := conv.Append(ctx, model.RoleUser, prompt); err != nil {
		return BranchOutput{}, err
	}
	if err := runReasonActLoop(ctx, conv, p.Registry, p.Logger, p.MaxTurns, nil, nil); err != nil {
		return BranchOutput{}, err
	}

	response, ok := lastAssistantMessage(conv)
	if !ok {
		return BranchOutput{}, fmt.Errorf("branch reasoning failed to produce a valid response")
	}
	rawSeq, ok := model.ExtractTagged(response, "<SEQUENCE>", "</SEQUENCE>")
	if !ok {
		return BranchOutput{}, fmt.Errorf("branch reasoning failed to produce a valid branch response")
	}
	sequence, err := model.ParseBranchSequence(rawSeq)
	if err != nil {
		return BranchOutput{}, fmt.Errorf("branch reasoning produced an unparseable sequence: %w", err)
	}

	condPrompt := "Based on the above branch conditions that you generated, infer a set of conditions that the " +
		"external input must satisfy in order to reach the vulnerability.\n" +
		"Your final answer should be in the following format:\n" +
		"<CONDITIONS>\n1. Condition 1\n2. Condition 2\n...\n</CONDITIONS>\n"
	if err := conv.Append(ctx, model.RoleUser, condPrompt); err != nil {
		return BranchOutput{}, err
	}
	if err := runReasonActLoop(ctx, conv, p.Registry, p.Logger, p.MaxTurns, nil, nil); err != nil {
		return BranchOutput{}, err
	}

	condResponse, ok := lastAssistantMessage(conv)
	if !ok {
		return BranchOutput{}, fmt.Errorf("branch reasoning failed to produce valid conditions")
	}
	rawConditions, ok := model.ExtractTagged(condResponse, "<CONDITIONS>", "</CONDITIONS>")
	if !ok {
		return BranchOutput{}, fmt.Errorf("branch reasoning failed to produce valid conditions")
	}

	return BranchOutput{Sequence: sequence, Conditions: model.Conditions{Raw: rawConditions}}, nil
}
