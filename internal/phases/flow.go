package phases

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/povagent/agent/internal/conversation"
	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/tools"
)

// FlowReasoning derives the Source→…→Sink program-point sequence reaching
// the reported vulnerability, grounded on
// original_source/vuln_agent/modules/flow_reasoning.py.
type FlowReasoning struct {
	Dataset     string
	ProjectName string
	WorkDir     string
	Logger      *logging.Logger
	Registry    *tools.Registry
	MaxTurns    int
	UsePatch    bool
}

// Run executes the flow-reasoning reason-act loop over conv and returns the
// extracted Flow. A nil error with a zero-value Flow never happens; failure
// to produce a terminated <FLOW> block is reported as an error so the
// Engine can record a failure result row.
func (p *FlowReasoning) Run(ctx context.Context, conv *conversation.Conversation, advisory model.Advisory) (model.Flow, error) {
	if advisory.Details == "" {
		return model.Flow{}, fmt.Errorf("failed to retrieve issue details")
	}

	var diff string
	if p.UsePatch {
		d, err := p.readDiff()
		if err != nil {
			return model.Flow{}, err
		}
		diff = d
	}

	prompt := IssueDescPrompt(advisory.Details, advisory.Summary, diff)
	prompt += ToolPrompt(p.Registry, p.WorkDir)
	prompt += "Could you generate a sequence of program points to reach the vulnerable point (sink), " +
		"starting from an external input (source)? This corresponds to a vulnerable \"flow\" through the program. " +
		"The flow should take the form of a sequence of program points, each in the following format:\n" +
		`{"role": "Source|Intermediate|Sink",` + "\n" +
		` "code": "Source code of program point (1-2 lines)",` + "\n" +
		` "variable": "Variable name",` + "\n" +
		` "file": "File path (absolute)",` + "\n" +
		` "remarks": "Comments about this point, if any"}` + "\n" +
		"You can use multiple intermediate steps and tool invocations, but when you are finished, your final " +
		"response should contain the flow in the above format, within the tags <FLOW> and </FLOW>.\n"

	if err := conv.Append(ctx, model.RoleUser, prompt); err != nil {
		return model.Flow{}, err
	}

	if err := runReasonActLoop(ctx, conv, p.Registry, p.Logger, p.MaxTurns, nil, nil); err != nil {
		return model.Flow{}, err
	}

	response, ok := lastAssistantMessage(conv)
	if !ok {
		return model.Flow{}, fmt.Errorf("flow reasoning failed to produce a valid response")
	}
	raw, ok := model.ExtractTagged(response, "<FLOW>", "</FLOW>")
	if !ok {
		return model.Flow{}, fmt.Errorf("flow reasoning failed to produce a valid flow response")
	}

	flow, err := model.ParseFlow(raw)
	if err != nil {
		return model.Flow{}, fmt.Errorf("flow reasoning produced an unparseable flow: %w", err)
	}
	return flow, nil
}

func (p *FlowReasoning) readDiff() (string, error) {
	diffPath := filepath.Join(p.WorkDir, ".fix.patch")
	data, err := os.ReadFile(diffPath)
	if err != nil {
		return "", fmt.Errorf("diff file %s does not exist", diffPath)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no diff data found in file %s", diffPath)
	}
	return string(data), nil
}
