package phases

import (
	"context"
	"fmt"

	"github.com/povagent/agent/internal/conversation"
	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
	"github.com/povagent/agent/internal/tools"
)

// runReasonActLoop drives the shared turn structure every phase module
// uses: generate, dispatch at most one tool invocation per turn, feed the
// result back, and stop either when the model's reply carries no
// invocation (FlowReasoning/BranchReasoning) or — when onNoInvocation is
// supplied — when that hook reports done; otherwise a nudge is appended
// and the loop continues (TestGen/repair, which wait for an explicit
// <DONE>).
//
// onToolSuccess lets TestGen splice in its "File written successfully"
// nudge without duplicating the loop. Either hook may be nil.
func runReasonActLoop(
	ctx context.Context,
	conv *conversation.Conversation,
	registry *tools.Registry,
	logger *logging.Logger,
	maxTurns int,
	onToolSuccess func(output string) (extra string, ok bool),
	onNoInvocation func(response string) (done bool),
) error {
	for turn := 0; turn < maxTurns; turn++ {
		response, err := conv.Generate(ctx)
		if err != nil {
			return err
		}

		result, found, err := registry.Dispatch(ctx, response)
		if err != nil {
			return err
		}

		if found {
			if result.Status == model.ToolSuccess {
				if err := conv.Append(ctx, model.RoleUser, result.Output); err != nil {
					return err
				}
				if onToolSuccess != nil {
					if extra, ok := onToolSuccess(result.Output); ok {
						if err := conv.Append(ctx, model.RoleUser, extra); err != nil {
							return err
						}
					}
				}
			} else {
				msg := fmt.Sprintf("Tool invocation failed: %s", result.Output)
				if err := conv.Append(ctx, model.RoleUser, msg); err != nil {
					return err
				}
			}
			continue
		}

		if onNoInvocation == nil {
			// FlowReasoning/BranchReasoning: absence of an invocation ends the turn loop.
			return nil
		}
		if onNoInvocation(response) {
			return nil
		}
		if err := conv.Append(ctx, model.RoleUser, continueNudge); err != nil {
			return err
		}
	}
	return nil
}

// lastAssistantMessage returns the final transcript entry's content if it
// is an assistant turn, matching every phase's terminal
// `messages[-1].role == "assistant"` check.
func lastAssistantMessage(conv *conversation.Conversation) (string, bool) {
	msgs := conv.Messages()
	if len(msgs) == 0 {
		return "", false
	}
	last := msgs[len(msgs)-1]
	if last.Role != model.RoleAssistant {
		return "", false
	}
	return last.Content, true
}

const continueNudge = "Your output doesn't contain a <TOOL>...</TOOL> invocation. If you have generated, run and checked your test, respond <DONE>."
