package llmclient

import (
	"context"
	"sync/atomic"

	"github.com/povagent/agent/internal/model"
)

// ScriptedResult is one scripted response for StubClient.
type ScriptedResult struct {
	Text string
	Cost float64
	Err  error
}

// StubClient is a deterministic Client for phase/engine tests, grounded on
// the teacher's mockLLMClient pattern: an ordered list of scripted
// responses, returning a final fallback once exhausted.
type StubClient struct {
	Responses []ScriptedResult
	Fallback  string
	callCount int32
}

func (s *StubClient) Complete(ctx context.Context, messages []model.Message, opts CompleteOptions) (CompletionResult, error) {
	idx := int(atomic.AddInt32(&s.callCount, 1)) - 1
	if idx >= len(s.Responses) {
		text := s.Fallback
		if text == "" {
			text = "<DONE>"
		}
		return CompletionResult{Text: text, InputTokens: 10, OutputTokens: 10}, nil
	}
	r := s.Responses[idx]
	if r.Err != nil {
		return CompletionResult{}, r.Err
	}
	return CompletionResult{Text: r.Text, InputTokens: 10, OutputTokens: 10, Cost: r.Cost}, nil
}

// CallCount returns how many times Complete has been invoked.
func (s *StubClient) CallCount() int {
	return int(atomic.LoadInt32(&s.callCount))
}
