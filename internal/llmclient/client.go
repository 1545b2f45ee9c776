// Package llmclient wraps the Anthropic Messages API behind a small
// completion interface, carrying the retry/backoff and transport-error
// taxonomy the Conversation and phase modules depend on.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/povagent/agent/internal/model"
)

// CompletionResult is what a single generate() call produces: the assistant
// text plus the token/cost accounting the Logger records.
type CompletionResult struct {
	Text         string
	InputTokens  int
	CachedTokens int
	OutputTokens int
	Cost         float64
}

// CompleteOptions parameterizes one completion call.
type CompleteOptions struct {
	Temperature float64
	// Cache tags the first 4 messages as ephemeral-cached when true,
	// per spec §4.3's caching hint. Purely an optimization.
	Cache bool
}

// Client is the completion surface the Conversation depends on.
type Client interface {
	Complete(ctx context.Context, messages []model.Message, opts CompleteOptions) (CompletionResult, error)
}

// TransportError classifies an LLM transport failure per spec §7(3).
type TransportError struct {
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

const (
	maxRetries    = 5
	baseDelay     = 2 * time.Second
	maxDelay      = 60 * time.Second
	maxOutputToks = 64000
)

// The *PricePerMTok constants hold the published Anthropic per-million-token
// pricing used for the cost ledger. Claude Sonnet pricing is the default; callers running a
// different model should treat Cost as an estimate.
const (
	inputPricePerMTok  = 3.00
	outputPricePerMTok = 15.00
	cachedPricePerMTok = 0.30
)

// AnthropicClient implements Client against the real Anthropic API via
// anthropic-sdk-go, replacing the teacher's hand-rolled HTTP client.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient builds a Client for the given API key and model.
func NewAnthropicClient(apiKey, modelName string) *AnthropicClient {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &c, model: modelName}
}

// Complete sends the full transcript to Anthropic and returns the assistant
// text plus usage accounting. System message (messages[0]) is pulled out
// per the Anthropic API's separate system-prompt parameter.
func (c *AnthropicClient) Complete(ctx context.Context, messages []model.Message, opts CompleteOptions) (CompletionResult, error) {
	var system string
	convo := messages
	if len(messages) > 0 && messages[0].Role == model.RoleSystem {
		system = messages[0].Content
		convo = messages[1:]
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxOutputToks,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  toAnthropicMessages(convo, opts.Cache),
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	} else {
		params.Temperature = anthropic.Float(0)
	}

	var resp *anthropic.Message
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return CompletionResult{}, ctx.Err()
			case <-time.After(backoffDelay(attempt-1, retryAfterHint(err))):
			}
		}

		resp, err = c.client.Messages.New(ctx, params)
		if err == nil {
			break
		}

		if !isRetryable(err) {
			return CompletionResult{}, &TransportError{Retryable: false, Err: fmt.Errorf("anthropic API error: %w", err)}
		}
		if attempt == maxRetries {
			return CompletionResult{}, &TransportError{Retryable: true, Err: fmt.Errorf("max retries exceeded for Anthropic API: %w", err)}
		}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	inputTokens := int(resp.Usage.InputTokens)
	cachedTokens := int(resp.Usage.CacheReadInputTokens)
	outputTokens := int(resp.Usage.OutputTokens)
	cost := (float64(inputTokens)/1_000_000)*inputPricePerMTok +
		(float64(cachedTokens)/1_000_000)*cachedPricePerMTok +
		(float64(outputTokens)/1_000_000)*outputPricePerMTok

	return CompletionResult{
		Text:         text,
		InputTokens:  inputTokens,
		CachedTokens: cachedTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
	}, nil
}

// toAnthropicMessages converts the Conversation transcript, applying the
// ephemeral prompt-cache hint to the first 4 messages when requested.
func toAnthropicMessages(msgs []model.Message, cache bool) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for i, m := range msgs {
		role := anthropic.MessageParamRoleUser
		if m.Role == model.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		block := anthropic.NewTextBlock(m.Content)
		if cache && i < 4 {
			block.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		out = append(out, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{block},
		})
	}
	return out
}

// isRetryable classifies an Anthropic SDK error per spec §7(3): rate limit,
// timeout, connection, and 5xx are retryable; bad-request/auth/404/422 fail
// immediately.
func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 400, 401, 403, 404, 422:
			return false
		case 408, 429:
			return true
		default:
			return apiErr.StatusCode >= 500
		}
	}
	// Connection-level errors (no structured API error) are retryable.
	return true
}

// retryAfterHint extracts a Retry-After duration from the last error, if any.
func retryAfterHint(err error) time.Duration {
	var apiErr *anthropic.Error
	if err != nil && errors.As(err, &apiErr) {
		if ra := apiErr.Response.Header.Get("Retry-After"); ra != "" {
			if d, perr := time.ParseDuration(ra + "s"); perr == nil {
				return d
			}
		}
	}
	return 0
}

func backoffDelay(attempt int, retryAfter time.Duration) time.Duration {
	delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt)))
	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	delay += jitter
	if retryAfter > delay {
		delay = retryAfter
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
