// Package conversation implements the append-only chat transcript: budget
// enforcement at append time, automatic token-threshold condensation, and
// LLM generation with cost/usage accounting. Generalizes the teacher's
// agent/context.go token-estimation heuristic and its compaction prompt
// idiom to the spec's fixed condensation algorithm and section names.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/povagent/agent/internal/config"
	"github.com/povagent/agent/internal/llmclient"
	"github.com/povagent/agent/internal/logging"
	"github.com/povagent/agent/internal/model"
)

// charsPerToken is the heuristic ratio for estimating token count, carried
// over from the teacher's EstimateTokens (agent/context.go).
const charsPerToken = 4

// BudgetExceededError is a terminal error: the run's cost or wall-clock
// ceiling has been reached.
type BudgetExceededError struct {
	Kind   string // "cost" or "time"
	Limit  float64
	Actual float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s budget exceeded: %.4f >= %.4f", e.Kind, e.Actual, e.Limit)
}

// Conversation is an append-only transcript bounded by a token threshold,
// owned exclusively by the Engine and borrowed by one Phase Module at a time.
type Conversation struct {
	messages []model.Message

	client        llmclient.Client
	logger        *logging.Logger
	contextWindow int
	budgetDollars float64
	timeoutSecs   int
	cacheEnabled  bool
}

// New seeds a fresh Conversation with a system message, per spec §4.6's
// fresh-conversation-per-phase Engine behavior.
func New(client llmclient.Client, logger *logging.Logger, systemPrompt string, contextWindow int, cfg *config.Config) *Conversation {
	c := &Conversation{
		client:        client,
		logger:        logger,
		contextWindow: contextWindow,
		budgetDollars: cfg.BudgetDollars,
		timeoutSecs:   cfg.TimeoutSecs,
		cacheEnabled:  true,
	}
	c.messages = append(c.messages, model.Message{Role: model.RoleSystem, Content: systemPrompt})
	return c
}

// Messages returns the current transcript, read-only.
func (c *Conversation) Messages() []model.Message {
	return append([]model.Message(nil), c.messages...)
}

// Append is the sole mutator. role=assistant is rejected; assistant
// messages are only introduced by Generate. Budgets are checked before
// the append; condensation runs after if the threshold is crossed.
func (c *Conversation) Append(ctx context.Context, role model.Role, content string) error {
	if role == model.RoleAssistant {
		return fmt.Errorf("assistant messages may only be introduced by Generate")
	}

	if err := c.checkBudgets(); err != nil {
		return err
	}

	c.messages = append(c.messages, model.Message{Role: role, Content: content})

	if c.totalTokens() >= c.condensationThreshold() {
		if err := c.condense(ctx); err != nil {
			return fmt.Errorf("condense conversation: %w", err)
		}
	}
	return nil
}

func (c *Conversation) checkBudgets() error {
	cost := c.logger.AccumulatedCost()
	if cost >= c.budgetDollars {
		return &BudgetExceededError{Kind: "cost", Limit: c.budgetDollars, Actual: cost}
	}
	elapsed := c.logger.AccumulatedTime()
	if elapsed >= float64(c.timeoutSecs) {
		return &BudgetExceededError{Kind: "time", Limit: float64(c.timeoutSecs), Actual: elapsed}
	}
	return nil
}

// Generate calls the LLM with the full transcript at temperature 0.3,
// appends the result as role=assistant, and records the llm_call action.
func (c *Conversation) Generate(ctx context.Context) (string, error) {
	if err := c.checkBudgets(); err != nil {
		return "", err
	}

	start := time.Now()
	result, err := c.client.Complete(ctx, c.messages, llmclient.CompleteOptions{
		Temperature: 0.3,
		Cache:       c.cacheEnabled,
	})
	if err != nil {
		return "", err
	}
	elapsed := time.Since(start)

	c.logger.LogLLMCall(result.InputTokens, result.CachedTokens, result.OutputTokens, result.Cost, start, elapsed)
	c.messages = append(c.messages, model.Message{Role: model.RoleAssistant, Content: result.Text})
	return result.Text, nil
}

func (c *Conversation) totalTokens() int {
	total := 0
	for _, m := range c.messages {
		total += estimateTokens(m)
	}
	return total
}

func estimateTokens(m model.Message) int {
	tokens := (len(m.Role) + len(m.Content)) / charsPerToken
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

func (c *Conversation) condensationThreshold() int {
	return int(float64(c.contextWindow) * config.CondensationThresholdFraction)
}

// condense compresses the transcript into a structured summary while
// preserving task continuity, per spec §4.3's algorithm: walk messages
// front-to-back accumulating into a to-condense bucket until its token
// count reaches 70% of the current total; the last message added is
// popped back out; everything remaining is the retain tail.
func (c *Conversation) condense(ctx context.Context) error {
	total := c.totalTokens()
	targetCondense := int(float64(total) * config.CondensationTargetFraction)

	condenseBucket := []model.Message{}
	bucketTokens := 0
	splitIdx := 0
	for i, m := range c.messages {
		condenseBucket = append(condenseBucket, m)
		bucketTokens += estimateTokens(m)
		splitIdx = i + 1
		if bucketTokens >= targetCondense {
			// pop the last message added back out
			condenseBucket = condenseBucket[:len(condenseBucket)-1]
			splitIdx--
			break
		}
	}
	retainTail := append([]model.Message(nil), c.messages[splitIdx:]...)

	if len(c.messages) < 2 {
		return fmt.Errorf("cannot condense a conversation with fewer than 2 messages")
	}
	systemMsg := c.messages[0]
	firstUserMsg := c.messages[1]

	summaryPrompt := buildSummaryPrompt(condenseBucket)
	summaryReq := []model.Message{
		{Role: model.RoleSystem, Content: condensationSystemPrompt()},
		{Role: model.RoleUser, Content: summaryPrompt},
	}

	start := time.Now()
	result, err := c.client.Complete(ctx, summaryReq, llmclient.CompleteOptions{Temperature: 0, Cache: false})
	if err != nil {
		return fmt.Errorf("summarization call failed: %w", err)
	}
	c.logger.LogLLMCall(result.InputTokens, result.CachedTokens, result.OutputTokens, result.Cost, start, time.Since(start))

	rebuilt := make([]model.Message, 0, 4+len(retainTail))
	rebuilt = append(rebuilt, systemMsg)
	rebuilt = append(rebuilt, firstUserMsg)
	rebuilt = append(rebuilt, model.Message{
		Role:    model.RoleUser,
		Content: "I am truncating the conversation to stay within the context window. Here is a summary of progress so far:",
	})
	rebuilt = append(rebuilt, model.Message{Role: model.RoleAssistant, Content: result.Text})
	rebuilt = append(rebuilt, retainTail...)

	c.messages = rebuilt
	return nil
}

// condensationSystemPrompt mandates the fixed sections spec §4.3 requires.
func condensationSystemPrompt() string {
	return `You are summarizing an in-progress agent conversation so it can continue within a smaller context window. Produce a structured summary with exactly these sections, in this order:

FILES READ
FILES MODIFIED
CODE SUMMARY
CODE STATE
COMPLETED
PENDING

Be precise and factual. Do not add commentary outside these sections.`
}

func buildSummaryPrompt(toCondense []model.Message) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following conversation segment:\n\n")
	for _, m := range toCondense {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	return sb.String()
}
