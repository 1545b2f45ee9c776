// Package logging provides the run logger: a structured slog sink plus an
// incrementally-persisted action/result ledger, adapted from the session
// atomic-write pattern used elsewhere in this module for durable disk state.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActionKind enumerates the persisted action event types.
type ActionKind string

const (
	ActionLLMCall    ActionKind = "llm_call"
	ActionToolCall   ActionKind = "tool_call"
	ActionValidation ActionKind = "validation"
)

// Action is one entry in the persisted action ledger. Every action carries
// the accumulated cost/time at the moment it was recorded.
type Action struct {
	Type             ActionKind `json:"type"`
	Name             string     `json:"name,omitempty"`
	StartTime        time.Time  `json:"start_time,omitempty"`
	ElapsedSeconds   float64    `json:"elapsed_seconds,omitempty"`
	InputTokens      int        `json:"input_tokens,omitempty"`
	CachedTokens     int        `json:"cached_tokens,omitempty"`
	OutputTokens     int        `json:"output_tokens,omitempty"`
	Cost             float64    `json:"cost,omitempty"`
	AccumulatedCost  float64    `json:"accumulated_cost"`
	AccumulatedTime  float64    `json:"accumulated_time"`
}

// Result is one row of the Engine's phase-outcome log.
type Result struct {
	Phase  string `json:"phase"`
	Status string `json:"status"`
}

// Record is the full per-run persisted document: {date, args, actions, results}.
type Record struct {
	RunID   string            `json:"run_id"`
	Date    time.Time         `json:"date"`
	Args    map[string]any    `json:"args"`
	Actions []Action          `json:"actions"`
	Results []Result          `json:"results"`
}

// Logger accumulates cost/time and persists the run record incrementally.
// It also emits structured slog events for human/operator consumption.
type Logger struct {
	mu   sync.Mutex
	path string
	rec  Record
	slog *slog.Logger

	accumulatedCost float64
	accumulatedTime float64
	startedAt       time.Time
}

// New creates a Logger rooted at dir, writing record.json incrementally and
// JSON slog events to events.log alongside it.
func New(dir string, args map[string]any) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	eventsPath := filepath.Join(dir, "events.log")
	f, err := os.OpenFile(eventsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open events log: %w", err)
	}
	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})

	l := &Logger{
		path:      filepath.Join(dir, "record.json"),
		slog:      slog.New(handler),
		startedAt: time.Now(),
		rec: Record{
			RunID: uuid.NewString(),
			Date:  time.Now(),
			Args:  args,
		},
	}
	return l, nil
}

// Dummy returns a no-op Logger writing nowhere, for tests — equivalent to
// the original's DummyLogger.
func Dummy() *Logger {
	return &Logger{
		slog:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		startedAt: time.Now(),
	}
}

// AccumulatedCost returns the running dollar cost across all recorded LLM calls.
func (l *Logger) AccumulatedCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accumulatedCost
}

// AccumulatedTime returns the running wall-clock seconds since the Logger
// was created.
func (l *Logger) AccumulatedTime() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Since(l.startedAt).Seconds()
}

// LogLLMCall records a completed LLM generation and its cost/token accounting.
func (l *Logger) LogLLMCall(inputTokens, cachedTokens, outputTokens int, cost float64, start time.Time, elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accumulatedCost += cost
	l.accumulatedTime = time.Since(l.startedAt).Seconds()
	l.appendLocked(Action{
		Type:            ActionLLMCall,
		StartTime:       start,
		ElapsedSeconds:  elapsed.Seconds(),
		InputTokens:     inputTokens,
		CachedTokens:    cachedTokens,
		OutputTokens:    outputTokens,
		Cost:            cost,
		AccumulatedCost: l.accumulatedCost,
		AccumulatedTime: l.accumulatedTime,
	})
	l.slog.Info("llm_call", "input_tokens", inputTokens, "cached_tokens", cachedTokens,
		"output_tokens", outputTokens, "cost", cost, "accumulated_cost", l.accumulatedCost)
}

// LogToolCall records a dispatched tool invocation.
func (l *Logger) LogToolCall(name string, start time.Time, elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accumulatedTime = time.Since(l.startedAt).Seconds()
	l.appendLocked(Action{
		Type:            ActionToolCall,
		Name:            name,
		StartTime:       start,
		ElapsedSeconds:  elapsed.Seconds(),
		AccumulatedCost: l.accumulatedCost,
		AccumulatedTime: l.accumulatedTime,
	})
	l.slog.Info("tool_call", "name", name, "elapsed_seconds", elapsed.Seconds())
}

// LogValidation records a Validator run.
func (l *Logger) LogValidation(status string, start time.Time, elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accumulatedTime = time.Since(l.startedAt).Seconds()
	l.appendLocked(Action{
		Type:            ActionValidation,
		Name:            status,
		StartTime:       start,
		ElapsedSeconds:  elapsed.Seconds(),
		AccumulatedCost: l.accumulatedCost,
		AccumulatedTime: l.accumulatedTime,
	})
	l.slog.Info("validation", "status", status)
}

// LogFailure records a fatal/terminal error.
func (l *Logger) LogFailure(msg string) {
	l.slog.Warn("failure", "message", msg)
}

// LogResult appends one phase-outcome row and persists the record.
func (l *Logger) LogResult(phase, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rec.Results = append(l.rec.Results, Result{Phase: phase, Status: status})
	return l.persistLocked()
}

// appendLocked adds an action and persists. Caller must hold l.mu.
func (l *Logger) appendLocked(a Action) {
	l.rec.Actions = append(l.rec.Actions, a)
	_ = l.persistLocked()
}

func (l *Logger) persistLocked() error {
	if l.path == "" {
		return nil // dummy logger
	}
	data, err := json.MarshalIndent(l.rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return atomicWrite(l.path, data)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".record-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Summary is a cost/outcome digest of the run so far, restoring the
// original's print_results() accounting (not named in the distilled
// spec). The CLI's end-of-run printout lists the Engine's result rows
// and does not use it.
type Summary struct {
	AccumulatedCost float64        `json:"accumulated_cost"`
	AccumulatedTime float64        `json:"accumulated_time"`
	Results         []Result       `json:"results"`
}

// Summary snapshots the current ledger state.
func (l *Logger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Summary{
		AccumulatedCost: l.accumulatedCost,
		AccumulatedTime: time.Since(l.startedAt).Seconds(),
		Results:         append([]Result(nil), l.rec.Results...),
	}
}
