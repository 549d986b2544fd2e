package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdellibergoli/ai-test-automation/internal/agent/actions"
	"github.com/pdellibergoli/ai-test-automation/internal/agent/history"
	"github.com/pdellibergoli/ai-test-automation/internal/agent/memory"
)

// Config holds the run-loop parameters.
type Config struct {
	// MaxSteps caps the number of policy/dispatch iterations.
	MaxSteps int
	// MaxFailures aborts the run after this many consecutive policy or
	// dispatch failures.
	MaxFailures int
	// SystemPrompt seeds the conversation. Empty selects the default.
	SystemPrompt string
}

// DefaultConfig returns the standard run-loop parameters.
func DefaultConfig() Config {
	return Config{
		MaxSteps:    50,
		MaxFailures: 3,
	}
}

const defaultSystemPrompt = `You are an autonomous testing agent that controls an application through a fixed set of actions.
On every step you receive the conversation so far and a JSON schema describing the available actions.
Respond with exactly one action invocation that moves the task forward.
When the task is finished, invoke the "done" action with the result text and whether it succeeded.`

// truncation applied to error text fed back into the conversation.
const maxFeedbackChars = 200

// Agent drives a task to completion: it asks the policy for the next
// action, dispatches it, records the outcome in managed history, and
// periodically consolidates old messages into a summary.
type Agent struct {
	id           string
	cfg          Config
	logger       *zap.Logger
	policy       Policy
	catalog      *actions.Catalog
	dispatcher   *actions.Dispatcher
	history      *history.Manager
	consolidator *memory.Consolidator
	caps         actions.Capabilities
}

// New assembles an agent instance from its components. The consolidator
// may be nil, which disables memory consolidation.
func New(
	cfg Config,
	policy Policy,
	catalog *actions.Catalog,
	dispatcher *actions.Dispatcher,
	hist *history.Manager,
	consolidator *memory.Consolidator,
	caps actions.Capabilities,
	logger *zap.Logger,
) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultConfig().MaxFailures
	}
	agentID := uuid.New().String()[:8]
	return &Agent{
		id:           agentID,
		cfg:          cfg,
		logger:       logger.Named("agent").With(zap.String("agent_id", agentID)),
		policy:       policy,
		catalog:      catalog,
		dispatcher:   dispatcher,
		history:      hist,
		consolidator: consolidator,
		caps:         caps,
	}
}

// ID returns the short run identifier assigned at construction.
func (a *Agent) ID() string { return a.id }

// Run executes the step loop for the given task until the policy
// declares it done, the step cap is reached, the context is cancelled,
// or an unrecoverable error occurs.
func (a *Agent) Run(ctx context.Context, task Task) (*RunResult, error) {
	a.logger.Info("Starting task", zap.String("task_id", task.ID), zap.String("description", task.Description))

	a.seedConversation(task)

	schemaJSON, err := a.catalog.ExportSchema().JSONSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to export action schema: %w", err)
	}

	result := &RunResult{AgentID: a.id, TaskID: task.ID}
	failures := 0

	for step := 1; step <= a.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Steps = step
		stepStart := time.Now()

		// Enforce the token budget before asking for a decision.
		if err := a.history.Cut(); err != nil {
			return result, fmt.Errorf("conversation is unrecoverable at step %d: %w", step, err)
		}

		inv, err := a.policy.DecideNext(ctx, a.history.Messages(), schemaJSON)
		if err != nil {
			failures++
			a.logger.Warn("Policy failed to produce an action",
				zap.Int("step", step), zap.Int("consecutive_failures", failures), zap.Error(err))
			if failures >= a.cfg.MaxFailures {
				return result, fmt.Errorf("aborting after %d consecutive failures: %w", failures, err)
			}
			a.recordStep(result, StepRecord{Step: step, Err: err.Error(), Duration: time.Since(stepStart)})
			a.history.Add(history.Text(history.RoleUser,
				fmt.Sprintf("Your last response was not a valid action: %s", truncateFeedback(err.Error()))), history.ClassRegular)
			continue
		}

		outcome, err := a.dispatcher.Dispatch(ctx, inv, a.caps)
		if err != nil {
			failures++
			a.logger.Warn("Action dispatch failed",
				zap.Int("step", step), zap.String("action", inv.Name),
				zap.Int("consecutive_failures", failures), zap.Error(err))
			if failures >= a.cfg.MaxFailures {
				return result, fmt.Errorf("aborting after %d consecutive failures: %w", failures, err)
			}
			a.recordStep(result, StepRecord{Step: step, Action: inv.Name, Err: err.Error(), Duration: time.Since(stepStart)})
			a.history.Add(history.Text(history.RoleUser,
				fmt.Sprintf("Action %s failed: %s", inv.Name, truncateFeedback(err.Error()))), history.ClassRegular)
			continue
		}

		failures = 0
		a.recordStep(result, StepRecord{Step: step, Action: inv.Name, Outcome: outcome, Duration: time.Since(stepStart)})
		a.history.Add(history.Text(history.RoleUser, outcomeNote(inv.Name, outcome)), history.ClassRegular)

		if a.consolidator != nil {
			a.consolidator.MaybeConsolidate(ctx, a.history, step)
		}

		if outcome.IsDone {
			result.Done = true
			result.Success = outcome.Success
			result.FinalResult = outcome.ExtractedContent
			a.logger.Info("Task finished",
				zap.Int("steps", step), zap.Bool("success", outcome.Success))
			return result, nil
		}
	}

	a.logger.Warn("Reached maximum steps without completing the task", zap.Int("max_steps", a.cfg.MaxSteps))
	return result, nil
}

// seedConversation installs the fixed opening messages. The system
// prompt and the sensitive-data notice survive every trim and
// consolidation; the memory-start marker does not.
func (a *Agent) seedConversation(task Task) {
	prompt := a.cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	a.history.Add(history.Text(history.RoleSystem, prompt), history.ClassInit)
	a.history.Add(history.Text(history.RoleUser, fmt.Sprintf("Your task is: %s", task.Description)), history.ClassTask)

	if notice := sensitiveNotice(a.history.Sensitive()); notice != "" {
		a.history.Add(history.Text(history.RoleUser, notice), history.ClassInit)
	}
	a.history.Add(history.Text(history.RoleUser, "[Your task history memory starts here]"), history.ClassRegular)
}

// sensitiveNotice tells the policy which placeholders exist without
// revealing the underlying values.
func sensitiveNotice(secrets history.SensitiveValues) string {
	placeholders := secrets.Placeholders()
	if len(placeholders) == 0 {
		return ""
	}
	return fmt.Sprintf(
		"Here are placeholders for sensitive data: %s\nTo use them, include e.g. <secret>%s</secret> where the value is needed.",
		strings.Join(placeholders, ", "), placeholders[0])
}

// outcomeNote picks the text to persist in the conversation for a
// completed dispatch. Long-term memory wins over the full extracted
// content to keep the history compact.
func outcomeNote(action string, outcome actions.Outcome) string {
	if !outcome.Success && outcome.Error != "" {
		return fmt.Sprintf("Action %s failed: %s", action, truncateFeedback(outcome.Error))
	}
	if outcome.LongTermMemory != "" {
		return outcome.LongTermMemory
	}
	if outcome.ExtractedContent != "" {
		return outcome.ExtractedContent
	}
	return fmt.Sprintf("Action %s completed", action)
}

func (a *Agent) recordStep(result *RunResult, rec StepRecord) {
	result.History = append(result.History, rec)
}

func truncateFeedback(s string) string {
	if utf8.RuneCountInString(s) <= maxFeedbackChars {
		return s
	}
	return string([]rune(s)[:maxFeedbackChars]) + "..."
}
