package agent

import (
	"time"

	"github.com/pdellibergoli/ai-test-automation/internal/agent/actions"
)

// Task defines the objective handed to an agent run.
type Task struct {
	ID          string    `json:"id"`          // A unique identifier for this task.
	Description string    `json:"description"` // The goal, in natural language, for the agent to achieve.
	StartTime   time.Time `json:"start_time"`  // The time the task was initiated.
}

// StepRecord captures what happened during a single step of the run.
type StepRecord struct {
	Step     int             `json:"step"`     // 1-based step number.
	Action   string          `json:"action"`   // The action name the policy selected, if any.
	Outcome  actions.Outcome `json:"outcome"`  // The dispatch outcome for the step.
	Err      string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"` // Wall time spent on the step.
}

// RunResult encapsulates the final output of a completed run.
type RunResult struct {
	AgentID     string       `json:"agent_id"`
	TaskID      string       `json:"task_id"`
	Steps       int          `json:"steps"`                  // Total steps executed.
	Done        bool         `json:"done"`                   // True if the policy declared the task finished.
	Success     bool         `json:"success"`                // The policy's own success verdict, valid when Done.
	FinalResult string       `json:"final_result,omitempty"` // The text of the terminating action, if any.
	History     []StepRecord `json:"history"`
}
