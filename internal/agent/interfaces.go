package agent

import (
	"context"

	"github.com/pdellibergoli/ai-test-automation/internal/agent/actions"
	"github.com/pdellibergoli/ai-test-automation/internal/agent/history"
)

// Policy is the decision-making component of the agent. Given the
// conversation so far and the JSON schema of the available actions, it
// picks the next action to execute. Implementations typically wrap an
// LLM; tests substitute a scripted policy.
type Policy interface {
	DecideNext(ctx context.Context, conversation []history.Message, actionSchema []byte) (actions.Invocation, error)
}
