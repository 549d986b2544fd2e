package llmclient

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdellibergoli/ai-test-automation/internal/agent/actions"
	"github.com/pdellibergoli/ai-test-automation/internal/agent/history"
)

// Policy turns the conversation into the next action invocation by
// asking the powerful model tier for a one-action JSON object. It
// satisfies the agent's policy contract.
type Policy struct {
	client Client
	logger *zap.Logger
}

// NewPolicy wraps a Client for use as the agent's decision maker.
func NewPolicy(client Client, logger *zap.Logger) *Policy {
	return &Policy{
		client: client,
		logger: logger.Named("llm_policy"),
	}
}

// DecideNext asks the model for the next action. The model must answer
// with a JSON object holding exactly one key: the action name mapped to
// its parameter object.
func (p *Policy) DecideNext(ctx context.Context, conversation []history.Message, actionSchema []byte) (actions.Invocation, error) {
	if len(conversation) == 0 {
		return actions.Invocation{}, fmt.Errorf("cannot decide on an empty conversation")
	}

	system, rest := splitSystem(conversation)
	system += "\n\nAvailable actions (JSON schema):\n" + string(actionSchema) +
		"\n\nAnswer with a single JSON object of the form {\"action_name\": {params}}. Pick exactly one action."

	raw, err := p.client.Generate(ctx, GenerationRequest{
		Tier:         TierPowerful,
		SystemPrompt: system,
		Conversation: rest,
		ForceJSON:    true,
	})
	if err != nil {
		return actions.Invocation{}, fmt.Errorf("decision generation failed: %w", err)
	}

	inv, err := actions.ParseInvocation([]byte(stripCodeFence(raw)))
	if err != nil {
		p.logger.Warn("Model produced an unparseable action", zap.String("raw", raw), zap.Error(err))
		return actions.Invocation{}, err
	}

	p.logger.Debug("Next action decided", zap.String("action", inv.Name))
	return inv, nil
}

// splitSystem folds leading system messages into the system instruction
// and returns the remaining conversation.
func splitSystem(conversation []history.Message) (string, []history.Message) {
	var system []string
	rest := conversation
	for len(rest) > 0 && rest[0].Role == history.RoleSystem {
		if text := rest[0].JoinedText(); text != "" {
			system = append(system, text)
		}
		rest = rest[1:]
	}
	return strings.Join(system, "\n\n"), rest
}

// stripCodeFence removes a markdown ```json fence if the model wrapped
// its answer in one despite the JSON response mime type.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
