package llmclient

import (
	"context"

	"github.com/pdellibergoli/ai-test-automation/internal/agent/history"
)

// ModelTier selects how much model capability a request needs.
type ModelTier string

const (
	// TierFast is for cheap, high-volume work such as history summaries.
	TierFast ModelTier = "fast"
	// TierPowerful is for the main decision-making calls.
	TierPowerful ModelTier = "powerful"
)

// GenerationRequest carries one text-generation call to a provider.
type GenerationRequest struct {
	Tier         ModelTier
	SystemPrompt string
	Conversation []history.Message
	// ForceJSON asks the provider to constrain output to a JSON object.
	ForceJSON bool
}

// Client is the provider-agnostic generation interface.
type Client interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
