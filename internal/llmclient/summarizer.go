package llmclient

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdellibergoli/ai-test-automation/internal/agent/history"
)

const summarizerSystemPrompt = `You summarize the working history of an autonomous agent that is driving an application.
Produce a compact summary of the steps taken so far: which actions were performed, what they returned, and any facts worth remembering (element indexes, entered values, errors encountered).
Keep placeholders of the form <secret>name</secret> exactly as they appear. Respond with the summary text only.`

// Summarizer condenses a window of conversation history through the
// fast model tier. It satisfies the consolidator's summarizer contract.
type Summarizer struct {
	client Client
	logger *zap.Logger
}

// NewSummarizer wraps a Client for use by the memory consolidator.
func NewSummarizer(client Client, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		client: client,
		logger: logger.Named("summarizer"),
	}
}

// Summarize generates a summary of the given history window.
func (s *Summarizer) Summarize(ctx context.Context, window []history.Message, step int) (string, error) {
	if len(window) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The agent is at step %d. Summarize its history so far:\n\n", step)
	for _, msg := range window {
		text := msg.JoinedText()
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", msg.Role, text)
	}

	summary, err := s.client.Generate(ctx, GenerationRequest{
		Tier:         TierFast,
		SystemPrompt: summarizerSystemPrompt,
		Conversation: []history.Message{history.Text(history.RoleUser, b.String())},
	})
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	s.logger.Debug("History window summarized",
		zap.Int("window", len(window)), zap.Int("summary_chars", len(summary)))
	return strings.TrimSpace(summary), nil
}
