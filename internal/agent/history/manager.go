package history

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrBudgetExceeded signals that trimming cannot bring the history under
// the token budget. It is the one fatal error in this package: the run
// must abort rather than proceed with an oversized prompt.
var ErrBudgetExceeded = errors.New("history exceeds token budget beyond repair")

// Settings tunes the history manager's token accounting and budget.
type Settings struct {
	// MaxInputTokens is the hard ceiling the history must fit under
	// before each policy call.
	MaxInputTokens int
	// CharsPerToken is the estimated character/token ratio used for
	// text accounting.
	CharsPerToken int
	// ImageTokens is the flat cost charged per image part.
	ImageTokens int
	// Sensitive lists the literal values redacted on append.
	Sensitive SensitiveValues
}

// DefaultSettings mirrors the runtime defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxInputTokens: 128000,
		CharsPerToken:  3,
		ImageTokens:    800,
	}
}

// Manager owns the ordered, token-accounted conversation history between
// policy and runtime. It is single-writer by construction: only the
// owning step loop mutates it. The internal lock exists so concurrent
// readers observe append, trim, and window replacement atomically.
type Manager struct {
	logger   *zap.Logger
	settings Settings

	mu            sync.RWMutex
	messages      []ManagedMessage
	currentTokens int
}

// NewManager creates an empty history manager.
func NewManager(settings Settings, logger *zap.Logger) *Manager {
	if settings.CharsPerToken <= 0 {
		settings.CharsPerToken = 3
	}
	if settings.ImageTokens <= 0 {
		settings.ImageTokens = 800
	}
	return &Manager{
		logger:   logger.Named("history"),
		settings: settings,
	}
}

// Add redacts, counts, and appends one message, bumping the running
// token total in the same operation.
func (m *Manager) Add(msg Message, class Class) {
	redacted := Redact(msg, m.settings.Sensitive)
	tokens := m.countTokens(redacted)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(ManagedMessage{
		Message:  redacted,
		Metadata: Metadata{Tokens: tokens, Class: class},
	})
}

func (m *Manager) appendLocked(mm ManagedMessage) {
	m.messages = append(m.messages, mm)
	m.currentTokens += mm.Metadata.Tokens
}

// Messages returns a copy of the message payloads in order.
func (m *Manager) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, len(m.messages))
	for i, mm := range m.messages {
		out[i] = mm.Message
	}
	return out
}

// Managed returns a copy of the full managed entries, metadata included.
func (m *Manager) Managed() []ManagedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ManagedMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of messages held.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Sensitive exposes the configured secret values, for callers that need
// the placeholder names.
func (m *Manager) Sensitive() SensitiveValues {
	return m.settings.Sensitive
}

// CurrentTokens returns the running token total.
func (m *Manager) CurrentTokens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentTokens
}

// countTokens estimates the token cost of a message: a flat per-image
// cost plus floor(runes/CharsPerToken) for text.
func (m *Manager) countTokens(msg Message) int {
	tokens := 0
	for _, p := range msg.Parts {
		switch p.Type {
		case PartImage:
			tokens += m.settings.ImageTokens
		case PartText:
			tokens += utf8.RuneCountInString(p.Text) / m.settings.CharsPerToken
		}
	}
	return tokens
}

// Cut enforces the token budget. The trim target is the most recent
// message whose class is not protected: its image parts are dropped
// first, then a proportional share of its trailing characters. The
// whole operation commits atomically; when the target cannot absorb the
// overflow (proportion > 0.99) nothing is mutated and ErrBudgetExceeded
// is returned.
func (m *Manager) Cut() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	diff := m.currentTokens - m.settings.MaxInputTokens
	if diff <= 0 {
		return nil
	}

	idx := -1
	for i := len(m.messages) - 1; i >= 0; i-- {
		if !m.messages[i].Metadata.Class.Protected() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no trimmable message, over budget by %d tokens: %w", diff, ErrBudgetExceeded)
	}

	target := m.messages[idx]
	trimmed := target.Message.clone()
	tokens := target.Metadata.Tokens

	// Images go first, one flat cost at a time.
	kept := trimmed.Parts[:0]
	for _, p := range trimmed.Parts {
		if p.Type == PartImage && diff > 0 {
			diff -= m.settings.ImageTokens
			tokens -= m.settings.ImageTokens
			continue
		}
		kept = append(kept, p)
	}
	trimmed.Parts = kept

	if diff > 0 {
		if tokens <= 0 {
			return fmt.Errorf("trim target has no content left, over budget by %d tokens: %w", diff, ErrBudgetExceeded)
		}
		proportion := float64(diff) / float64(tokens)
		if proportion > 0.99 {
			return fmt.Errorf(
				"trimming %.2f%% of the last message cannot satisfy the budget, reduce the system prompt or task: %w",
				proportion*100, ErrBudgetExceeded,
			)
		}
		text := []rune(trimmed.JoinedText())
		remove := int(float64(len(text)) * proportion)
		if remove > len(text) {
			remove = len(text)
		}
		trimmed = Message{
			Role:  trimmed.Role,
			Parts: []ContentPart{{Type: PartText, Text: string(text[:len(text)-remove])}},
		}
	}

	// Commit: replace the target in place as a fresh message of the
	// same class with recounted tokens.

	newTokens := m.countTokens(trimmed)
	m.currentTokens += newTokens - target.Metadata.Tokens
	m.messages[idx] = ManagedMessage{
		Message:  trimmed,
		Metadata: Metadata{Tokens: newTokens, Class: target.Metadata.Class},
	}

	m.logger.Debug("Trimmed history to budget",
		zap.Int("current_tokens", m.currentTokens),
		zap.Int("max_input_tokens", m.settings.MaxInputTokens),
		zap.Int("messages", len(m.messages)),
	)
	return nil
}

// ReplaceWindow atomically removes every message the selector matches
// and appends the summary as a memory-classed entry. The token counter
// is adjusted in the same critical section; no intermediate state is
// observable. It returns the number of removed messages and their token
// sum.
func (m *Manager) ReplaceWindow(selector func(ManagedMessage) bool, summary Message) (removed, removedTokens int) {
	redacted := Redact(summary, m.settings.Sensitive)
	summaryTokens := m.countTokens(redacted)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]ManagedMessage, 0, len(m.messages))
	for _, mm := range m.messages {
		if selector(mm) {
			removed++
			removedTokens += mm.Metadata.Tokens
			continue
		}
		kept = append(kept, mm)
	}
	kept = append(kept, ManagedMessage{
		Message:  redacted,
		Metadata: Metadata{Tokens: summaryTokens, Class: ClassMemory},
	})
	m.messages = kept
	m.currentTokens += summaryTokens - removedTokens
	return removed, removedTokens
}
