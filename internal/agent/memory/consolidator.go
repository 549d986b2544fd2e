package memory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pdellibergoli/ai-test-automation/internal/agent/history"
)

// Summarizer condenses a window of conversation messages into one short
// memory text. It may be a local model or a remote service; failures and
// timeouts are non-fatal to the history.
type Summarizer interface {
	Summarize(ctx context.Context, messages []history.Message, step int) (string, error)
}

// Config tunes the consolidator.
type Config struct {
	// Interval is the step cadence: consolidation runs when the step
	// number is a positive multiple of it.
	Interval int
	// Timeout bounds one summarizer call.
	Timeout time.Duration
}

// DefaultConfig mirrors the runtime defaults.
func DefaultConfig() Config {
	return Config{Interval: 10, Timeout: 30 * time.Second}
}

// Consolidator periodically rewrites the conversation history, replacing
// the eligible message window with a single summarized memory entry so
// the policy's context never grows without bound. Either the whole
// window is replaced or nothing changes.
type Consolidator struct {
	logger     *zap.Logger
	summarizer Summarizer
	cfg        Config
}

// NewConsolidator creates a consolidator over the given summarizer.
func NewConsolidator(summarizer Summarizer, cfg Config, logger *zap.Logger) *Consolidator {
	if cfg.Interval <= 0 {
		cfg.Interval = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Consolidator{
		logger:     logger.Named("consolidator"),
		summarizer: summarizer,
		cfg:        cfg,
	}
}

// MaybeConsolidate runs Consolidate when the step number lands on the
// configured cadence. It is invoked by the step loop after every step.
func (c *Consolidator) MaybeConsolidate(ctx context.Context, mgr *history.Manager, step int) {
	if step <= 0 || step%c.cfg.Interval != 0 {
		return
	}
	c.Consolidate(ctx, mgr, step)
}

// candidate reports whether a managed message is eligible for
// consolidation: protected classes and empty messages stay.
func candidate(mm history.ManagedMessage) bool {
	return !mm.Metadata.Class.Protected() && !mm.Message.IsEmpty()
}

// Consolidate performs one consolidation pass. All failure modes leave
// the history untouched and return normally.
func (c *Consolidator) Consolidate(ctx context.Context, mgr *history.Manager, step int) {
	var window []history.Message
	for _, mm := range mgr.Managed() {
		if candidate(mm) {
			window = append(window, mm.Message)
		}
	}
	if len(window) <= 1 {
		c.logger.Debug("Not enough messages to consolidate", zap.Int("candidates", len(window)))
		return
	}

	summary, err := c.summarize(ctx, window, step)
	if err != nil {
		c.logger.Warn("Memory consolidation skipped",
			zap.Int("step", step),
			zap.Int("candidates", len(window)),
			zap.Error(err),
		)
		return
	}
	if summary == "" {
		c.logger.Warn("Summarizer returned empty memory, history left unchanged", zap.Int("step", step))
		return
	}

	removed, removedTokens := mgr.ReplaceWindow(candidate, history.Text(history.RoleUser, summary))
	c.logger.Info("History consolidated into long-term memory",
		zap.Int("step", step),
		zap.Int("messages_replaced", removed),
		zap.Int("tokens_freed", removedTokens),
		zap.Int("current_tokens", mgr.CurrentTokens()),
	)
}

// summarize calls the external summarizer under the configured timeout.
// The call runs on its own goroutine with a buffered result channel so a
// hung summarizer is abandoned rather than blocking the step loop past
// the deadline; cancellation of the timed-out call is best-effort via
// the derived context.
func (c *Consolidator) summarize(ctx context.Context, window []history.Message, step int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	type result struct {
		summary string
		err     error
	}
	resCh := make(chan result, 1)
	go func() {
		summary, err := c.summarizer.Summarize(callCtx, window, step)
		resCh <- result{summary: summary, err: err}
	}()

	select {
	case res := <-resCh:
		return res.summary, res.err
	case <-callCtx.Done():
		return "", callCtx.Err()
	}
}
