package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pdellibergoli/ai-test-automation/cmd"
	"github.com/pdellibergoli/ai-test-automation/internal/observability"
)

func main() {
	// Listen for interrupt signals so a Ctrl+C tears the browser and
	// any in-flight LLM calls down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
