package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdellibergoli/ai-test-automation/internal/agent"
	"github.com/pdellibergoli/ai-test-automation/internal/agent/actions"
	"github.com/pdellibergoli/ai-test-automation/internal/agent/history"
	"github.com/pdellibergoli/ai-test-automation/internal/agent/memory"
	"github.com/pdellibergoli/ai-test-automation/internal/controller"
	"github.com/pdellibergoli/ai-test-automation/internal/driver/web"
	"github.com/pdellibergoli/ai-test-automation/internal/llmclient"
	"github.com/pdellibergoli/ai-test-automation/internal/observability"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Runs a task against the given URL with a browser-backed agent",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so CLI values override file and env configuration.
			if err := viper.BindPFlag("agent.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := loadedConfig

			task, err := cmd.Flags().GetString("task")
			if err != nil || task == "" {
				return fmt.Errorf("a task description is required (--task)")
			}
			// Flag overrides applied after the initial unmarshal.
			cfg.Agent.MaxSteps = viper.GetInt("agent.max_steps")
			cfg.Browser.Headless = viper.GetBool("browser.headless")

			// 1. Start the browser device.
			device, err := web.New(ctx, cfg.Browser, logger)
			if err != nil {
				return fmt.Errorf("failed to start browser device: %w", err)
			}
			defer device.Close()

			if err := device.Navigate(ctx, args[0]); err != nil {
				return err
			}

			// 2. Register the action pack and build the dispatcher.
			ctrl, err := controller.New(logger)
			if err != nil {
				return err
			}
			dispatcher := actions.NewDispatcher(ctrl.Catalog(), logger,
				actions.WithWorkers(cfg.Agent.Dispatcher.Workers))

			// 3. Managed history with the configured token budget.
			settings := history.Settings{
				MaxInputTokens: cfg.Agent.History.MaxInputTokens,
				CharsPerToken:  cfg.Agent.History.CharsPerToken,
				ImageTokens:    cfg.Agent.History.ImageTokens,
				Sensitive: history.SensitiveValues{
					Flat:     cfg.Agent.SensitiveData.Values,
					ByDomain: cfg.Agent.SensitiveData.Domains,
				},
			}
			hist := history.NewManager(settings, logger)

			// 4. LLM client, policy and consolidator.
			client, err := llmclient.NewClient(cfg.Agent.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to create LLM client: %w", err)
			}
			policy := llmclient.NewPolicy(client, logger)

			var consolidator *memory.Consolidator
			if cfg.Agent.Memory.Enabled {
				consolidator = memory.NewConsolidator(
					llmclient.NewSummarizer(client, logger),
					memory.Config{Interval: cfg.Agent.Memory.Interval, Timeout: cfg.Agent.Memory.Timeout},
					logger,
				)
			}

			// 5. Assemble and run the agent.
			runner := agent.New(
				agent.Config{MaxSteps: cfg.Agent.MaxSteps, MaxFailures: cfg.Agent.MaxFailures},
				policy,
				ctrl.Catalog(),
				dispatcher,
				hist,
				consolidator,
				actions.Capabilities{controller.CapabilityDevice: device},
				logger,
			)

			result, err := runner.Run(ctx, agent.Task{
				ID:          uuid.New().String(),
				Description: task,
				StartTime:   time.Now(),
			})
			if err != nil {
				return err
			}

			logger.Info("Run finished",
				zap.Int("steps", result.Steps),
				zap.Bool("done", result.Done),
				zap.Bool("success", result.Success),
			)
			if result.FinalResult != "" {
				fmt.Fprintln(cmd.OutOrStdout(), result.FinalResult)
			}
			if !result.Done {
				return fmt.Errorf("task did not complete within %d steps", result.Steps)
			}
			return nil
		},
	}

	runCmd.Flags().StringP("task", "t", "", "task description for the agent (required)")
	runCmd.Flags().Int("max-steps", 0, "maximum number of agent steps (overrides config)")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	return runCmd
}
