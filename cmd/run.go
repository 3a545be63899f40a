package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/config"
	"github.com/xkilldash9x/enroll-cli/internal/observability"
	"github.com/xkilldash9x/enroll-cli/internal/service"
)

// newRunCmd creates the `run` command, which drives the sign-up flow with
// engine.instances independent browsers until each reaches flow.max_attempts.
func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sign-up flow against flow.target_url",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := applyRunOverrides(cmd, cfg); err != nil {
				return err
			}

			logger.Info("Starting run",
				zap.String("target", cfg.Flow().TargetURL),
				zap.Int("instances", cfg.Engine().Instances),
				zap.Int("max_attempts", cfg.Flow().MaxAttempts),
				zap.Bool("headless", cfg.Browser().Headless),
			)

			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			if err := components.Run(ctx); err != nil {
				return err
			}
			if ctx.Err() != nil {
				logger.Warn("Run aborted by signal")
				return nil
			}
			logger.Info("Run completed")
			return nil
		},
	}

	runCmd.Flags().String("target", "", "Registration page URL. (Overrides config/env)")
	runCmd.Flags().IntP("instances", "n", 0, "Number of independent browser instances. (Overrides config/env)")
	runCmd.Flags().Int("max-attempts", 0, "Completed attempts per instance, 0 for unbounded. (Overrides config/env)")
	runCmd.Flags().Bool("headless", true, "Run Chrome headless. (Overrides config/env)")
	return runCmd
}

// applyRunOverrides copies the flags the user set onto cfg and re-validates it.
// Flags left at their defaults never override the file or environment.
func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("target") {
		target, _ := flags.GetString("target")
		cfg.SetFlowTargetURL(target)
	}
	if flags.Changed("instances") {
		n, _ := flags.GetInt("instances")
		cfg.SetEngineInstances(n)
	}
	if flags.Changed("max-attempts") {
		n, _ := flags.GetInt("max-attempts")
		cfg.SetFlowMaxAttempts(n)
	}
	if flags.Changed("headless") {
		headless, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(headless)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flag override: %w", err)
	}
	return nil
}
