package service

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/config"
	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
	"github.com/xkilldash9x/enroll-cli/internal/metrics"
	"github.com/xkilldash9x/enroll-cli/internal/network"
	"github.com/xkilldash9x/enroll-cli/internal/otp"
	"github.com/xkilldash9x/enroll-cli/internal/profile"
)

// InitializeMailClient builds the mailbox provider client on top of the shared
// HTTP stack. Used by 'run' and 'mailbox probe'.
func InitializeMailClient(cfg config.Interface, logger *zap.Logger) (*mailbox.APIClient, error) {
	httpClient := network.NewClient(network.ClientConfigFrom(cfg.Network(), logger))
	client, err := mailbox.NewAPIClient(cfg.Mailbox(), httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailbox client: %w", err)
	}
	return client, nil
}

// InitializeMetrics creates the collectors and, when enabled, starts the listener
// in the background. The returned stop func blocks until the listener has exited.
func InitializeMetrics(ctx context.Context, cfg config.MetricsConfig, logger *zap.Logger) (*metrics.Metrics, func()) {
	m := metrics.New()
	if !cfg.Enabled {
		return m, func() {}
	}

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Serve(serveCtx, cfg.ListenAddr, logger); err != nil {
			logger.Error("Metrics listener failed.", zap.Error(err))
		}
	}()
	return m, func() {
		cancel()
		<-done
	}
}

// InitializeProfiles loads and validates the reference tables.
func InitializeProfiles(cfg config.ProfileConfig) (*profile.Tables, error) {
	tables, err := profile.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile tables: %w", err)
	}
	return tables, nil
}

// InitializePatterns compiles the configured code patterns, or the defaults.
func InitializePatterns(cfg config.OTPConfig) ([]*regexp.Regexp, error) {
	patterns, err := otp.CompilePatterns(cfg.Patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to compile otp patterns: %w", err)
	}
	return patterns, nil
}
