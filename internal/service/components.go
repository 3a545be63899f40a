package service

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/engine"
	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
	"github.com/xkilldash9x/enroll-cli/internal/metrics"
	"github.com/xkilldash9x/enroll-cli/internal/profile"
)

// Runner is satisfied by *engine.Engine.
type Runner interface {
	Run(ctx context.Context) error
}

// Components holds everything a run needs and owns its lifecycle.
type Components struct {
	Engine     Runner
	Metrics    *metrics.Metrics
	MailClient mailbox.Provisioner
	Tables     *profile.Tables
	Patterns   []*regexp.Regexp

	stopMetrics func()
	logger      *zap.Logger
}

// Run blocks until every engine instance has stopped.
func (c *Components) Run(ctx context.Context) error {
	return c.Engine.Run(ctx)
}

// Shutdown releases process-wide resources. Browsers are owned by the engine
// instances and are closed when Run returns. Safe to call more than once.
func (c *Components) Shutdown() {
	if c.stopMetrics != nil {
		c.stopMetrics()
		c.stopMetrics = nil
		c.logger.Debug("Metrics listener stopped.")
	}
	if c.logger != nil {
		c.logger.Info("All components shut down.")
	}
}

var _ Runner = (*engine.Engine)(nil)
