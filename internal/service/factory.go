package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/config"
	"github.com/xkilldash9x/enroll-cli/internal/engine"
)

// ComponentFactory creates the set of components needed for 'run'. The
// abstraction keeps the command testable.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct {
	newBuilder func(engine.Deps) engine.InstanceBuilder
}

// NewComponentFactory returns the production factory, which launches one Chrome
// per engine instance.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{newBuilder: engine.NewBrowserBuilder}
}

// Create wires config into the mailbox client, tables, patterns, metrics and engine.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	if err := cfg.Flow().RequireTarget(); err != nil {
		return nil, err
	}

	components := &Components{logger: logger}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	mail, err := InitializeMailClient(cfg, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.MailClient = mail
	logger.Debug("Mailbox client initialized.", zap.Stringer("capabilities", mail.Capabilities()))

	tables, err := InitializeProfiles(cfg.Profile())
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Tables = tables
	logger.Debug("Profile tables loaded.", zap.Int("records", len(tables.Names)))

	patterns, err := InitializePatterns(cfg.OTP())
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Patterns = patterns

	m, stop := InitializeMetrics(ctx, cfg.Metrics(), logger)
	components.Metrics = m
	components.stopMetrics = stop

	builder := f.newBuilder(engine.Deps{
		Config:      cfg,
		Provisioner: mail,
		Tables:      tables,
		Patterns:    patterns,
		Metrics:     m,
		Logger:      logger,
	})
	eng, err := engine.New(cfg, builder, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize engine: %w", err)
		return nil, initializationErr
	}
	components.Engine = eng

	logger.Info("All components initialized successfully.")
	return components, nil
}
