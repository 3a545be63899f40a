// Package engine runs several independent flow instances side by side.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/enroll-cli/internal/config"
)

// Runner is one instance's attempt loop.
type Runner interface {
	Run(ctx context.Context) error
}

// InstanceBuilder creates the runner for instance id (1-based) together with a
// cleanup that releases its resources.
type InstanceBuilder interface {
	Build(ctx context.Context, id int) (Runner, func(), error)
}

// InstanceBuilderFunc adapts a function to InstanceBuilder.
type InstanceBuilderFunc func(ctx context.Context, id int) (Runner, func(), error)

func (f InstanceBuilderFunc) Build(ctx context.Context, id int) (Runner, func(), error) {
	return f(ctx, id)
}

// Engine fans out engine.instances runners. Instances share nothing mutable.
type Engine struct {
	instances int
	stagger   time.Duration
	builder   InstanceBuilder
	logger    *zap.Logger
}

// New validates dependencies and reads the instance count from config.
func New(cfg config.Interface, builder InstanceBuilder, logger *zap.Logger) (*Engine, error) {
	if cfg == nil || builder == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize engine with nil dependencies")
	}
	ec := cfg.Engine()
	if ec.Instances <= 0 {
		return nil, fmt.Errorf("engine.instances must be a positive integer, got %d", ec.Instances)
	}
	return &Engine{
		instances: ec.Instances,
		stagger:   ec.StartupStagger,
		builder:   builder,
		logger:    logger.Named("engine"),
	}, nil
}

// Run starts every instance and waits for all of them. An instance that fails to
// build or returns an error cancels the others.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Starting instances", zap.Int("instances", e.instances), zap.Duration("stagger", e.stagger))

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= e.instances; i++ {
		id := i
		g.Go(func() error {
			return e.runInstance(gctx, id)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Error("Engine stopped with error", zap.Error(err))
		return err
	}
	e.logger.Info("All instances stopped")
	return nil
}

func (e *Engine) runInstance(ctx context.Context, id int) error {
	log := e.logger.With(zap.Int("instance", id))

	if delay := time.Duration(id-1) * e.stagger; delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}

	runner, cleanup, err := e.builder.Build(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("instance %d: failed to start: %w", id, err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	log.Info("Instance started")
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("instance %d: %w", id, err)
	}
	log.Info("Instance finished")
	return nil
}
