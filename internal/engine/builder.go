package engine

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/browser/session"
	"github.com/xkilldash9x/enroll-cli/internal/config"
	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
	"github.com/xkilldash9x/enroll-cli/internal/metrics"
	"github.com/xkilldash9x/enroll-cli/internal/orchestrator"
	"github.com/xkilldash9x/enroll-cli/internal/otp"
	"github.com/xkilldash9x/enroll-cli/internal/profile"
)

// Deps are the process-wide pieces every instance is built from. All of them are
// safe to share across goroutines.
type Deps struct {
	Config      config.Interface
	Provisioner mailbox.Provisioner
	Tables      *profile.Tables
	Patterns    []*regexp.Regexp
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// NewBrowserBuilder builds instances that each launch their own Chrome process.
func NewBrowserBuilder(d Deps) InstanceBuilder {
	return InstanceBuilderFunc(func(ctx context.Context, id int) (Runner, func(), error) {
		log := d.Logger.With(zap.Int("instance", id))

		browser, err := session.NewBrowser(ctx, d.Config, log)
		if err != nil {
			return nil, nil, err
		}

		pages := orchestrator.PageFactoryFunc(func(ctx context.Context) (orchestrator.Page, error) {
			p, err := browser.NewPage(ctx)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
		codes := func(client mailbox.Client) orchestrator.CodeSource {
			return otp.NewExtractor(client, log, otp.WithPatterns(d.Patterns), otp.WithMetrics(d.Metrics))
		}

		// Offset a fixed seed so instances do not draw the same identities.
		seed := d.Config.Profile().Seed
		if seed != 0 {
			seed += int64(id)
		}
		picker := profile.NewPicker(d.Tables, seed)

		orch, err := orchestrator.New(d.Config, pages, d.Provisioner, codes, picker, log, orchestrator.WithMetrics(d.Metrics))
		if err != nil {
			_ = browser.Close()
			return nil, nil, fmt.Errorf("failed to create orchestrator: %w", err)
		}
		return orch, func() { _ = browser.Close() }, nil
	})
}

var _ orchestrator.Page = (*session.Page)(nil)
