package session

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/config"
)

// Browser owns one Chrome process. Each attempt gets its own tab from NewPage.
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	netCfg        config.NetworkConfig
	logger        *zap.Logger
}

// NewBrowser launches Chrome. The process lives until Close or until ctx is done.
func NewBrowser(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Browser, error) {
	log := logger.Named("browser")
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg.Browser())...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	// The first Run starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	log.Info("Browser started", zap.Bool("headless", cfg.Browser().Headless))

	return &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		netCfg:        cfg.Network(),
		logger:        log,
	}, nil
}

// NewPage opens a fresh tab. Extra request headers from config are applied to it.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	p := newPage(tabCtx, cancel, b.netCfg.NavigationTimeout, b.netCfg.PostLoadWait, b.logger.Named("page"))

	actions := []chromedp.Action{network.Enable()}
	if len(b.netCfg.Headers) > 0 {
		headers := make(network.Headers, len(b.netCfg.Headers))
		for k, v := range b.netCfg.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	if err := p.run(ctx, actionTimeout, actions...); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return p, nil
}

// Close shuts the browser process down.
func (b *Browser) Close() error {
	b.browserCancel()
	b.allocCancel()
	b.logger.Info("Browser closed")
	return nil
}
