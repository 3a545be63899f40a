package cmd

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
	"github.com/xkilldash9x/enroll-cli/internal/observability"
	"github.com/xkilldash9x/enroll-cli/internal/otp"
	"github.com/xkilldash9x/enroll-cli/internal/service"
)

const probeTextLimit = 300

func newMailboxCmd() *cobra.Command {
	mailboxCmd := &cobra.Command{
		Use:   "mailbox",
		Short: "Inspect the disposable mailbox provider",
	}
	mailboxCmd.AddCommand(newMailboxProbeCmd())
	return mailboxCmd
}

type probeOptions struct {
	interval time.Duration
	duration time.Duration
	poll     time.Duration
	patterns []*regexp.Regexp
	caps     mailbox.CapabilitySet
}

func newMailboxProbeCmd() *cobra.Command {
	var interval, duration time.Duration
	var capNames []string

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Provision a mailbox and print what every retrieval capability sees",
		Long: `Provisions one mailbox, prints its address, then queries each configured
retrieval capability every --interval until --duration elapses. Send a message to
the address to check that normalization and code extraction work for the provider.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			caps, err := parseCapabilities(capNames)
			if err != nil {
				return err
			}
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			client, err := service.InitializeMailClient(cfg, logger)
			if err != nil {
				return err
			}
			patterns, err := service.InitializePatterns(cfg.OTP())
			if err != nil {
				return err
			}

			return probeMailbox(ctx, cmd.OutOrStdout(), client, logger, probeOptions{
				interval: interval,
				duration: duration,
				poll:     cfg.OTP().PollInterval,
				patterns: patterns,
				caps:     caps,
			})
		},
	}

	probeCmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Time between probe rounds.")
	probeCmd.Flags().DurationVar(&duration, "duration", 60*time.Second, "Total probing time.")
	probeCmd.Flags().StringSliceVar(&capNames, "capabilities", nil, "Restrict probing to these capabilities (wait, list, get).")
	return probeCmd
}

func parseCapabilities(names []string) (mailbox.CapabilitySet, error) {
	var caps []mailbox.Capability
	for _, name := range names {
		c, err := mailbox.ParseCapability(name)
		if err != nil {
			return 0, fmt.Errorf("invalid --capabilities: %w", err)
		}
		caps = append(caps, c)
	}
	return mailbox.NewCapabilitySet(caps...), nil
}

func probeMailbox(ctx context.Context, out io.Writer, prov mailbox.Provisioner, logger *zap.Logger, opts probeOptions) error {
	if opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	p, err := prov.Provision(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Mailbox: %s (ref=%s id=%s)\n", p.Address, p.Handle.Ref, p.Handle.ID)

	extractor := otp.NewExtractor(p.Client, logger, otp.WithPatterns(opts.patterns), otp.WithCapabilities(opts.caps))
	fmt.Fprintf(out, "Capabilities: %s\n", extractor.Capabilities())

	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		for _, r := range extractor.Probe(ctx, p.Handle, opts.poll) {
			printProbeResult(out, round, r)
		}
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Probe finished.")
			return nil
		case <-ticker.C:
		}
	}
}

func printProbeResult(out io.Writer, round int, r otp.ProbeResult) {
	switch {
	case r.Err != nil:
		fmt.Fprintf(out, "[%d] %-4s error: %v\n", round, r.Capability, r.Err)
	case r.Found:
		fmt.Fprintf(out, "[%d] %-4s code=%s text=%q\n", round, r.Capability, r.Code, truncate(r.Text, probeTextLimit))
	default:
		fmt.Fprintf(out, "[%d] %-4s no code text=%q\n", round, r.Capability, truncate(r.Text, probeTextLimit))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
