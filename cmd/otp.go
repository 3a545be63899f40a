package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
	"github.com/xkilldash9x/enroll-cli/internal/observability"
	"github.com/xkilldash9x/enroll-cli/internal/otp"
	"github.com/xkilldash9x/enroll-cli/internal/service"
)

func newOTPCmd() *cobra.Command {
	otpCmd := &cobra.Command{
		Use:   "otp",
		Short: "Work with one-time passcodes offline",
	}
	otpCmd.AddCommand(newOTPExtractCmd())
	return otpCmd
}

func newOTPExtractCmd() *cobra.Command {
	var showText bool

	extractCmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Print the code found in a saved message (file, or stdin when omitted or \"-\")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			patterns, err := service.InitializePatterns(cfg.OTP())
			if err != nil {
				return err
			}

			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			msg, err := mailbox.FromJSON(data)
			if err != nil {
				observability.GetLogger().Debug("Input is not JSON, treating it as plain text", zap.Error(err))
				msg = mailbox.Text(string(data))
			}

			text := mailbox.Normalize(msg)
			if showText {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", text)
			}
			code, ok := otp.Match(patterns, text)
			if !ok {
				return fmt.Errorf("no code found in message")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}
	extractCmd.Flags().BoolVar(&showText, "show-text", false, "Also print the normalized message text to stderr.")
	return extractCmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}
	return data, nil
}
