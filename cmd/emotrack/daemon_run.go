package main

import (
	"github.com/spf13/cobra"

	"emotrack/internal/daemonrun"
)

// newDaemonRunCommand is the hidden entrypoint `emotrack start` launches.
func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	cmd := newRunCommand(ctx, "daemon", "Run the emotrack daemon (internal)")
	cmd.Hidden = true
	return cmd
}

// newServeCommand runs the daemon in the foreground with logs on stdout.
func newServeCommand(ctx *commandContext) *cobra.Command {
	return newRunCommand(ctx, "serve", "Run the emotrack daemon in the foreground")
}

func newRunCommand(ctx *commandContext, use, short string) *cobra.Command {
	var (
		diagnostic  bool
		level       string
		development bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    level,
				Development: development,
				Diagnostic:  diagnostic,
			})
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")
	cmd.Flags().StringVar(&level, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "dev", false, "Development logging (caller info)")
	return cmd
}
