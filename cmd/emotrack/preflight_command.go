package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"emotrack/internal/preflight"
)

var errPreflightFailed = errors.New("preflight checks failed")

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, model files, and the API address",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			daemon := preflight.CheckDaemonFromConfig(cmd.Context(), cfg)
			daemon.Optional = true

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := make([]string, 0, len(results)+1)
			for _, result := range append(results, daemon) {
				lines = append(lines, renderStatusLine(result.Name, resultKind(result), result.Detail, colorize))
			}
			printSection(out, "Preflight", colorize, lines)
			if !preflight.Passed(results) {
				return errPreflightFailed
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}
}
