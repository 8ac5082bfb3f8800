package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newModelCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show the emotion label set and model availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			meta, err := client.Model(cmd.Context())
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if asJSON {
				return writeJSON(cmd, meta)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := modelLines(meta, colorize)
			lines = append(lines, renderStatusLine("Labels", statusInfo, strings.Join(meta.Labels, ", "), colorize))
			printSection(out, "Model", colorize, lines)
			if meta.StorageRoot != "" {
				fmt.Fprintf(out, "Storage root: %s\n", meta.StorageRoot)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}
