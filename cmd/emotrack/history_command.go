package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"emotrack/internal/apiclient"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON bool
		userID int64
		query  apiclient.AnalysisQuery
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("user") {
				query.UserID = &userID
			}
			resp, err := client.Analyses(cmd.Context(), query)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if len(resp.Items) == 0 {
				fmt.Fprintln(out, "No analyses found")
			} else {
				fmt.Fprint(out, analysesTable(resp.Items))
			}
			if len(resp.Filters.AvailableEmotions) > 0 {
				fmt.Fprintf(out, "Emotions: %s\n", strings.Join(resp.Filters.AvailableEmotions, ", "))
			}
			if len(resp.Filters.AvailableSources) > 0 {
				fmt.Fprintf(out, "Sources: %s\n", strings.Join(resp.Filters.AvailableSources, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.Flags().StringVar(&query.MediaType, "media-type", "", "Filter by media type (image, video)")
	cmd.Flags().StringVar(&query.Source, "source", "", "Filter by source (camera, image, video, or a stored source type)")
	cmd.Flags().StringVar(&query.Emotion, "emotion", "", "Filter by dominant emotion")
	cmd.Flags().Int64Var(&userID, "user", 0, "Filter by user id")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "Maximum rows (the daemon caps this)")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryDeleteCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnalysisID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			item, err := client.Analysis(cmd.Context(), id)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if asJSON {
				return writeJSON(cmd, item)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Analysis %d (batch %s)\n", item.ID, item.BatchID)
			fmt.Fprintf(out, "Created:  %s\n", item.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Source:   %s / %s (%s)\n", item.MediaType, item.SourceType, item.Channel)
			fmt.Fprintf(out, "Emotion:  %s (%s)\n", item.DominantEmotion, formatConfidence(item.Confidence))
			if item.OriginalPath != "" {
				fmt.Fprintf(out, "Original: %s\n", item.OriginalPath)
			}
			if item.SnapshotPath != "" {
				fmt.Fprintf(out, "Snapshot: %s\n", item.SnapshotPath)
			}
			fmt.Fprint(out, countsTable(item.TotalCounts, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newHistoryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored analysis and files no other analysis uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnalysisID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.DeleteAnalysis(cmd.Context(), id); err != nil {
				return ctx.wrapAPIError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted analysis %d\n", id)
			return nil
		},
	}
}

func parseAnalysisID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid analysis id %q", raw)
	}
	return id, nil
}
