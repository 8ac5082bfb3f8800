package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"emotrack/internal/api"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List active live sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			sessions, err := client.Sessions(cmd.Context())
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if asJSON {
				return writeJSON(cmd, api.SessionListResponse{Sessions: sessions})
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No active sessions")
				return nil
			}
			fmt.Fprint(out, sessionTable(sessions, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.AddCommand(newSessionStopCommand(ctx))
	return cmd
}

func newSessionStopCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Finalize a live session and persist its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.StopSession(cmd.Context(), args[0])
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s stopped after %d frames (%.1fs)\n", resp.SessionID, resp.Frames, resp.DurationSeconds)
			if resp.DominantEmotion == nil {
				fmt.Fprintln(out, "No faces were detected")
				return nil
			}
			fmt.Fprintf(out, "Dominant emotion: %s\n", *resp.DominantEmotion)
			fmt.Fprint(out, countsTable(resp.Counts, resp.EmotionConfidences))
			fmt.Fprintf(out, "Stored %d analyses\n", len(resp.Analyses))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func sessionTable(sessions []api.SessionInfo, now time.Time) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		dominant := "-"
		if s.DominantEmotion != nil {
			dominant = *s.DominantEmotion
		}
		rows = append(rows, []string{
			s.SessionID,
			strconv.FormatInt(s.UserID, 10),
			s.Channel,
			strconv.Itoa(s.Frames),
			dominant,
			now.Sub(s.StartedAt).Truncate(time.Second).String(),
			now.Sub(s.LastActivity).Truncate(time.Second).String(),
		})
	}
	return renderTable([]column{
		{Header: "Session"},
		{Header: "User", Align: alignRight},
		{Header: "Channel"},
		{Header: "Frames", Align: alignRight},
		{Header: "Dominant"},
		{Header: "Age", Align: alignRight},
		{Header: "Idle", Align: alignRight},
	}, rows)
}
