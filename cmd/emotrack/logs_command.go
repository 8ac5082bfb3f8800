package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"emotrack/internal/api"
	"emotrack/internal/apiclient"
	"emotrack/internal/logs"
)

var errLogAPIUnavailable = errors.New("log API unavailable")

type logsOptions struct {
	follow    bool
	lines     int
	component string
	sessionID string
	fromFile  bool
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.fromFile {
				err := streamLogsFromAPI(cmd, ctx, opts)
				if !errors.Is(err, errLogAPIUnavailable) {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "daemon API unavailable; reading the log file instead")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return tailLogFile(cmd, logs.CurrentPath(cfg.Paths.LogDir), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 20, "Number of recent entries to show")
	cmd.Flags().StringVar(&opts.component, "component", "", "Only show entries from this component")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Only show entries for this live session")
	cmd.Flags().BoolVar(&opts.fromFile, "file", false, "Read the on-disk log instead of the daemon API")
	return cmd
}

func streamLogsFromAPI(cmd *cobra.Command, ctx *commandContext, opts logsOptions) error {
	client, err := ctx.client()
	if err != nil {
		if apiclient.IsUnavailable(err) {
			return errLogAPIUnavailable
		}
		return err
	}

	query := apiclient.LogQuery{
		Limit:     opts.lines,
		Tail:      true,
		Component: opts.component,
		SessionID: opts.sessionID,
	}
	if query.Limit <= 0 {
		query.Limit = 200
	}

	out := cmd.OutOrStdout()
	runCtx := cmd.Context()
	printed := false
	for {
		resp, err := client.Logs(runCtx, query)
		if err != nil {
			if runCtx.Err() != nil {
				return nil
			}
			if apiclient.IsUnavailable(err) && !printed {
				return errLogAPIUnavailable
			}
			return ctx.wrapAPIError(err)
		}
		for _, evt := range resp.Events {
			fmt.Fprintln(out, formatLogEvent(evt))
			printed = true
		}
		if !opts.follow {
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		}
		query.Since = resp.Next
		query.Limit = 200
		query.Tail = false
		query.Follow = true
	}
}

func tailLogFile(cmd *cobra.Command, path string, opts logsOptions) error {
	out := cmd.OutOrStdout()
	lines, offset, err := logs.Last(path, opts.lines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if !opts.follow {
		if len(lines) == 0 {
			fmt.Fprintf(out, "No log entries in %s\n", path)
		}
		return nil
	}
	return logs.Follow(cmd.Context(), path, offset, 0, func(line string) {
		fmt.Fprintln(out, line)
	})
}

func formatLogEvent(evt api.LogEvent) string {
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("2006-01-02 15:04:05"))
	b.WriteString(" ")
	b.WriteString(level)
	if component := strings.TrimSpace(evt.Component); component != "" {
		fmt.Fprintf(&b, " [%s]", component)
	}
	if evt.SessionID != "" {
		fmt.Fprintf(&b, " Session %s", shortID(evt.SessionID))
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		b.WriteString(" - ")
		b.WriteString(message)
	}
	writeDetails(&b, evt.Details)
	return b.String()
}

func writeDetails(w io.Writer, details []api.DetailField) {
	for _, detail := range details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		fmt.Fprintf(w, "\n    - %s: %s", detail.Label, detail.Value)
	}
}

// shortID trims a session id for display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
