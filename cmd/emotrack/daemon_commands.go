package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"emotrack/internal/api"
	"emotrack/internal/apiclient"
	"emotrack/internal/config"
	"emotrack/internal/daemonctl"
	"emotrack/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the emotrack daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.configPath,
				Diagnostic: startDiagnostic,
			}, 15*time.Second)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			default:
				fmt.Fprintf(stdout, "Daemon started (pid %d, api %s)\n", result.PID, client.BaseURL())
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	var grace time.Duration
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the emotrack daemon, finalizing open sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Stop(ctx.configValue(), grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit within %s; killed pid %d\n", grace, result.PID)
				return nil
			}
			fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}
	stopCmd.Flags().DurationVar(&grace, "grace", 10*time.Second, "How long to wait for open sessions to be finalized before killing")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, model, and storage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, statusErr := client.Status(cmd.Context())
			if statusErr != nil && !apiclient.IsUnavailable(statusErr) {
				return statusErr
			}
			running := statusErr == nil
			if statusJSON {
				if !running {
					status = api.DaemonStatus{}
				}
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			printSection(stdout, "Daemon", colorize, daemonLines(cfg, status, running, client.BaseURL(), colorize))
			fmt.Fprintln(stdout)
			printSection(stdout, "Storage", colorize, storageLines(cfg, colorize))
			if running && status.Stats != nil {
				fmt.Fprintln(stdout)
				printSection(stdout, "Analyses", colorize, nil)
				fmt.Fprint(stdout, statsTable(*status.Stats))
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit the daemon status as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func daemonLines(cfg *config.Config, status api.DaemonStatus, running bool, baseURL string, colorize bool) []string {
	if !running {
		lines := []string{renderStatusLine("emotrack", statusError, "Not running ("+baseURL+")", colorize)}
		if pid, alive := daemonctl.Running(cfg); alive {
			lines = append(lines, renderStatusLine("Process", statusWarn,
				fmt.Sprintf("pid %d is alive but the API does not answer", pid), colorize))
		}
		return lines
	}
	state := fmt.Sprintf("Running (pid %d)", status.PID)
	if !status.StartedAt.IsZero() {
		state = fmt.Sprintf("Running (pid %d, up %s)", status.PID, time.Since(status.StartedAt).Truncate(time.Second))
	}
	lines := []string{
		renderStatusLine("emotrack", statusOK, state, colorize),
		renderStatusLine("API", statusOK, baseURL, colorize),
		renderStatusLine("Live sessions", statusInfo, strconv.Itoa(status.ActiveSessions), colorize),
	}
	lines = append(lines, modelLines(status.Model, colorize)...)
	return lines
}

func modelLines(model api.ModelMetadata, colorize bool) []string {
	modelKind, modelMsg := statusError, "Missing "+model.WeightsPath
	if model.HasModel {
		modelKind, modelMsg = statusOK, model.WeightsPath+" (loaded: "+yesNo(model.Loaded)+")"
	}
	cascadeKind, cascadeMsg := statusError, "Missing"
	if model.HasCascade {
		cascadeKind, cascadeMsg = statusOK, "Present"
	}
	return []string{
		renderStatusLine("Emotion model", modelKind, modelMsg, colorize),
		renderStatusLine("Face cascade", cascadeKind, cascadeMsg, colorize),
	}
}

func storageLines(cfg *config.Config, colorize bool) []string {
	if cfg == nil {
		return []string{renderStatusLine("Config", statusError, "Unavailable", colorize)}
	}
	checks := []preflight.Result{
		preflight.CheckDirectoryAccess("Storage root", cfg.Paths.StorageRoot),
		preflight.CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		preflight.CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		lines = append(lines, renderStatusLine(check.Name, resultKind(check), check.Detail, colorize))
	}
	return lines
}

func statsTable(stats api.Stats) string {
	labels := make([]string, 0, len(stats.ByLabel))
	for label := range stats.ByLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	rows := make([][]string, 0, len(labels)+1)
	for _, label := range labels {
		rows = append(rows, []string{label, strconv.Itoa(stats.ByLabel[label])})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(stats.Analyses)})
	return renderTable([]column{{Header: "Emotion"}, {Header: "Analyses", Align: alignRight}}, rows)
}
