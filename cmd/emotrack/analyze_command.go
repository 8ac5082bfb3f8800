package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"emotrack/internal/api"
	"emotrack/internal/apiclient"
	"emotrack/internal/daemon"
	"emotrack/internal/results"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		preview bool
		asJSON  bool
		upload  apiclient.UploadOptions
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze an image or video through the daemon",
		Long: "Upload a local image or video for emotion analysis. Results are stored " +
			"and listed by `emotrack history` unless --preview is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if upload.MediaType == "" {
				upload.MediaType = inferMediaType(args[0])
			}
			out := cmd.OutOrStdout()
			if preview {
				resp, err := client.Preview(cmd.Context(), args[0], upload.MediaType)
				if err != nil {
					return ctx.wrapAPIError(err)
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				printPreview(out, resp)
				return nil
			}

			resp, err := client.Analyze(cmd.Context(), args[0], upload)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			printAnalysis(out, resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "Analyze without storing anything")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.Flags().StringVar(&upload.MediaType, "media-type", "", "image or video (inferred from the extension when omitted)")
	cmd.Flags().StringVar(&upload.SourceType, "source", "", "Source type recorded with the results")
	cmd.Flags().StringVar(&upload.Channel, "channel", "", "Channel recorded with the results")
	cmd.Flags().Int64Var(&upload.UserID, "user", 0, "User id recorded with the results")
	return cmd
}

func printPreview(out io.Writer, resp api.PreviewResponse) {
	fmt.Fprintf(out, "Dominant emotion: %s (%s)\n", resp.DominantEmotion, formatConfidence(resp.Confidence))
	printFrames(out, resp.FramesSampled, resp.FramesAnalyzed)
	fmt.Fprint(out, countsTable(resp.Counts, nil))
	fmt.Fprintln(out, "Preview only; nothing was stored")
}

func printAnalysis(out io.Writer, resp api.AnalyzeResponse) {
	fmt.Fprintf(out, "Batch %s\n", resp.BatchID)
	fmt.Fprintf(out, "Dominant emotion: %s (%s)\n", resp.DominantEmotion, formatConfidence(resp.Confidence))
	printFrames(out, resp.FramesSampled, resp.FramesAnalyzed)
	fmt.Fprint(out, analysesTable(resp.Analyses))
}

func printFrames(out io.Writer, sampled, analyzed int) {
	if sampled > 0 {
		fmt.Fprintf(out, "Frames: %d analyzed of %d sampled\n", analyzed, sampled)
	}
}

// inferMediaType picks video for known video extensions and image otherwise.
func inferMediaType(path string) string {
	if daemon.AllowedExtension(filepath.Base(strings.TrimSpace(path)), results.MediaVideo) {
		return results.MediaVideo
	}
	return results.MediaImage
}
