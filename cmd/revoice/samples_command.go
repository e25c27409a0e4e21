package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/config"
	"revoice/internal/media"
	"revoice/internal/voicesample"
	"revoice/internal/workspace"
)

func newSamplesCommand(ctx *commandContext) *cobra.Command {
	samplesCmd := &cobra.Command{
		Use:   "samples",
		Short: "Voice reference sample utilities",
	}
	samplesCmd.AddCommand(newSamplesExtractCommand(ctx))
	samplesCmd.AddCommand(newSamplesListCommand(ctx))
	return samplesCmd
}

func newSamplesExtractCommand(ctx *commandContext) *cobra.Command {
	var workdirFlag string

	cmd := &cobra.Command{
		Use:   "extract INPUT",
		Short: "Extract voice sample candidates from a video",
		Long: "Scans the video's audio for clean stretches of speech and writes candidate WAV " +
			"files into the work directory for review. The dubbing run offers the same review " +
			"interactively; this command exists to inspect candidates up front.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			logger, err := ctx.buildLogger()
			if err != nil {
				return err
			}

			workdir := strings.TrimSpace(workdirFlag)
			if workdir == "" {
				workdir = workspace.DefaultRoot(input)
			}
			store, err := workspace.Open(workdir, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := media.NewRunner(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger)
			extractor := voicesample.NewExtractor(runner,
				cfg.Extraction.MinSampleSeconds,
				cfg.Extraction.MaxSampleSeconds,
				cfg.Extraction.SilenceThresholdDB,
				cfg.Extraction.MaxCandidates,
				logger)

			candidates, err := extractor.Extract(cmd.Context(), input, store.ExtractedSamplesDir())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Extracted %d candidate(s) into %s\n", len(candidates), store.ExtractedSamplesDir())
			for _, candidate := range candidates {
				if seconds, err := runner.Duration(cmd.Context(), candidate); err == nil {
					fmt.Fprintf(out, "  %s (%.1fs)\n", filepath.Base(candidate), seconds)
				} else {
					fmt.Fprintf(out, "  %s\n", filepath.Base(candidate))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workdirFlag, "workdir", "", "Work directory (default: workdir_<video> next to the input)")
	return cmd
}

func newSamplesListCommand(ctx *commandContext) *cobra.Command {
	var workdirFlag string
	var voiceFlag string

	cmd := &cobra.Command{
		Use:   "list [INPUT]",
		Short: "Show the approved voice sample set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			workdir := strings.TrimSpace(workdirFlag)
			if workdir == "" && len(args) == 1 {
				input, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				workdir = workspace.DefaultRoot(input)
			}
			if workdir == "" {
				return fmt.Errorf("provide the input video or --workdir to locate the work directory")
			}

			profile := cfg.Dubbing.VoiceProfile
			if strings.TrimSpace(voiceFlag) != "" {
				profile = strings.TrimSpace(voiceFlag)
			}

			manager := voicesample.NewManager(workspace.ApprovedProfileDir(workdir, profile), nil)
			meta, refs, ok := manager.LoadApproved()
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "No approved voice samples for profile %q in %s\n", profile, workdir)
				return nil
			}

			fmt.Fprintf(out, "Voice: %s (approved %s)\n", meta.VoiceName, meta.CreatedAt.Format("2006-01-02 15:04"))
			for _, ref := range refs {
				fmt.Fprintf(out, "  %s\n", ref)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workdirFlag, "workdir", "", "Work directory to inspect")
	cmd.Flags().StringVar(&voiceFlag, "voice", "", "Voice profile name (default from configuration)")
	return cmd
}
