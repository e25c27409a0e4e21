package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"revoice/internal/assembler"
	"revoice/internal/config"
	"revoice/internal/deps"
	"revoice/internal/dubbing"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/pipeline"
	"revoice/internal/review"
	"revoice/internal/synthesis"
	"revoice/internal/transcribe"
	"revoice/internal/translate"
	"revoice/internal/voicesample"
	"revoice/internal/workspace"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var workdirFlag string
	var voiceFlag string
	var segmentFlag int
	var maxGapFlag float64
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "run INPUT [OUTPUT]",
		Short: "Dub a video into the target language",
		Long: "Transcribes the input video in segments, translates the transcript, synthesizes " +
			"the translation in a voice cloned from the video itself, and assembles a dubbed output. " +
			"Interrupted runs resume from the last completed segment.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cfg, voiceFlag, segmentFlag, maxGapFlag)

			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input video: %w", err)
			}
			output := defaultOutputPath(input)
			if len(args) == 2 {
				if output, err = config.ExpandPath(args[1]); err != nil {
					return err
				}
			}

			if err := checkDependencies(cfg); err != nil {
				return err
			}

			logger, err := ctx.buildLogger()
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			workdir := strings.TrimSpace(workdirFlag)
			if workdir == "" {
				workdir = cfg.Paths.WorkDir
			}
			if workdir == "" {
				workdir = workspace.DefaultRoot(input)
			}
			store, err := workspace.Open(workdir, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := media.NewRunner(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger)

			cache := translate.LoadCache(store.TranslationCachePath(), logger)
			translator := translate.New(translate.Options{
				APIKey:         engineKey(cfg.Engines.Translation.APIKey),
				BaseURL:        cfg.Engines.Translation.BaseURL,
				Model:          cfg.Engines.Translation.Model,
				SourceLanguage: cfg.Dubbing.SourceLanguage,
				TargetLanguage: cfg.Dubbing.TargetLanguage,
			}, cache, logger)

			adapter := transcribe.New(transcribe.Options{
				APIKey:         engineKey(cfg.Engines.Transcription.APIKey),
				BaseURL:        cfg.Engines.Transcription.BaseURL,
				Model:          cfg.Engines.Transcription.Model,
				SourceLanguage: cfg.Dubbing.SourceLanguage,
			}, runner, translator, store.AudioDir(), logger)

			synth := synthesis.NewCLI(synthesis.Options{
				Command: cfg.Engines.Synthesis.Command,
				Model:   cfg.Engines.Synthesis.Model,
			}, logger)
			builder := assembler.NewBuilder(synth, cfg.Dubbing.MaxGapSeconds, store.AudioDir(), logger)
			segments := pipeline.New(store, adapter, builder, runner,
				cfg.Dubbing.SourceLanguage, cfg.Dubbing.TargetLanguage, logger)

			extractor := voicesample.NewExtractor(runner,
				cfg.Extraction.MinSampleSeconds,
				cfg.Extraction.MaxSampleSeconds,
				cfg.Extraction.SilenceThresholdDB,
				cfg.Extraction.MaxCandidates,
				logger)
			manager := voicesample.NewManager(
				filepath.Join(store.ApprovedSamplesDir(), cfg.Dubbing.VoiceProfile), logger)

			interactive := isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
			var player review.Player
			if p := review.NewExecPlayer(); p != nil {
				player = p
			}
			session := review.NewSession(cmd.InOrStdin(), cmd.OutOrStdout(), player, logger)

			orchestrator := dubbing.NewOrchestrator(store, runner, segments, extractor, manager, session,
				dubbing.Options{
					VoiceProfile:   cfg.Dubbing.VoiceProfile,
					SourceLanguage: cfg.Dubbing.SourceLanguage,
					TargetLanguage: cfg.Dubbing.TargetLanguage,
					SegmentSeconds: cfg.Dubbing.SegmentDuration,
					AssumeYes:      assumeYes,
					Interactive:    interactive,
				}, logger)

			logger.Warn("synthesized speech keeps the source segment timing only approximately; long translations can drift ahead of the picture",
				logging.String("source", cfg.Dubbing.SourceLanguage),
				logging.String("target", cfg.Dubbing.TargetLanguage))

			if err := orchestrator.Run(runCtx, input, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dubbed video written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&workdirFlag, "workdir", "", "Work directory (default: workdir_<video> next to the input)")
	cmd.Flags().StringVar(&voiceFlag, "voice", "", "Voice profile name for the approved sample set")
	cmd.Flags().IntVar(&segmentFlag, "segment-duration", 0, "Segment length in seconds")
	cmd.Flags().Float64Var(&maxGapFlag, "max-gap", 0, "Maximum silence preserved between utterances, in seconds")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Reuse approved voice samples without prompting")
	return cmd
}

func applyRunFlags(cfg *config.Config, voice string, segmentSeconds int, maxGap float64) {
	if strings.TrimSpace(voice) != "" {
		cfg.Dubbing.VoiceProfile = strings.TrimSpace(voice)
	}
	if segmentSeconds > 0 {
		cfg.Dubbing.SegmentDuration = segmentSeconds
	}
	if maxGap > 0 {
		cfg.Dubbing.MaxGapSeconds = maxGap
	}
}

func defaultOutputPath(input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), base+"_dubbed.mp4")
}

// engineKey falls back to the conventional environment variable when the
// config omits a key, so secrets can stay out of the config file.
func engineKey(configured string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	return os.Getenv("OPENAI_API_KEY")
}

func checkDependencies(cfg *config.Config) error {
	statuses := deps.CheckBinaries(deps.Defaults(cfg.Engines.Synthesis.Command))
	missing := deps.Missing(statuses)
	if len(missing) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("missing required binaries:")
	for _, status := range missing {
		fmt.Fprintf(&sb, "\n  %s (%s): %s", status.Name, status.Command, status.Detail)
	}
	return fmt.Errorf("%s", sb.String())
}
