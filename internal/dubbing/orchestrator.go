// Package dubbing orchestrates a full dubbing run: ledger validation,
// reference voice preparation, segment-by-segment rendering, and the final
// concatenation into the output video.
package dubbing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"

	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/review"
	"revoice/internal/voicesample"
	"revoice/internal/workspace"
)

// State tracks where a run currently is. Transitions are strictly forward
// except the jump to StateFailed.
type State int

const (
	StateIdle State = iota
	StateValidating
	StatePreparingVoice
	StateDubbing
	StateConcatenating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StatePreparingVoice:
		return "preparing-voice"
	case StateDubbing:
		return "dubbing"
	case StateConcatenating:
		return "concatenating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SegmentProcessor renders one window into a dubbed clip.
type SegmentProcessor interface {
	Process(ctx context.Context, video string, start, end float64, referenceVoice string) (string, error)
}

// SampleExtractor pulls candidate voice samples from the input video.
type SampleExtractor interface {
	Extract(ctx context.Context, video, outDir string) ([]string, error)
}

// Reviewer approves voice sample candidates and confirms set reuse.
type Reviewer interface {
	ReviewCandidates(ctx context.Context, candidates []string) (review.Decision, error)
	ConfirmReuse(ctx context.Context, meta voicesample.Metadata) (bool, error)
}

// SampleManager persists and recalls approved reference sets.
type SampleManager interface {
	SaveApproved(voiceName string, samples []string) ([]string, error)
	LoadApproved() (voicesample.Metadata, []string, bool)
}

// Options carries the run parameters resolved from configuration and flags.
type Options struct {
	VoiceProfile   string
	SourceLanguage string
	TargetLanguage string
	SegmentSeconds int
	AssumeYes      bool
	// Interactive enables the review session and the progress bar. It is
	// false when stdin or stdout is not a terminal.
	Interactive bool
}

const maxReviewAttempts = 3

// Orchestrator drives a dubbing run over one workspace.
type Orchestrator struct {
	store     *workspace.Store
	media     *media.Runner
	processor SegmentProcessor
	extractor SampleExtractor
	manager   SampleManager
	reviewer  Reviewer
	opts      Options
	state     State
	logger    *slog.Logger
}

// NewOrchestrator wires a run.
func NewOrchestrator(store *workspace.Store, runner *media.Runner, processor SegmentProcessor, extractor SampleExtractor, manager SampleManager, reviewer Reviewer, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		media:     runner,
		processor: processor,
		extractor: extractor,
		manager:   manager,
		reviewer:  reviewer,
		opts:      opts,
		state:     StateIdle,
		logger:    logging.NewComponentLogger(logger, "dubbing"),
	}
}

// State reports the current run state.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) setState(next State) {
	o.logger.Debug("state transition",
		logging.String("from", o.state.String()),
		logging.String("to", next.String()))
	o.state = next
}

// Run dubs video into output. Completed segments recorded in the ledger are
// skipped, so an interrupted run resumes where it stopped. Run fails without
// touching the output file when any segment cannot be rendered.
func (o *Orchestrator) Run(ctx context.Context, video, output string) error {
	err := o.run(ctx, video, output)
	if err != nil {
		o.setState(StateFailed)
		return err
	}
	o.setState(StateDone)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, video, output string) error {
	duration, err := o.media.Duration(ctx, video)
	if err != nil {
		return err
	}

	o.setState(StateValidating)
	dropped, err := o.store.Validate(o.opts.SourceLanguage, o.opts.TargetLanguage)
	if err != nil {
		return err
	}
	if dropped > 0 {
		o.logger.Info("pruned stale ledger entries", logging.Int("dropped", dropped))
	}

	o.setState(StatePreparingVoice)
	referenceVoice, err := o.resolveVoice(ctx, video)
	if err != nil {
		return err
	}

	o.setState(StateDubbing)
	windows := Partition(duration, float64(o.opts.SegmentSeconds))
	if len(windows) == 0 {
		return fmt.Errorf("video %s has no duration to dub", video)
	}
	o.logger.Info("dubbing run planned",
		logging.Float64("duration", duration),
		logging.Int("segments", len(windows)),
		logging.Int("completed", o.completedCount(windows)))

	bar := o.newProgressBar(len(windows))
	clips := make([]string, 0, len(windows))
	var failures []string

	for _, window := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := workspace.SegmentKey(int(window.Start), int(window.End))

		if record, ok := o.store.Record(key); ok && record.Completed {
			o.logger.Debug("segment already rendered", logging.String(logging.FieldSegment, key))
			clips = append(clips, record.Output)
			o.advance(bar)
			continue
		}

		clip, err := o.processor.Process(ctx, video, window.Start, window.End, referenceVoice)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("segment failed", logging.String(logging.FieldSegment, key), logging.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", key, err))
			o.advance(bar)
			continue
		}
		if err := o.store.SetRecord(key, workspace.SegmentRecord{Output: clip, Completed: true}); err != nil {
			return err
		}
		clips = append(clips, clip)
		o.advance(bar)
	}
	o.finish(bar)

	if len(failures) > 0 {
		return fmt.Errorf("%d segment(s) failed, rerun to retry them:\n%s",
			len(failures), strings.Join(failures, "\n"))
	}

	o.setState(StateConcatenating)
	manifest := o.store.ManifestPath()
	if err := media.WriteManifest(manifest, clips); err != nil {
		return err
	}
	if err := o.media.Concat(ctx, manifest, output, func(seconds float64) {
		o.logger.Debug("concatenating", logging.Float64("seconds", seconds))
	}); err != nil {
		return err
	}
	os.Remove(manifest)

	o.logger.Info("dubbed video written",
		logging.String("output", output),
		logging.Int("segments", len(clips)))
	return nil
}

// resolveVoice returns the reference speaker WAV used for cloning. An
// approved set is reused when present; otherwise candidates are extracted
// and reviewed. Non-interactive runs approve every candidate so headless
// resumption still works, but only a reviewer can replace an approved set.
func (o *Orchestrator) resolveVoice(ctx context.Context, video string) (string, error) {
	if meta, refs, ok := o.manager.LoadApproved(); ok {
		if o.opts.AssumeYes || !o.opts.Interactive {
			o.logger.Info("reusing approved voice",
				logging.String(logging.FieldVoice, meta.VoiceName),
				logging.Int("samples", len(refs)))
			return refs[0], nil
		}
		reuse, err := o.reviewer.ConfirmReuse(ctx, meta)
		if err != nil {
			return "", err
		}
		if reuse {
			return refs[0], nil
		}
	}

	sawCandidates := false
	for attempt := 1; attempt <= maxReviewAttempts; attempt++ {
		candidates, err := o.extractor.Extract(ctx, video, o.store.ExtractedSamplesDir())
		if errors.Is(err, voicesample.ErrNoCandidates) {
			o.logger.Warn("no speech candidates found",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", maxReviewAttempts))
			continue
		}
		if err != nil {
			return "", err
		}
		sawCandidates = true

		var approved []string
		if o.opts.Interactive && !o.opts.AssumeYes {
			decision, err := o.reviewer.ReviewCandidates(ctx, candidates)
			if err != nil {
				return "", err
			}
			approved = decision.Approved
		} else {
			o.logger.Info("non-interactive run, approving all extracted samples",
				logging.Int("count", len(candidates)))
			approved = candidates
		}

		if len(approved) == 0 {
			o.logger.Warn("no samples approved",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", maxReviewAttempts))
			continue
		}
		refs, err := o.manager.SaveApproved(o.opts.VoiceProfile, approved)
		if err != nil {
			return "", err
		}
		return refs[0], nil
	}
	if !sawCandidates {
		return "", fmt.Errorf("no usable speech found after %d attempt(s); lower extraction.silence_threshold_db or widen the sample length bounds", maxReviewAttempts)
	}
	return "", fmt.Errorf("no voice samples approved after %d attempt(s)", maxReviewAttempts)
}

func (o *Orchestrator) completedCount(windows []Window) int {
	count := 0
	for _, window := range windows {
		key := workspace.SegmentKey(int(window.Start), int(window.End))
		if record, ok := o.store.Record(key); ok && record.Completed {
			count++
		}
	}
	return count
}

func (o *Orchestrator) newProgressBar(total int) *progressbar.ProgressBar {
	if !o.opts.Interactive {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("dubbing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

func (o *Orchestrator) advance(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}

func (o *Orchestrator) finish(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
