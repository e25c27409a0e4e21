// Package pipeline renders one segment of the input video: transcription,
// translation, subtitle persistence, audio synthesis, and the merge back
// into a dubbed video clip.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"revoice/internal/assembler"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/subtitles"
	"revoice/internal/workspace"
)

// Transcriber produces parallel source- and target-language subtitle tracks
// for a span of the input video.
type Transcriber interface {
	TranscribeAndTranslate(ctx context.Context, video string, start, end float64) ([]subtitles.Segment, []subtitles.Segment, error)
}

// TrackBuilder assembles a synthesized audio track from a subtitle list.
type TrackBuilder interface {
	Build(ctx context.Context, subs []subtitles.Segment, referenceVoice, language, outPath string) (assembler.Result, error)
}

// Pipeline processes one segment at a time against a workspace.
type Pipeline struct {
	store       *workspace.Store
	transcriber Transcriber
	builder     TrackBuilder
	media       *media.Runner
	sourceLang  string
	targetLang  string
	logger      *slog.Logger
}

// New wires the segment pipeline.
func New(store *workspace.Store, transcriber Transcriber, builder TrackBuilder, runner *media.Runner, sourceLang, targetLang string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:       store,
		transcriber: transcriber,
		builder:     builder,
		media:       runner,
		sourceLang:  sourceLang,
		targetLang:  targetLang,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Process renders the dubbed clip for the [start, end) span of video and
// returns its path. Subtitles for both languages are persisted before any
// synthesis so a later failure leaves the transcript on disk. Spans with no
// transcribable speech keep their original audio.
func (p *Pipeline) Process(ctx context.Context, video string, start, end float64, referenceVoice string) (string, error) {
	key := workspace.SegmentKey(int(start), int(end))
	clipPath := p.store.SegmentClipPath(int(start), int(end))

	source, target, err := p.transcriber.TranscribeAndTranslate(ctx, video, start, end)
	if err != nil {
		return "", fmt.Errorf("segment %s: %w", key, err)
	}

	if err := p.writeSubtitles(source, target, int(start), int(end)); err != nil {
		return "", fmt.Errorf("segment %s: %w", key, err)
	}

	if len(target) == 0 {
		p.logger.Info("no speech in segment, keeping original audio",
			logging.String(logging.FieldSegment, key))
		if err := p.media.CutClip(ctx, video, start, end, clipPath); err != nil {
			return "", fmt.Errorf("segment %s: %w", key, err)
		}
		return clipPath, nil
	}

	audioPath := p.store.SegmentAudioPath(int(start), int(end))
	result, err := p.builder.Build(ctx, target, referenceVoice, p.targetLang, audioPath)
	if err != nil {
		return "", fmt.Errorf("segment %s: %w", key, err)
	}

	if len(result.Skipped) > 0 {
		p.logger.Warn("segment assembled with skipped utterances",
			logging.String(logging.FieldSegment, key),
			logging.Int("skipped", len(result.Skipped)))
	}

	if err := p.media.ReplaceAudio(ctx, video, start, end, audioPath, clipPath); err != nil {
		return "", fmt.Errorf("segment %s: %w", key, err)
	}
	// The synthesized track is transient only once it is merged into the
	// clip; a failed merge leaves it behind for inspection and the retry.
	os.Remove(audioPath)

	p.logger.Info("segment rendered",
		logging.String(logging.FieldSegment, key),
		logging.Int("utterances", result.Synthesized),
		logging.Float64("audio_seconds", result.Duration))
	return clipPath, nil
}

// writeSubtitles persists both language tracks. The source track may be
// empty for speechless spans; an empty SRT still marks the span as seen.
func (p *Pipeline) writeSubtitles(source, target []subtitles.Segment, start, end int) error {
	if err := subtitles.WriteSRT(p.store.SubtitlePath(p.sourceLang, start, end), source); err != nil {
		return fmt.Errorf("write %s subtitles: %w", p.sourceLang, err)
	}
	if err := subtitles.WriteSRT(p.store.SubtitlePath(p.targetLang, start, end), target); err != nil {
		return fmt.Errorf("write %s subtitles: %w", p.targetLang, err)
	}
	return nil
}
