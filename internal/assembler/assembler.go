// Package assembler renders a translated subtitle track into one continuous
// audio file: every utterance is synthesized in the cloned voice and the
// silent gaps between utterances are reproduced, capped to keep pacing tight.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"revoice/internal/logging"
	"revoice/internal/subtitles"
	"revoice/internal/synthesis"
)

// Outcome records one utterance that could not be rendered.
type Outcome struct {
	Index int
	Text  string
	Err   error
}

// Result summarizes a build.
type Result struct {
	Synthesized int
	Skipped     []Outcome
	// Duration is the length of the written track in seconds.
	Duration float64
}

// Builder assembles synthesized clips and inter-utterance silence into a
// single WAV track.
type Builder struct {
	synth      synthesis.Synthesizer
	maxGap     float64
	scratchDir string
	logger     *slog.Logger
}

// NewBuilder creates a track builder. maxGap caps the silence inserted for
// any single gap in the source timeline, in seconds.
func NewBuilder(synth synthesis.Synthesizer, maxGap float64, scratchDir string, logger *slog.Logger) *Builder {
	return &Builder{
		synth:      synth,
		maxGap:     maxGap,
		scratchDir: scratchDir,
		logger:     logging.NewComponentLogger(logger, "assembler"),
	}
}

// trackFormat is adopted from the first successfully decoded clip; later
// clips must match it to be appended.
type trackFormat struct {
	sampleRate int
	channels   int
	bitDepth   int
}

// Build synthesizes every utterance and writes the assembled track to
// outPath. Failed utterances are skipped and reported in the result; the
// track is only written when at least one utterance succeeded, so a fully
// failed build leaves no file behind. Silence is inserted for timeline gaps
// between the last appended utterance and the next one, capped at maxGap,
// and never before the first appended utterance.
func (b *Builder) Build(ctx context.Context, subs []subtitles.Segment, referenceVoice, language, outPath string) (Result, error) {
	if len(subs) == 0 {
		return Result{}, fmt.Errorf("assemble: no utterances to synthesize")
	}
	ordered := subtitles.Sorted(subs)

	var (
		result  Result
		format  trackFormat
		samples []int
		lastEnd = -1.0
	)

	for i, sub := range ordered {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		data, clipFormat, err := b.renderUtterance(ctx, i, sub.Content, referenceVoice, language)
		if err != nil {
			b.logger.Warn("skipping utterance",
				logging.Int("index", i),
				logging.Error(err))
			result.Skipped = append(result.Skipped, Outcome{Index: i, Text: sub.Content, Err: err})
			continue
		}

		if result.Synthesized == 0 {
			format = clipFormat
		} else if clipFormat != format {
			err := fmt.Errorf("clip format %+v does not match track format %+v", clipFormat, format)
			b.logger.Warn("skipping utterance", logging.Int("index", i), logging.Error(err))
			result.Skipped = append(result.Skipped, Outcome{Index: i, Text: sub.Content, Err: err})
			continue
		}

		if lastEnd >= 0 && sub.Start > lastEnd {
			gap := math.Min(sub.Start-lastEnd, b.maxGap)
			samples = append(samples, make([]int, silenceSamples(gap, format))...)
		}
		samples = append(samples, data...)
		lastEnd = sub.End
		result.Synthesized++
	}

	if result.Synthesized == 0 {
		return result, fmt.Errorf("assemble: all %d utterances failed", len(ordered))
	}

	if err := writeTrack(outPath, samples, format); err != nil {
		return result, fmt.Errorf("assemble: %w", err)
	}
	result.Duration = float64(len(samples)) / float64(format.sampleRate*format.channels)

	b.logger.Info("assembled audio track",
		logging.Int("synthesized", result.Synthesized),
		logging.Int("skipped", len(result.Skipped)),
		logging.Float64("seconds", result.Duration))
	return result, nil
}

// renderUtterance synthesizes one utterance, sentence by sentence, and
// returns the concatenated PCM samples. A sentence that fails is dropped;
// the utterance only fails when no sentence produced audio.
func (b *Builder) renderUtterance(ctx context.Context, index int, text, referenceVoice, language string) ([]int, trackFormat, error) {
	sentences := subtitles.SplitSentences(text)
	if len(sentences) == 0 {
		return nil, trackFormat{}, fmt.Errorf("empty utterance")
	}

	var (
		data    []int
		format  trackFormat
		lastErr error
		ok      bool
	)
	for j, sentence := range sentences {
		clipPath := filepath.Join(b.scratchDir, fmt.Sprintf("utterance_%03d_%02d.wav", index, j))
		if err := b.synth.Synthesize(ctx, sentence, referenceVoice, language, clipPath); err != nil {
			lastErr = err
			continue
		}
		clipData, clipFormat, err := readClip(clipPath)
		os.Remove(clipPath)
		if err != nil {
			lastErr = err
			continue
		}
		if !ok {
			format = clipFormat
		} else if clipFormat != format {
			lastErr = fmt.Errorf("sentence format %+v differs from utterance format %+v", clipFormat, format)
			continue
		}
		data = append(data, clipData...)
		ok = true
	}
	if !ok {
		return nil, trackFormat{}, fmt.Errorf("synthesis produced no audio: %w", lastErr)
	}
	return data, format, nil
}

func readClip(path string) ([]int, trackFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, trackFormat{}, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, trackFormat{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || len(buf.Data) == 0 {
		return nil, trackFormat{}, fmt.Errorf("decode %s: no audio data", path)
	}
	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	format := trackFormat{
		sampleRate: buf.Format.SampleRate,
		channels:   buf.Format.NumChannels,
		bitDepth:   bitDepth,
	}
	return buf.Data, format, nil
}

func silenceSamples(seconds float64, format trackFormat) int {
	frames := int(math.Round(seconds * float64(format.sampleRate)))
	return frames * format.channels
}

func writeTrack(path string, samples []int, format trackFormat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := wav.NewEncoder(f, format.sampleRate, format.bitDepth, format.channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: format.channels, SampleRate: format.sampleRate},
		Data:           samples,
		SourceBitDepth: format.bitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		encoder.Close()
		return fmt.Errorf("write track: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize track: %w", err)
	}
	return nil
}
