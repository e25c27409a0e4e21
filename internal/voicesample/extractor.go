// Package voicesample finds clean stretches of speech in a video's audio
// track and manages the approved reference clips used for voice cloning.
package voicesample

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"revoice/internal/logging"
	"revoice/internal/media"
)

// ErrNoCandidates indicates every detection tier came up empty. Callers can
// treat it as recoverable and retry with different extraction settings.
var ErrNoCandidates = errors.New("no usable speech found")

// Tier is one detection attempt. Later tiers loosen the silence threshold
// and accept longer spans so noisy sources still yield candidates.
type Tier struct {
	MinSeconds  float64
	MaxSeconds  float64
	ThresholdDB float64
}

// Extractor pulls candidate voice samples out of a video file.
type Extractor struct {
	media         *media.Runner
	tiers         []Tier
	maxCandidates int
	logger        *slog.Logger
}

// NewExtractor builds an extractor. The first tier comes from configuration;
// two progressively looser fallback tiers are always appended.
func NewExtractor(runner *media.Runner, minSeconds, maxSeconds, thresholdDB float64, maxCandidates int, logger *slog.Logger) *Extractor {
	return &Extractor{
		media: runner,
		tiers: []Tier{
			{MinSeconds: minSeconds, MaxSeconds: maxSeconds, ThresholdDB: thresholdDB},
			{MinSeconds: 2, MaxSeconds: 15, ThresholdDB: -45},
			{MinSeconds: 2, MaxSeconds: 20, ThresholdDB: -50},
		},
		maxCandidates: maxCandidates,
		logger:        logging.NewComponentLogger(logger, "voicesample"),
	}
}

// Extract decodes the video's audio and writes up to maxCandidates candidate
// WAV files named sample_<n>.wav into outDir. Tiers are tried in order; the
// first tier that yields any candidate wins. No candidates on any tier
// reports ErrNoCandidates.
func (e *Extractor) Extract(ctx context.Context, video, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("extract samples: %w", err)
	}

	sourceAudio := filepath.Join(outDir, "source_audio.wav")
	if err := e.media.ExtractAudio(ctx, video, sourceAudio); err != nil {
		return nil, fmt.Errorf("extract samples: %w", err)
	}
	defer os.Remove(sourceAudio)

	data, rate, err := readMono(sourceAudio)
	if err != nil {
		return nil, fmt.Errorf("extract samples: %w", err)
	}

	for _, tier := range e.tiers {
		spans := DetectSpeechSpans(data, rate, tier)
		if len(spans) == 0 {
			e.logger.Debug("no spans at threshold",
				logging.Float64("threshold_db", tier.ThresholdDB))
			continue
		}
		if len(spans) > e.maxCandidates {
			spans = spans[:e.maxCandidates]
		}
		paths, err := e.writeCandidates(outDir, data, rate, spans)
		if err != nil {
			return nil, fmt.Errorf("extract samples: %w", err)
		}
		e.logger.Info("extracted voice sample candidates",
			logging.Int("count", len(paths)),
			logging.Float64("threshold_db", tier.ThresholdDB))
		return paths, nil
	}
	return nil, fmt.Errorf("extract samples from %s: %w", video, ErrNoCandidates)
}

func (e *Extractor) writeCandidates(outDir string, data []int, rate int, spans []Span) ([]string, error) {
	paths := make([]string, 0, len(spans))
	for i, span := range spans {
		path := filepath.Join(outDir, fmt.Sprintf("sample_%d.wav", i+1))
		if err := writeMono(path, data[span.StartSample:span.EndSample], rate); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Span is a half-open sample range holding continuous speech.
type Span struct {
	StartSample int
	EndSample   int
}

// Seconds reports the span length for the given sample rate.
func (s Span) Seconds(rate int) float64 {
	return float64(s.EndSample-s.StartSample) / float64(rate)
}

const (
	frameSeconds = 0.01
	// Silent stretches shorter than this stay inside a span; speech has
	// natural micro-pauses.
	joinSeconds = 0.5
)

// DetectSpeechSpans scans mono PCM for stretches louder than the tier's
// threshold. Spans shorter than the tier minimum are dropped; spans longer
// than the maximum are truncated to it.
func DetectSpeechSpans(data []int, rate int, tier Tier) []Span {
	frameLen := int(float64(rate) * frameSeconds)
	if frameLen <= 0 || len(data) < frameLen {
		return nil
	}
	joinFrames := int(joinSeconds / frameSeconds)

	var (
		spans      []Span
		inSpan     bool
		spanStart  int
		silentRun  int
		spanEndPos int
	)
	flush := func() {
		if !inSpan {
			return
		}
		span := Span{StartSample: spanStart, EndSample: spanEndPos}
		min := int(tier.MinSeconds * float64(rate))
		max := int(tier.MaxSeconds * float64(rate))
		if span.EndSample-span.StartSample >= min {
			if span.EndSample-span.StartSample > max {
				span.EndSample = span.StartSample + max
			}
			spans = append(spans, span)
		}
		inSpan = false
		silentRun = 0
	}

	for offset := 0; offset+frameLen <= len(data); offset += frameLen {
		loud := frameDBFS(data[offset:offset+frameLen]) >= tier.ThresholdDB
		switch {
		case loud && !inSpan:
			inSpan = true
			spanStart = offset
			spanEndPos = offset + frameLen
			silentRun = 0
		case loud && inSpan:
			spanEndPos = offset + frameLen
			silentRun = 0
		case !loud && inSpan:
			silentRun++
			if silentRun >= joinFrames {
				flush()
			}
		}
	}
	flush()
	return spans
}

// frameDBFS computes the RMS level of one frame relative to 16-bit full
// scale. All-zero frames report a floor well below any usable threshold.
func frameDBFS(frame []int) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	if rms == 0 {
		return -120
	}
	return 20 * math.Log10(rms/32768)
}

func readMono(path string) ([]int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("decode %s: no audio data", path)
	}
	return buf.Data, buf.Format.SampleRate, nil
}

func writeMono(path string, data []int, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		enc.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return enc.Close()
}
