package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/subtitles"
)

// Translator converts one utterance of source-language text.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// Options configures the speech-to-text engine endpoint.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	SourceLanguage string
}

// Adapter turns a video time span into parallel source- and
// target-language subtitle tracks: audio extraction, Whisper-style
// transcription, then per-utterance translation.
type Adapter struct {
	client     *openai.Client
	model      string
	source     string
	media      *media.Runner
	translator Translator
	scratchDir string
	logger     *slog.Logger
}

// New builds the adapter. scratchDir receives short-lived extracted audio.
func New(opts Options, runner *media.Runner, translator Translator, scratchDir string, logger *slog.Logger) *Adapter {
	cfg := openai.DefaultConfig(opts.APIKey)
	if strings.TrimSpace(opts.BaseURL) != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &Adapter{
		client:     openai.NewClientWithConfig(cfg),
		model:      opts.Model,
		source:     opts.SourceLanguage,
		media:      runner,
		translator: translator,
		scratchDir: scratchDir,
		logger:     logging.NewComponentLogger(logger, "transcribe"),
	}
}

// TranscribeAndTranslate returns ordered subtitle lists for [start, end) of
// the video, one per language. Utterances that are empty after trimming are
// dropped; both lists share the source timing.
func (a *Adapter) TranscribeAndTranslate(ctx context.Context, video string, start, end float64) ([]subtitles.Segment, []subtitles.Segment, error) {
	tempAudio := filepath.Join(a.scratchDir, fmt.Sprintf("temp_whisper_%s.wav", uuid.NewString()))
	if err := a.media.ExtractAudioSpan(ctx, video, start, end, tempAudio); err != nil {
		return nil, nil, fmt.Errorf("extract audio span: %w", err)
	}
	defer os.Remove(tempAudio)

	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.model,
		FilePath: tempAudio,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: a.source,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("transcription: %w", err)
	}

	var source, target []subtitles.Segment
	for _, raw := range resp.Segments {
		seg, ok := subtitles.NewSegment(raw.Start, raw.End, raw.Text)
		if !ok {
			continue
		}
		source = append(source, seg)

		translated, ok := subtitles.NewSegment(seg.Start, seg.End, a.translator.Translate(ctx, seg.Content))
		if !ok {
			// Translation fell back to empty; mirror the source so both
			// tracks stay parallel.
			translated = seg
		}
		target = append(target, translated)
	}

	a.logger.Debug("transcribed span",
		logging.Float64("start", start),
		logging.Float64("end", end),
		logging.Int("utterances", len(source)))
	return source, target, nil
}
