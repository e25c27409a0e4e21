package testsupport

import (
	"path/filepath"
	"testing"

	"revoice/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "workdir")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Engines.Transcription.APIKey = "test"
	cfgVal.Engines.Translation.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLanguages sets the source and target language pair.
func WithLanguages(source, target string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dubbing.SourceLanguage = source
		b.cfg.Dubbing.TargetLanguage = target
	}
}

// WithSegmentDuration overrides the segment length in seconds.
func WithSegmentDuration(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dubbing.SegmentDuration = seconds
	}
}

// WithEngineBaseURL points both chat and transcription engines at a test
// server.
func WithEngineBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engines.Transcription.BaseURL = url
		b.cfg.Engines.Translation.BaseURL = url
	}
}

// WithVoiceProfile sets the voice profile name.
func WithVoiceProfile(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dubbing.VoiceProfile = name
	}
}
