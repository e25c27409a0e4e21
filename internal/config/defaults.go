package config

const (
	defaultLogDir             = "~/.local/share/revoice/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultSourceLanguage     = "ru"
	defaultTargetLanguage     = "es"
	defaultSegmentDuration    = 300
	defaultMaxGapSeconds      = 1.0
	defaultVoiceProfile       = "default"
	defaultTranscriptionModel = "whisper-1"
	defaultTranslationModel   = "gpt-4o-mini"
	defaultSynthesisCommand   = "tts"
	defaultSynthesisModel     = "tts_models/multilingual/multi-dataset/xtts_v2"
	defaultMinSampleSeconds   = 3
	defaultMaxSampleSeconds   = 10
	defaultSilenceThresholdDB = -40
	defaultMaxCandidates      = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Dubbing: Dubbing{
			SourceLanguage:  defaultSourceLanguage,
			TargetLanguage:  defaultTargetLanguage,
			SegmentDuration: defaultSegmentDuration,
			MaxGapSeconds:   defaultMaxGapSeconds,
			VoiceProfile:    defaultVoiceProfile,
		},
		Engines: Engines{
			Transcription: Transcription{
				Model: defaultTranscriptionModel,
			},
			Translation: Translation{
				Model: defaultTranslationModel,
			},
			Synthesis: Synthesis{
				Command: defaultSynthesisCommand,
				Model:   defaultSynthesisModel,
			},
		},
		Extraction: Extraction{
			MinSampleSeconds:   defaultMinSampleSeconds,
			MaxSampleSeconds:   defaultMaxSampleSeconds,
			SilenceThresholdDB: defaultSilenceThresholdDB,
			MaxCandidates:      defaultMaxCandidates,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
