package config

import (
	"errors"
	"fmt"
	"strings"

	"revoice/internal/language"
)

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	src, err := language.Normalize(c.Dubbing.SourceLanguage)
	if err != nil {
		problems = append(problems, fmt.Sprintf("dubbing.source_language: %v", err))
	} else {
		c.Dubbing.SourceLanguage = src
	}
	tgt, err := language.Normalize(c.Dubbing.TargetLanguage)
	if err != nil {
		problems = append(problems, fmt.Sprintf("dubbing.target_language: %v", err))
	} else {
		c.Dubbing.TargetLanguage = tgt
	}
	if src != "" && tgt != "" && src == tgt {
		problems = append(problems, "dubbing: source and target language must differ")
	}

	if c.Dubbing.SegmentDuration <= 0 {
		problems = append(problems, "dubbing.segment_duration must be positive")
	}
	if c.Dubbing.MaxGapSeconds <= 0 {
		problems = append(problems, "dubbing.max_gap_seconds must be positive")
	}
	if c.Dubbing.VoiceProfile == "" {
		problems = append(problems, "dubbing.voice_profile must not be empty")
	}

	if c.Engines.Synthesis.Command == "" {
		problems = append(problems, "engines.synthesis.command must not be empty")
	}
	if strings.TrimSpace(c.Engines.Transcription.Model) == "" {
		problems = append(problems, "engines.transcription.model must not be empty")
	}
	if strings.TrimSpace(c.Engines.Translation.Model) == "" {
		problems = append(problems, "engines.translation.model must not be empty")
	}

	if c.Extraction.MinSampleSeconds <= 0 {
		problems = append(problems, "extraction.min_sample_seconds must be positive")
	}
	if c.Extraction.MaxSampleSeconds <= c.Extraction.MinSampleSeconds {
		problems = append(problems, "extraction.max_sample_seconds must exceed min_sample_seconds")
	}
	if c.Extraction.SilenceThresholdDB >= 0 {
		problems = append(problems, "extraction.silence_threshold_db must be negative (dBFS)")
	}
	if c.Extraction.MaxCandidates <= 0 {
		problems = append(problems, "extraction.max_candidates must be positive")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
