// Package config loads and validates the TOML configuration for revoice.
//
// Sections by subsystem:
//   - Paths: work and log directories
//   - Dubbing: languages, segment window, gap cap, voice profile
//   - Engines: transcription, translation, and synthesis endpoints
//   - Extraction: voice sample extraction thresholds
//   - Logging: log format and level
package config
