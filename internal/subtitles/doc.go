// Package subtitles defines the timed-utterance data model shared by the
// transcription adapter and the synthesis assembler, plus SubRip read/write
// helpers.
package subtitles
