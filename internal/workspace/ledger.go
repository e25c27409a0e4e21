package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"revoice/internal/fileutil"
	"revoice/internal/logging"
)

// SegmentRecord is one entry in the progress ledger. A record is written
// only after the merged clip and both subtitle files for its span exist on
// disk; Validate re-checks that invariant on resume.
type SegmentRecord struct {
	Output    string `json:"output"`
	Completed bool   `json:"completed"`
}

// SegmentKey derives the ledger key for a span of integer-truncated second
// offsets in the input video.
func SegmentKey(start, end int) string {
	return fmt.Sprintf("segment_%d_%d", start, end)
}

// ParseSegmentKey recovers the span from a ledger key. Offsets written as
// floats by older runs ("segment_0_300.0") are truncated to integers.
func ParseSegmentKey(key string) (start, end int, err error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 || parts[0] != "segment" {
		return 0, 0, fmt.Errorf("malformed segment key %q", key)
	}
	startF, errS := strconv.ParseFloat(parts[1], 64)
	endF, errE := strconv.ParseFloat(parts[2], 64)
	if errS != nil || errE != nil {
		return 0, 0, fmt.Errorf("malformed segment key %q", key)
	}
	return int(startF), int(endF), nil
}

func (s *Store) loadLedger() error {
	data, err := os.ReadFile(s.progressPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	entries := make(map[string]SegmentRecord)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse ledger %s: %w", s.progressPath(), err)
	}
	s.ledger = entries
	return nil
}

// Ledger returns a copy of the current ledger mapping.
func (s *Store) Ledger() map[string]SegmentRecord {
	out := make(map[string]SegmentRecord, len(s.ledger))
	for key, record := range s.ledger {
		out[key] = record
	}
	return out
}

// Record looks up a single ledger entry.
func (s *Store) Record(key string) (SegmentRecord, bool) {
	record, ok := s.ledger[key]
	return record, ok
}

// SetRecord stores an entry and persists the ledger immediately, so a crash
// after segment k loses at most the in-flight segment.
func (s *Store) SetRecord(key string, record SegmentRecord) error {
	s.ledger[key] = record
	return s.Save()
}

// Save persists the ledger atomically (write-then-rename).
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := fileutil.WriteAtomic(s.progressPath(), data, 0o644); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Validate drops every ledger entry whose backing files no longer exist: the
// merged clip plus the source- and target-language subtitle files for the
// span. Malformed keys fail only their own entry. The pruned ledger is
// persisted when anything was dropped. Returns the number of dropped entries.
func (s *Store) Validate(sourceLang, targetLang string) (int, error) {
	dropped := 0
	for key, record := range s.ledger {
		start, end, err := ParseSegmentKey(key)
		if err != nil {
			s.logger.Warn("dropping ledger entry with malformed key", logging.String(logging.FieldSegment, key))
			delete(s.ledger, key)
			dropped++
			continue
		}
		if record.Output == "" || !fileutil.FileExists(record.Output) {
			s.logger.Warn("dropping ledger entry with missing clip",
				logging.String(logging.FieldSegment, key),
				logging.String("output", record.Output))
			delete(s.ledger, key)
			dropped++
			continue
		}
		srcSRT := s.SubtitlePath(sourceLang, start, end)
		tgtSRT := s.SubtitlePath(targetLang, start, end)
		if !fileutil.FileExists(srcSRT) || !fileutil.FileExists(tgtSRT) {
			s.logger.Warn("dropping ledger entry with missing subtitles",
				logging.String(logging.FieldSegment, key))
			delete(s.ledger, key)
			dropped++
			continue
		}
	}
	if dropped > 0 {
		if err := s.Save(); err != nil {
			return dropped, err
		}
		s.logger.Info("ledger validated",
			logging.Int("dropped", dropped),
			logging.Int("remaining", len(s.ledger)))
	}
	return dropped, nil
}
