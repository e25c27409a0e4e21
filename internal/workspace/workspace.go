package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"revoice/internal/logging"
)

const (
	// ProgressFile is the persisted ledger mapping segment keys to records.
	ProgressFile = "progress.json"
	// TranslationCacheFile persists source-text to translated-text pairs.
	TranslationCacheFile = "translation_cache.json"
	// ManifestFile lists segment clips for the final concatenation.
	ManifestFile = "segments.txt"

	lockFile = ".revoice.lock"
)

// ErrLocked indicates another revoice instance owns the work directory.
var ErrLocked = errors.New("work directory is locked by another revoice instance")

// Store owns the on-disk work directory layout and the progress ledger.
// It is the single authority for paths inside the work directory; a work
// directory supports exactly one writer at a time.
type Store struct {
	root   string
	logger *slog.Logger
	lock   *flock.Flock
	ledger map[string]SegmentRecord
}

// DefaultRoot derives the conventional work directory for an input video:
// workdir_<video-basename> next to the video.
func DefaultRoot(videoPath string) string {
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return filepath.Join(filepath.Dir(videoPath), "workdir_"+base)
}

// Open ensures the directory tree exists, acquires the single-writer lock,
// and loads the ledger. An empty root allocates a fresh temporary directory.
// A missing ledger file yields an empty ledger.
func Open(root string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		tmp, err := os.MkdirTemp("", "revoice_")
		if err != nil {
			return nil, fmt.Errorf("allocate work directory: %w", err)
		}
		root = tmp
	}

	s := &Store{
		root:   root,
		logger: logging.NewComponentLogger(logger, "workspace"),
		ledger: make(map[string]SegmentRecord),
	}

	for _, dir := range []string{
		root,
		s.AudioDir(),
		s.VideoDir(),
		s.SubtitlesDir(),
		s.ExtractedSamplesDir(),
		s.ApprovedSamplesDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	s.lock = flock.New(filepath.Join(root, lockFile))
	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	if err := s.loadLedger(); err != nil {
		_ = s.lock.Unlock()
		return nil, err
	}

	s.logger.Debug("workspace ready",
		logging.String("root", root),
		logging.Int("ledger_entries", len(s.ledger)))
	return s, nil
}

// Close releases the single-writer lock.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

// Root returns the work directory path.
func (s *Store) Root() string { return s.root }

// AudioDir holds transient per-segment audio tracks.
func (s *Store) AudioDir() string { return filepath.Join(s.root, "audio") }

// VideoDir holds merged per-segment clips.
func (s *Store) VideoDir() string { return filepath.Join(s.root, "video") }

// SubtitlesDir holds per-segment SRT files for both languages.
func (s *Store) SubtitlesDir() string { return filepath.Join(s.root, "subtitles") }

// ExtractedSamplesDir holds voice sample candidates awaiting review.
func (s *Store) ExtractedSamplesDir() string {
	return filepath.Join(s.root, "voice_references", "extracted")
}

// ApprovedSamplesDir holds approved voice sample sets, one subdir per profile.
func (s *Store) ApprovedSamplesDir() string {
	return filepath.Join(s.root, "voice_references", "approved")
}

// ApprovedProfileDir locates a profile's approved sample set under any work
// directory without opening it, for read-only inspection while a run holds
// the lock.
func ApprovedProfileDir(root, profile string) string {
	return filepath.Join(root, "voice_references", "approved", profile)
}

// SubtitlePath names the SRT file for a language over an integer-second span.
func (s *Store) SubtitlePath(lang string, start, end int) string {
	return filepath.Join(s.SubtitlesDir(), fmt.Sprintf("%s_%d_%d.srt", lang, start, end))
}

// SegmentClipPath names the merged output clip for a span.
func (s *Store) SegmentClipPath(start, end int) string {
	return filepath.Join(s.VideoDir(), fmt.Sprintf("segment_%d_%d.mp4", start, end))
}

// SegmentAudioPath names the transient synthesized track for a span.
func (s *Store) SegmentAudioPath(start, end int) string {
	return filepath.Join(s.AudioDir(), fmt.Sprintf("temp_audio_%d_%d.wav", start, end))
}

// TranslationCachePath locates the persisted translation cache.
func (s *Store) TranslationCachePath() string {
	return filepath.Join(s.root, TranslationCacheFile)
}

// ManifestPath locates the concat manifest.
func (s *Store) ManifestPath() string {
	return filepath.Join(s.root, ManifestFile)
}

func (s *Store) progressPath() string {
	return filepath.Join(s.root, ProgressFile)
}
