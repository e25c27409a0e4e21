package voicesample

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"revoice/internal/fileutil"
	"revoice/internal/logging"
)

// MetadataFile names the approved-set descriptor inside the approved
// samples directory.
const MetadataFile = "metadata.json"

// Metadata describes an approved reference voice set.
type Metadata struct {
	VoiceName string    `json:"voice_name"`
	Samples   []string  `json:"samples"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager owns the approved reference samples for a workspace.
type Manager struct {
	approvedDir string
	logger      *slog.Logger
}

// NewManager creates a manager rooted at the approved samples directory.
func NewManager(approvedDir string, logger *slog.Logger) *Manager {
	return &Manager{
		approvedDir: approvedDir,
		logger:      logging.NewComponentLogger(logger, "voicesample"),
	}
}

// SaveApproved copies the chosen candidate files into the approved directory
// as reference_<n>.wav and records them in metadata. It returns the new
// reference paths.
func (m *Manager) SaveApproved(voiceName string, samples []string) ([]string, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("save approved samples: empty selection")
	}
	if err := os.MkdirAll(m.approvedDir, 0o755); err != nil {
		return nil, fmt.Errorf("save approved samples: %w", err)
	}

	meta := Metadata{VoiceName: voiceName, CreatedAt: time.Now().UTC()}
	paths := make([]string, 0, len(samples))
	for i, src := range samples {
		name := fmt.Sprintf("reference_%d.wav", i+1)
		dest := filepath.Join(m.approvedDir, name)
		if err := fileutil.CopyFile(src, dest); err != nil {
			return nil, fmt.Errorf("save approved samples: %w", err)
		}
		meta.Samples = append(meta.Samples, name)
		paths = append(paths, dest)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("save approved samples: %w", err)
	}
	if err := fileutil.WriteAtomic(filepath.Join(m.approvedDir, MetadataFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("save approved samples: %w", err)
	}

	m.logger.Info("saved approved voice samples",
		logging.String(logging.FieldVoice, voiceName),
		logging.Int("count", len(paths)))
	return paths, nil
}

// LoadApproved returns the recorded reference paths when metadata exists and
// every listed file is still present. Any missing piece reports not-found
// rather than a partial set.
func (m *Manager) LoadApproved() (Metadata, []string, bool) {
	data, err := os.ReadFile(filepath.Join(m.approvedDir, MetadataFile))
	if err != nil {
		return Metadata{}, nil, false
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		m.logger.Warn("discarding corrupt sample metadata", logging.Error(err))
		return Metadata{}, nil, false
	}
	if len(meta.Samples) == 0 {
		return Metadata{}, nil, false
	}
	paths := make([]string, 0, len(meta.Samples))
	for _, name := range meta.Samples {
		path := filepath.Join(m.approvedDir, name)
		if !fileutil.FileExists(path) {
			m.logger.Warn("approved sample missing, ignoring saved set",
				logging.String("sample", name))
			return Metadata{}, nil, false
		}
		paths = append(paths, path)
	}
	return meta, paths, true
}
