package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteManifest writes a concat demuxer manifest: one absolute clip path per
// line in the tool's `file '<path>'` form, in the order given.
func WriteManifest(path string, clips []string) error {
	if len(clips) == 0 {
		return fmt.Errorf("write manifest: no clips")
	}
	var sb strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return fmt.Errorf("write manifest: resolve %q: %w", clip, err)
		}
		fmt.Fprintf(&sb, "file '%s'\n", abs)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
