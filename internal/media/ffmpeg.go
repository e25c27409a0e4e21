package media

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"revoice/internal/logging"
)

// Runner wraps the ffmpeg and ffprobe binaries behind context-aware calls.
// All invocations are synchronous and carry no internal timeout; callers
// cancel through the context.
type Runner struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger

	commandRunner func(ctx context.Context, name string, args ...string) error
	outputRunner  func(ctx context.Context, name string, args ...string) (string, error)
}

// NewRunner creates a media runner using the given binary names.
func NewRunner(ffmpeg, ffprobe string, logger *slog.Logger) *Runner {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &Runner{
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		logger:  logging.NewComponentLogger(logger, "media"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Runner) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	r.commandRunner = runner
}

// WithOutputRunner sets a custom output-capturing runner (for testing).
func (r *Runner) WithOutputRunner(runner func(ctx context.Context, name string, args ...string) (string, error)) {
	r.outputRunner = runner
}

func (r *Runner) run(ctx context.Context, name string, args ...string) error {
	if r.commandRunner != nil {
		return r.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (r *Runner) output(ctx context.Context, name string, args ...string) (string, error) {
	if r.outputRunner != nil {
		return r.outputRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

// Duration probes the container duration of a media file in seconds.
func (r *Runner) Duration(ctx context.Context, path string) (float64, error) {
	out, err := r.output(ctx, r.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("probe duration: parse %q: %w", strings.TrimSpace(out), err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("probe duration: non-positive duration %v for %s", value, path)
	}
	return value, nil
}

// ExtractAudio decodes the full audio track to mono 16 kHz PCM WAV, the
// format both the silence analyzer and the transcription engine expect.
func (r *Runner) ExtractAudio(ctx context.Context, source, dest string) error {
	return r.run(ctx, r.ffmpeg, buildExtractAudioArgs(source, -1, -1, dest)...)
}

// ExtractAudioSpan decodes the [start, end) audio span to mono 16 kHz WAV.
func (r *Runner) ExtractAudioSpan(ctx context.Context, source string, start, end float64, dest string) error {
	return r.run(ctx, r.ffmpeg, buildExtractAudioArgs(source, start, end, dest)...)
}

// ReplaceAudio cuts the [start, end) sub-clip of video and replaces its
// audio stream with the given track, encoding a standalone clip file.
func (r *Runner) ReplaceAudio(ctx context.Context, video string, start, end float64, audio, dest string) error {
	return r.run(ctx, r.ffmpeg, buildReplaceAudioArgs(video, start, end, audio, dest)...)
}

// CutClip encodes the [start, end) sub-clip of video with its original
// audio, used for spans where no speech was transcribed.
func (r *Runner) CutClip(ctx context.Context, video string, start, end float64, dest string) error {
	return r.run(ctx, r.ffmpeg, buildCutClipArgs(video, start, end, dest)...)
}

// Concat joins the clips listed in the manifest with a stream copy (no
// re-encode) and the fast-start flag. Progress seconds parsed from the tool's
// stderr are fed to the callback when one is provided. Concatenation is
// all-or-nothing at the process level.
func (r *Runner) Concat(ctx context.Context, manifest, dest string, progress func(seconds float64)) error {
	args := buildConcatArgs(manifest, dest)
	if r.commandRunner != nil {
		return r.commandRunner(ctx, r.ffmpeg, args...)
	}

	cmd := exec.CommandContext(ctx, r.ffmpeg, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("concat: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("concat: start %s: %w", r.ffmpeg, err)
	}

	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail = append(tail, line)
		if len(tail) > 20 {
			tail = tail[1:]
		}
		if progress == nil {
			continue
		}
		if seconds, ok := parseProgressSeconds(line); ok {
			progress(seconds)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("concat: %s exited: %w: %s", r.ffmpeg, err, strings.Join(tail, "\n"))
	}
	return nil
}

func buildExtractAudioArgs(source string, start, end float64, dest string) []string {
	args := []string{"-y", "-i", source}
	if start >= 0 && end > start {
		args = append(args, "-ss", formatSeconds(start), "-to", formatSeconds(end))
	}
	args = append(args,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	)
	return args
}

func buildReplaceAudioArgs(video string, start, end float64, audio, dest string) []string {
	return []string{
		"-y",
		"-ss", formatSeconds(start), "-to", formatSeconds(end),
		"-i", video,
		"-i", audio,
		"-map", "0:v", "-map", "1:a",
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "aac", "-ac", "2", "-ar", "44100", "-b:a", "160k",
		dest,
	}
}

func buildCutClipArgs(video string, start, end float64, dest string) []string {
	return []string{
		"-y",
		"-ss", formatSeconds(start), "-to", formatSeconds(end),
		"-i", video,
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "aac", "-ac", "2", "-ar", "44100", "-b:a", "160k",
		dest,
	}
}

func buildConcatArgs(manifest, dest string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		"-movflags", "+faststart",
		dest,
	}
}

var progressPattern = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

func parseProgressSeconds(line string) (float64, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	hours, _ := strconv.ParseFloat(match[1], 64)
	minutes, _ := strconv.ParseFloat(match[2], 64)
	seconds, _ := strconv.ParseFloat(match[3], 64)
	return hours*3600 + minutes*60 + seconds, true
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
