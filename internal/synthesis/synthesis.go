// Package synthesis drives the text-to-speech engine that produces
// voice-cloned audio clips from translated subtitle text.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"revoice/internal/logging"
)

// Synthesizer produces a spoken WAV clip for one utterance.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, referenceVoice, language, outPath string) error
}

// Options configures the external TTS command.
type Options struct {
	// Command is the executable name, normally "tts" from Coqui TTS.
	Command string
	// Model selects the TTS model, e.g. "tts_models/multilingual/multi-dataset/xtts_v2".
	Model string
}

// CLI runs a Coqui-style tts executable per utterance. Voice cloning is
// driven by a reference speaker WAV passed on each call.
type CLI struct {
	command string
	model   string
	logger  *slog.Logger

	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewCLI builds the command-line synthesizer.
func NewCLI(opts Options, logger *slog.Logger) *CLI {
	command := opts.Command
	if command == "" {
		command = "tts"
	}
	return &CLI{
		command: command,
		model:   opts.Model,
		logger:  logging.NewComponentLogger(logger, "synthesis"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *CLI) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.commandRunner = runner
}

// Synthesize renders text into outPath as WAV, cloning the voice in
// referenceVoice. An empty text or missing reference is an error; a run
// that exits zero but writes no file is also treated as a failure.
func (c *CLI) Synthesize(ctx context.Context, text, referenceVoice, language, outPath string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("synthesize: empty text")
	}
	if referenceVoice == "" {
		return fmt.Errorf("synthesize: no reference voice")
	}

	args := []string{
		"--text", trimmed,
		"--model_name", c.model,
		"--speaker_wav", referenceVoice,
		"--language_idx", language,
		"--out_path", outPath,
	}

	c.logger.Debug("synthesizing utterance",
		logging.String("language", language),
		logging.Int("chars", len(trimmed)),
		logging.String("out", outPath))

	if err := c.run(ctx, c.command, args...); err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("synthesize: no output produced: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("synthesize: empty output %s", outPath)
	}
	return nil
}

func (c *CLI) run(ctx context.Context, name string, args ...string) error {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(string(output), 20))
	}
	return nil
}

// tail keeps the last n lines of command output for error reporting.
func tail(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
