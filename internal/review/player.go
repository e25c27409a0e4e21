package review

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Player plays one audio file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// ExecPlayer shells out to the platform's command-line audio player.
type ExecPlayer struct {
	command string

	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewExecPlayer picks the player binary for the current platform. It returns
// nil when no player binary is installed, which the session treats as
// playback being unavailable.
func NewExecPlayer() *ExecPlayer {
	command := "aplay"
	if runtime.GOOS == "darwin" {
		command = "afplay"
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil
	}
	return &ExecPlayer{command: command}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *ExecPlayer) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	p.commandRunner = runner
}

// Play blocks until playback finishes or the context is canceled.
func (p *ExecPlayer) Play(ctx context.Context, path string) error {
	if p.commandRunner != nil {
		return p.commandRunner(ctx, p.command, path)
	}
	cmd := exec.CommandContext(ctx, p.command, path)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", p.command, err, strings.TrimSpace(string(output)))
	}
	return nil
}
