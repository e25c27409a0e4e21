// Package review drives the interactive approval of extracted voice sample
// candidates before any synthesis runs.
package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"revoice/internal/logging"
	"revoice/internal/voicesample"
)

// Decision is the outcome of a candidate review.
type Decision struct {
	Approved []string
}

// ErrAborted is returned when the reviewer quits the session.
var ErrAborted = fmt.Errorf("review aborted")

// Session reads reviewer commands from in and writes prompts to out.
type Session struct {
	in     *bufio.Reader
	out    io.Writer
	player Player
	logger *slog.Logger
}

// NewSession builds a review session. player may be nil when playback is
// unavailable; the play command then reports that instead of failing.
func NewSession(in io.Reader, out io.Writer, player Player, logger *slog.Logger) *Session {
	return &Session{
		in:     bufio.NewReader(in),
		out:    out,
		player: player,
		logger: logging.NewComponentLogger(logger, "review"),
	}
}

// ReviewCandidates walks the reviewer through each candidate. Commands:
// y approve, n reject, p play, s approve this and every remaining candidate,
// q abort. The session fails when the reviewer quits or input ends early.
func (s *Session) ReviewCandidates(ctx context.Context, candidates []string) (Decision, error) {
	var decision Decision
	fmt.Fprintf(s.out, "Review %d voice sample candidate(s). Approve the ones that sound like clean speech from the voice to clone.\n", len(candidates))

	for i := 0; i < len(candidates); i++ {
		candidate := candidates[i]
		fmt.Fprintf(s.out, "\nSample %d/%d: %s\n", i+1, len(candidates), filepath.Base(candidate))

		for {
			if err := ctx.Err(); err != nil {
				return decision, err
			}
			fmt.Fprint(s.out, "[y]es / [n]o / [p]lay / [s] approve rest / [q]uit: ")
			answer, err := s.readAnswer()
			if err != nil {
				return decision, fmt.Errorf("review input: %w", err)
			}
			switch answer {
			case "y", "yes":
				decision.Approved = append(decision.Approved, candidate)
			case "n", "no":
			case "p", "play":
				s.play(ctx, candidate)
				continue
			case "s":
				decision.Approved = append(decision.Approved, candidates[i:]...)
				i = len(candidates)
			case "q", "quit":
				return decision, ErrAborted
			default:
				fmt.Fprintln(s.out, "unrecognized choice")
				continue
			}
			break
		}
	}
	fmt.Fprintf(s.out, "\nApproved %d of %d candidate(s).\n", len(decision.Approved), len(candidates))
	return decision, nil
}

// ConfirmReuse asks whether a previously approved voice set should be used
// again. Empty input accepts the default of reusing it.
func (s *Session) ConfirmReuse(ctx context.Context, meta voicesample.Metadata) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(s.out, "Found approved voice %q with %d sample(s) from %s. Reuse it? [Y/n]: ",
		meta.VoiceName, len(meta.Samples), meta.CreatedAt.Format("2006-01-02"))
	answer, err := s.readAnswer()
	if err != nil {
		return false, fmt.Errorf("review input: %w", err)
	}
	switch answer {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (s *Session) readAnswer() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

func (s *Session) play(ctx context.Context, path string) {
	if s.player == nil {
		fmt.Fprintln(s.out, "no audio player available on this system")
		return
	}
	if err := s.player.Play(ctx, path); err != nil {
		s.logger.Warn("playback failed", logging.Error(err))
		fmt.Fprintf(s.out, "playback failed: %v\n", err)
	}
}
