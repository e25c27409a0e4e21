package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"revoice/internal/assembler"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/subtitles"
	"revoice/internal/workspace"
)

type fakeTranscriber struct {
	source []subtitles.Segment
	target []subtitles.Segment
	err    error
}

func (f *fakeTranscriber) TranscribeAndTranslate(ctx context.Context, video string, start, end float64) ([]subtitles.Segment, []subtitles.Segment, error) {
	return f.source, f.target, f.err
}

type fakeBuilder struct {
	err    error
	called int
}

func (f *fakeBuilder) Build(ctx context.Context, subs []subtitles.Segment, referenceVoice, language, outPath string) (assembler.Result, error) {
	f.called++
	if f.err != nil {
		return assembler.Result{}, f.err
	}
	if err := os.WriteFile(outPath, []byte("RIFF"), 0o644); err != nil {
		return assembler.Result{}, err
	}
	return assembler.Result{Synthesized: len(subs), Duration: 1}, nil
}

// commandLog records each ffmpeg invocation and creates its output file.
type commandLog struct {
	invocations [][]string
}

func (c *commandLog) run(ctx context.Context, name string, args ...string) error {
	c.invocations = append(c.invocations, append([]string{name}, args...))
	return os.WriteFile(args[len(args)-1], []byte("clip"), 0o644)
}

func newTestPipeline(t *testing.T, tr Transcriber, builder TrackBuilder) (*Pipeline, *workspace.Store, *commandLog) {
	t.Helper()
	store, err := workspace.Open(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	log := &commandLog{}
	runner := media.NewRunner("ffmpeg", "ffprobe", logging.NewNop())
	runner.WithCommandRunner(log.run)

	return New(store, tr, builder, runner, "ru", "es", logging.NewNop()), store, log
}

func TestProcessRendersSegment(t *testing.T) {
	source := []subtitles.Segment{{Start: 0, End: 2, Content: "привет"}}
	target := []subtitles.Segment{{Start: 0, End: 2, Content: "hola"}}
	builder := &fakeBuilder{}
	p, store, log := newTestPipeline(t, &fakeTranscriber{source: source, target: target}, builder)

	clip, err := p.Process(context.Background(), "/videos/input.mp4", 0, 300, "ref.wav")
	if err != nil {
		t.Fatal(err)
	}
	if clip != store.SegmentClipPath(0, 300) {
		t.Fatalf("unexpected clip path: %s", clip)
	}
	if _, err := os.Stat(clip); err != nil {
		t.Fatalf("clip not written: %v", err)
	}

	for _, lang := range []string{"ru", "es"} {
		subs, err := subtitles.ReadSRT(store.SubtitlePath(lang, 0, 300))
		if err != nil {
			t.Fatalf("%s subtitles: %v", lang, err)
		}
		if len(subs) != 1 {
			t.Fatalf("%s subtitles: expected 1 entry, got %d", lang, len(subs))
		}
	}

	if builder.called != 1 {
		t.Fatalf("builder called %d times", builder.called)
	}
	if _, err := os.Stat(store.SegmentAudioPath(0, 300)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("transient audio track not cleaned up")
	}
	if len(log.invocations) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(log.invocations))
	}
	if !contains(log.invocations[0], "-map") {
		t.Fatalf("expected audio replacement arguments: %v", log.invocations[0])
	}
}

func TestProcessSpeechlessSpanKeepsOriginalAudio(t *testing.T) {
	builder := &fakeBuilder{}
	p, store, log := newTestPipeline(t, &fakeTranscriber{}, builder)

	clip, err := p.Process(context.Background(), "in.mp4", 300, 600, "ref.wav")
	if err != nil {
		t.Fatal(err)
	}
	if clip != store.SegmentClipPath(300, 600) {
		t.Fatalf("unexpected clip path: %s", clip)
	}
	if builder.called != 0 {
		t.Fatal("builder must not run without utterances")
	}
	if len(log.invocations) != 1 || contains(log.invocations[0], "-map") {
		t.Fatalf("expected a plain cut, got %v", log.invocations)
	}
	// Empty transcripts are still persisted for both languages.
	for _, lang := range []string{"ru", "es"} {
		if _, err := os.Stat(store.SubtitlePath(lang, 300, 600)); err != nil {
			t.Fatalf("%s subtitles missing: %v", lang, err)
		}
	}
}

func TestProcessTranscriberFailure(t *testing.T) {
	p, _, _ := newTestPipeline(t, &fakeTranscriber{err: errors.New("engine down")}, &fakeBuilder{})
	_, err := p.Process(context.Background(), "in.mp4", 0, 300, "ref.wav")
	if err == nil || !strings.Contains(err.Error(), "segment_0_300") {
		t.Fatalf("expected keyed error, got %v", err)
	}
}

func TestProcessMergeFailureKeepsAudioTrack(t *testing.T) {
	source := []subtitles.Segment{{Start: 0, End: 2, Content: "привет"}}
	target := []subtitles.Segment{{Start: 0, End: 2, Content: "hola"}}
	p, store, _ := newTestPipeline(t, &fakeTranscriber{source: source, target: target}, &fakeBuilder{})

	runner := media.NewRunner("ffmpeg", "ffprobe", logging.NewNop())
	runner.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("muxer rejected the stream")
	})
	p.media = runner

	if _, err := p.Process(context.Background(), "in.mp4", 0, 300, "ref.wav"); err == nil {
		t.Fatal("expected merge error")
	}
	// The synthesized track must survive the failed merge so the rerun and
	// a human can inspect it.
	if _, err := os.Stat(store.SegmentAudioPath(0, 300)); err != nil {
		t.Fatalf("synthesized track removed on merge failure: %v", err)
	}
}

func TestProcessBuilderFailure(t *testing.T) {
	source := []subtitles.Segment{{Start: 0, End: 2, Content: "привет"}}
	target := []subtitles.Segment{{Start: 0, End: 2, Content: "hola"}}
	p, store, _ := newTestPipeline(t, &fakeTranscriber{source: source, target: target}, &fakeBuilder{err: errors.New("all utterances failed")})

	if _, err := p.Process(context.Background(), "in.mp4", 0, 300, "ref.wav"); err == nil {
		t.Fatal("expected builder error")
	}
	// Subtitles written before synthesis survive the failure.
	if _, err := os.Stat(store.SubtitlePath("ru", 0, 300)); err != nil {
		t.Fatalf("source subtitles missing after failure: %v", err)
	}
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
