package assembler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"revoice/internal/logging"
	"revoice/internal/subtitles"
)

// fakeSynth writes a fixed-length clip per call, or fails for listed texts.
type fakeSynth struct {
	rate     int
	channels int
	frames   int
	fail     map[string]bool
	calls    int
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, referenceVoice, language, outPath string) error {
	f.calls++
	if f.fail[text] {
		return errors.New("engine refused")
	}
	return writeTestWAV(outPath, f.rate, f.channels, f.frames)
}

func writeTestWAV(path string, rate, channels, frames int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]int, frames*channels)
	for i := range data {
		data[i] = 1000
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return err
	}
	return enc.Close()
}

func decodeSamples(t *testing.T, path string) []int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Data
}

func newTestBuilder(t *testing.T, synth *fakeSynth, maxGap float64) *Builder {
	t.Helper()
	return NewBuilder(synth, maxGap, t.TempDir(), logging.NewNop())
}

func TestBuildCapsGapSilence(t *testing.T) {
	synth := &fakeSynth{rate: 16000, channels: 1, frames: 1600}
	b := newTestBuilder(t, synth, 1.0)
	out := filepath.Join(t.TempDir(), "track.wav")

	subs := []subtitles.Segment{
		{Start: 0, End: 2, Content: "uno"},
		{Start: 7, End: 9, Content: "dos"}, // 5 s gap, capped to 1 s
	}
	result, err := b.Build(context.Background(), subs, "ref.wav", "es", out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Synthesized != 2 || len(result.Skipped) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	samples := decodeSamples(t, out)
	want := 1600 + 16000 + 1600
	if len(samples) != want {
		t.Fatalf("expected %d samples, got %d", want, len(samples))
	}
	// The capped gap must be rendered as digital silence.
	for i := 1600; i < 1600+16000; i++ {
		if samples[i] != 0 {
			t.Fatalf("sample %d in gap is %d, want 0", i, samples[i])
		}
	}
}

func TestBuildKeepsShortGap(t *testing.T) {
	synth := &fakeSynth{rate: 16000, channels: 1, frames: 1600}
	b := newTestBuilder(t, synth, 1.0)
	out := filepath.Join(t.TempDir(), "track.wav")

	subs := []subtitles.Segment{
		{Start: 0, End: 2, Content: "uno"},
		{Start: 2.2, End: 3, Content: "dos"}, // 0.2 s gap, under the cap
	}
	if _, err := b.Build(context.Background(), subs, "ref.wav", "es", out); err != nil {
		t.Fatal(err)
	}
	samples := decodeSamples(t, out)
	want := 1600 + 3200 + 1600
	if len(samples) != want {
		t.Fatalf("expected %d samples, got %d", want, len(samples))
	}
}

func TestBuildNoLeadingSilence(t *testing.T) {
	synth := &fakeSynth{rate: 16000, channels: 1, frames: 1600}
	b := newTestBuilder(t, synth, 1.0)
	out := filepath.Join(t.TempDir(), "track.wav")

	subs := []subtitles.Segment{{Start: 10, End: 12, Content: "solo"}}
	if _, err := b.Build(context.Background(), subs, "ref.wav", "es", out); err != nil {
		t.Fatal(err)
	}
	if got := len(decodeSamples(t, out)); got != 1600 {
		t.Fatalf("expected 1600 samples, got %d", got)
	}
}

func TestBuildFailedUtteranceDoesNotAnchorSilence(t *testing.T) {
	synth := &fakeSynth{
		rate: 16000, channels: 1, frames: 1600,
		fail: map[string]bool{"malo": true},
	}
	b := newTestBuilder(t, synth, 1.0)
	out := filepath.Join(t.TempDir(), "track.wav")

	subs := []subtitles.Segment{
		{Start: 0, End: 2, Content: "malo"},
		{Start: 5, End: 7, Content: "bueno"},
	}
	result, err := b.Build(context.Background(), subs, "ref.wav", "es", out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Synthesized != 1 || len(result.Skipped) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Skipped[0].Index != 0 {
		t.Fatalf("wrong skipped index: %d", result.Skipped[0].Index)
	}
	// No utterance was appended yet, so no silence precedes "bueno".
	if got := len(decodeSamples(t, out)); got != 1600 {
		t.Fatalf("expected 1600 samples, got %d", got)
	}
}

func TestBuildAllFailedLeavesNoFile(t *testing.T) {
	synth := &fakeSynth{
		rate: 16000, channels: 1, frames: 1600,
		fail: map[string]bool{"uno": true, "dos": true},
	}
	b := newTestBuilder(t, synth, 1.0)
	out := filepath.Join(t.TempDir(), "track.wav")

	subs := []subtitles.Segment{
		{Start: 0, End: 2, Content: "uno"},
		{Start: 3, End: 4, Content: "dos"},
	}
	if _, err := b.Build(context.Background(), subs, "ref.wav", "es", out); err == nil {
		t.Fatal("expected error when every utterance fails")
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("track file must not exist, stat err = %v", err)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	b := newTestBuilder(t, &fakeSynth{rate: 16000, channels: 1, frames: 16}, 1.0)
	if _, err := b.Build(context.Background(), nil, "ref.wav", "es", "out.wav"); err == nil {
		t.Fatal("expected error for empty subtitle list")
	}
}

func TestBuildSplitsSentences(t *testing.T) {
	synth := &fakeSynth{rate: 16000, channels: 1, frames: 800}
	b := newTestBuilder(t, synth, 1.0)
	out := filepath.Join(t.TempDir(), "track.wav")

	subs := []subtitles.Segment{{Start: 0, End: 4, Content: "Hola. Qué tal?"}}
	if _, err := b.Build(context.Background(), subs, "ref.wav", "es", out); err != nil {
		t.Fatal(err)
	}
	if synth.calls != 2 {
		t.Fatalf("expected one synthesis call per sentence, got %d", synth.calls)
	}
	if got := len(decodeSamples(t, out)); got != 1600 {
		t.Fatalf("expected 1600 samples, got %d", got)
	}
}
