package voicesample

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"revoice/internal/logging"
	"revoice/internal/media"
)

const testRate = 16000

// signal builds mono PCM from (seconds, amplitude) runs.
func signal(runs ...[2]float64) []int {
	var data []int
	for _, run := range runs {
		n := int(run[0] * testRate)
		amp := int(run[1])
		for i := 0; i < n; i++ {
			data = append(data, amp)
		}
	}
	return data
}

func TestDetectSpeechSpansBasic(t *testing.T) {
	// 4 s of speech, 2 s silence, 1 s of speech (below the 3 s minimum).
	data := signal([2]float64{4, 5000}, [2]float64{2, 0}, [2]float64{1, 5000})
	spans := DetectSpeechSpans(data, testRate, Tier{MinSeconds: 3, MaxSeconds: 10, ThresholdDB: -40})
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if sec := spans[0].Seconds(testRate); sec < 3.9 || sec > 4.2 {
		t.Fatalf("unexpected span length %.2f s", sec)
	}
}

func TestDetectSpeechSpansJoinsMicroPauses(t *testing.T) {
	// Two 2 s bursts separated by a 0.3 s pause merge into one span.
	data := signal([2]float64{2, 5000}, [2]float64{0.3, 0}, [2]float64{2, 5000})
	spans := DetectSpeechSpans(data, testRate, Tier{MinSeconds: 3, MaxSeconds: 10, ThresholdDB: -40})
	if len(spans) != 1 {
		t.Fatalf("expected merged span, got %d spans", len(spans))
	}
	if sec := spans[0].Seconds(testRate); sec < 4.2 {
		t.Fatalf("merged span too short: %.2f s", sec)
	}
}

func TestDetectSpeechSpansTruncatesLongSpan(t *testing.T) {
	data := signal([2]float64{15, 5000})
	spans := DetectSpeechSpans(data, testRate, Tier{MinSeconds: 3, MaxSeconds: 10, ThresholdDB: -40})
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if sec := spans[0].Seconds(testRate); sec != 10 {
		t.Fatalf("expected truncation to 10 s, got %.2f s", sec)
	}
}

func TestDetectSpeechSpansSilentInput(t *testing.T) {
	data := signal([2]float64{5, 0})
	if spans := DetectSpeechSpans(data, testRate, Tier{MinSeconds: 3, MaxSeconds: 10, ThresholdDB: -40}); len(spans) != 0 {
		t.Fatalf("expected no spans in silence, got %d", len(spans))
	}
}

func stubbedExtractorRunner(t *testing.T, data []int) *media.Runner {
	t.Helper()
	runner := media.NewRunner("ffmpeg", "ffprobe", logging.NewNop())
	runner.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return writeMono(args[len(args)-1], data, testRate)
	})
	return runner
}

func TestExtractWritesCandidates(t *testing.T) {
	data := signal([2]float64{5, 5000}, [2]float64{2, 0}, [2]float64{4, 5000})
	e := NewExtractor(stubbedExtractorRunner(t, data), 3, 10, -40, 5, logging.NewNop())

	outDir := filepath.Join(t.TempDir(), "extracted")
	paths, err := e.Extract(context.Background(), "/videos/input.mp4", outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(paths), paths)
	}
	for i, path := range paths {
		if filepath.Base(path) != filepath.Base(filepath.Join(outDir, "sample_"+string(rune('1'+i))+".wav")) {
			t.Fatalf("unexpected candidate name: %s", path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("candidate missing: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "source_audio.wav")); err == nil {
		t.Fatal("intermediate audio should be removed")
	}
}

func TestExtractFallsBackToLooserTier(t *testing.T) {
	// Amplitude around -42 dBFS: invisible at -40, detected at -45.
	data := signal([2]float64{5, 260}, [2]float64{2, 0})
	e := NewExtractor(stubbedExtractorRunner(t, data), 3, 10, -40, 5, logging.NewNop())

	paths, err := e.Extract(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "extracted"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 candidate from fallback tier, got %d", len(paths))
	}
}

func TestExtractCapsCandidateCount(t *testing.T) {
	runs := make([][2]float64, 0, 8)
	for i := 0; i < 4; i++ {
		runs = append(runs, [2]float64{4, 5000}, [2]float64{1, 0})
	}
	e := NewExtractor(stubbedExtractorRunner(t, signal(runs...)), 3, 10, -40, 2, logging.NewNop())

	paths, err := e.Extract(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "extracted"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected candidate cap of 2, got %d", len(paths))
	}
}

func TestExtractNoSpeechAnywhere(t *testing.T) {
	e := NewExtractor(stubbedExtractorRunner(t, signal([2]float64{5, 0})), 3, 10, -40, 5, logging.NewNop())
	_, err := e.Extract(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "extracted"))
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates when every tier comes up empty, got %v", err)
	}
}
