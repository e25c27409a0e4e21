package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/subtitles"
)

type echoTranslator struct {
	prefix string
	calls  int
}

func (e *echoTranslator) Translate(ctx context.Context, text string) string {
	e.calls++
	return e.prefix + text
}

func verboseJSONServer(t *testing.T, segments []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"task":     "transcribe",
			"language": "russian",
			"duration": 10.0,
			"text":     "",
			"segments": segments,
		})
	}))
}

func stubbedRunner(t *testing.T) *media.Runner {
	t.Helper()
	runner := media.NewRunner("ffmpeg", "ffprobe", logging.NewNop())
	runner.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		// The extraction destination is the trailing argument.
		dest := args[len(args)-1]
		return os.WriteFile(dest, []byte("RIFF"), 0o644)
	})
	return runner
}

func TestTranscribeAndTranslate(t *testing.T) {
	server := verboseJSONServer(t, []map[string]any{
		{"id": 0, "start": 0.0, "end": 2.5, "text": " Привет, мир."},
		{"id": 1, "start": 2.5, "end": 4.0, "text": "   "},
		{"id": 2, "start": 4.0, "end": 6.0, "text": "Как дела?"},
	})
	defer server.Close()

	scratch := t.TempDir()
	translator := &echoTranslator{prefix: "es:"}
	adapter := New(Options{
		APIKey:         "test",
		BaseURL:        server.URL + "/v1",
		Model:          "whisper-1",
		SourceLanguage: "ru",
	}, stubbedRunner(t), translator, scratch, logging.NewNop())

	source, target, err := adapter.TranscribeAndTranslate(context.Background(), "/videos/input.mp4", 0, 10)
	if err != nil {
		t.Fatal(err)
	}

	wantSource := []subtitles.Segment{
		{Start: 0, End: 2.5, Content: "Привет, мир."},
		{Start: 4, End: 6, Content: "Как дела?"},
	}
	if len(source) != len(wantSource) {
		t.Fatalf("expected %d source utterances, got %d", len(wantSource), len(source))
	}
	for i, want := range wantSource {
		if source[i] != want {
			t.Fatalf("source[%d] = %+v, want %+v", i, source[i], want)
		}
	}
	if len(target) != len(source) {
		t.Fatalf("tracks not parallel: %d vs %d", len(target), len(source))
	}
	if target[0].Content != "es:Привет, мир." {
		t.Fatalf("unexpected translation: %q", target[0].Content)
	}
	if target[0].Start != source[0].Start || target[0].End != source[0].End {
		t.Fatal("target timing must mirror source timing")
	}
	if translator.calls != 2 {
		t.Fatalf("expected 2 translation calls, got %d", translator.calls)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temporary audio not cleaned up: %v", entries)
	}
}

func TestTranscribeExtractionFailure(t *testing.T) {
	server := verboseJSONServer(t, nil)
	defer server.Close()

	runner := media.NewRunner("ffmpeg", "ffprobe", logging.NewNop())
	runner.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return os.ErrPermission
	})

	adapter := New(Options{
		APIKey:         "test",
		BaseURL:        server.URL + "/v1",
		Model:          "whisper-1",
		SourceLanguage: "ru",
	}, runner, &echoTranslator{}, t.TempDir(), logging.NewNop())

	if _, _, err := adapter.TranscribeAndTranslate(context.Background(), "in.mp4", 0, 5); err == nil {
		t.Fatal("expected extraction error")
	}
}

func TestTranscribeEngineFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := New(Options{
		APIKey:         "test",
		BaseURL:        server.URL + "/v1",
		Model:          "whisper-1",
		SourceLanguage: "ru",
	}, stubbedRunner(t), &echoTranslator{}, t.TempDir(), logging.NewNop())

	if _, _, err := adapter.TranscribeAndTranslate(context.Background(), "in.mp4", 0, 5); err == nil {
		t.Fatal("expected transcription error")
	}
}
