package workspace

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"revoice/internal/logging"
)

func openStore(t *testing.T, root string) *Store {
	t.Helper()
	s, err := Open(root, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSegmentKeyRoundTrip(t *testing.T) {
	key := SegmentKey(300, 600)
	if key != "segment_300_600" {
		t.Fatalf("unexpected key: %q", key)
	}
	start, end, err := ParseSegmentKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if start != 300 || end != 600 {
		t.Fatalf("unexpected span: %d-%d", start, end)
	}
}

func TestParseSegmentKeyTruncatesFloats(t *testing.T) {
	start, end, err := ParseSegmentKey("segment_600_700.5")
	if err != nil {
		t.Fatal(err)
	}
	if start != 600 || end != 700 {
		t.Fatalf("unexpected span: %d-%d", start, end)
	}
}

func TestParseSegmentKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "segment_1", "chunk_1_2", "segment_a_b", "segment_1_2_3"} {
		if _, _, err := ParseSegmentKey(key); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
}

func TestLedgerPersistAndReload(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	s := openStore(t, root)

	want := map[string]SegmentRecord{
		"segment_0_300":   {Output: "/clips/a.mp4", Completed: true},
		"segment_300_600": {Output: "/clips/b.mp4", Completed: true},
	}
	for key, record := range want {
		if err := s.SetRecord(key, record); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded := openStore(t, root)
	if got := reloaded.Ledger(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ledger mismatch after reload:\n got %+v\nwant %+v", got, want)
	}
}

func TestSaveIsAtomic(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	s := openStore(t, root)
	if err := s.SetRecord("segment_0_300", SegmentRecord{Output: "/x", Completed: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, ProgressFile+".tmp")); !os.IsNotExist(err) {
		t.Fatal("temp ledger file left behind")
	}
}

// seedSegment writes the clip and both subtitle files that make a ledger
// entry valid.
func seedSegment(t *testing.T, s *Store, start, end int) SegmentRecord {
	t.Helper()
	clip := s.SegmentClipPath(start, end)
	for _, path := range []string{
		clip,
		s.SubtitlePath("ru", start, end),
		s.SubtitlePath("es", start, end),
	} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return SegmentRecord{Output: clip, Completed: true}
}

func TestValidateDropsBrokenEntriesOnly(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	s := openStore(t, root)

	good := seedSegment(t, s, 0, 300)
	if err := s.SetRecord(SegmentKey(0, 300), good); err != nil {
		t.Fatal(err)
	}

	// Entry whose clip is missing.
	if err := s.SetRecord(SegmentKey(300, 600), SegmentRecord{Output: filepath.Join(root, "gone.mp4"), Completed: true}); err != nil {
		t.Fatal(err)
	}
	// Entry whose subtitles are missing.
	clipOnly := s.SegmentClipPath(600, 700)
	if err := os.WriteFile(clipOnly, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRecord(SegmentKey(600, 700), SegmentRecord{Output: clipOnly, Completed: true}); err != nil {
		t.Fatal(err)
	}
	// Entry with a malformed key.
	if err := s.SetRecord("segment_bogus", SegmentRecord{Output: good.Output, Completed: true}); err != nil {
		t.Fatal(err)
	}

	dropped, err := s.Validate("ru", "es")
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 3 {
		t.Fatalf("expected 3 dropped entries, got %d", dropped)
	}
	if _, ok := s.Record(SegmentKey(0, 300)); !ok {
		t.Fatal("valid entry was dropped")
	}
	if len(s.Ledger()) != 1 {
		t.Fatalf("unexpected ledger contents: %+v", s.Ledger())
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	s := openStore(t, root)

	if err := s.SetRecord(SegmentKey(0, 300), seedSegment(t, s, 0, 300)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRecord(SegmentKey(300, 600), SegmentRecord{Output: "/missing.mp4", Completed: true}); err != nil {
		t.Fatal(err)
	}

	first, err := s.Validate("ru", "es")
	if err != nil {
		t.Fatal(err)
	}
	if first != 1 {
		t.Fatalf("expected 1 dropped on first pass, got %d", first)
	}
	second, err := s.Validate("ru", "es")
	if err != nil {
		t.Fatal(err)
	}
	if second != 0 {
		t.Fatalf("second pass must drop nothing, got %d", second)
	}
}

func TestMissingLedgerYieldsEmpty(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	s := openStore(t, root)
	if len(s.Ledger()) != 0 {
		t.Fatalf("expected empty ledger, got %+v", s.Ledger())
	}
}
