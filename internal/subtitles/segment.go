package subtitles

import (
	"sort"
	"strings"
)

// Segment is one timed utterance. Start is inclusive, End exclusive, both in
// seconds from the start of the clip the transcript was produced for.
type Segment struct {
	Start   float64
	End     float64
	Content string
}

// NewSegment trims the content and reports whether the segment is usable.
// Empty-after-trim utterances and non-positive spans are dropped by callers.
func NewSegment(start, end float64, content string) (Segment, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || end <= start {
		return Segment{}, false
	}
	return Segment{Start: start, End: end, Content: trimmed}, true
}

// Sorted returns a copy ordered by ascending start time. Producers should
// already emit sorted segments; consumers that require ordering must not
// assume it.
func Sorted(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	copy(out, segments)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// SplitSentences splits utterance text into sentence-like units on terminal
// punctuation. Timing always stays at segment granularity; the split exists
// for per-sentence synthesis logging.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?':
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
