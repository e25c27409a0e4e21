package dubbing

import "math"

// Window is one half-open [Start, End) span of the input video, in seconds.
type Window struct {
	Start float64
	End   float64
}

// Seconds reports the window length.
func (w Window) Seconds() float64 { return w.End - w.Start }

// Partition slices a video of the given duration into consecutive windows
// of at most window seconds. Windows are contiguous and cover the full
// duration; the last window absorbs the remainder. Start offsets are
// computed by multiplication so long videos accumulate no float drift.
func Partition(duration, window float64) []Window {
	if duration <= 0 || window <= 0 {
		return nil
	}
	var windows []Window
	for i := 0; ; i++ {
		start := float64(i) * window
		if start >= duration {
			break
		}
		windows = append(windows, Window{Start: start, End: math.Min(start+window, duration)})
	}
	return windows
}
