package video

import "fmt"

// Display/typing duration bounds, in seconds. Legibility wins over hitting
// the target duration exactly: a 2-message story runs short and a
// 50-message story runs long, and that is intended.
const (
	minDisplaySec = 1.0
	maxDisplaySec = 3.0
	minTypingSec  = 0.4
	maxTypingSec  = 1.0
)

// Durations computes the per-message display duration and the typing
// indicator duration for a conversation of numMessages messages, aiming at
// the middle of the [minSec, maxSec] target range. Both results are clamped
// so every message stays readable regardless of message count.
func Durations(numMessages int, minSec, maxSec float64) (display, typing float64, err error) {
	if numMessages <= 0 {
		return 0, 0, fmt.Errorf("timing: story has no messages")
	}

	target := (minSec + maxSec) / 2
	perMessage := target / float64(numMessages)

	// 70% display, 30% typing.
	display = clamp(perMessage*0.7, minDisplaySec, maxDisplaySec)
	typing = clamp(perMessage*0.3, minTypingSec, maxTypingSec)

	return display, typing, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
