package audio

// SFXTimestamps computes the points, in milliseconds from track start, where
// a notification stinger should be overlaid. The clock advances through the
// same typing/display cycle the composer uses: a typing beat precedes every
// message except the first, and the cue lands the instant a message becomes
// visible. With skipFirst the opening message gets no cue.
//
// The result is non-decreasing and has numMessages entries, or
// numMessages-1 when skipFirst.
func SFXTimestamps(numMessages, messageDurationMs, typingDurationMs int, skipFirst bool) []int {
	var timestamps []int
	current := 0

	for i := 0; i < numMessages; i++ {
		if i > 0 {
			current += typingDurationMs
		}
		if !(skipFirst && i == 0) {
			timestamps = append(timestamps, current)
		}
		current += messageDurationMs
	}

	return timestamps
}
