// Package chunker splits oversized answers into transport-sized segments.
// The split is a plain length cut: it does not respect markdown tables, code
// fences or paragraph boundaries, which is an accepted limitation of the
// delivery surface.
package chunker

// Split cuts text into segments of at most maxLen runes. Segments
// concatenate back to the exact input; empty input yields an empty slice.
// Cutting on rune boundaries keeps a multi-byte character from being torn
// across two messages.
func Split(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if maxLen < 1 {
		maxLen = 1
	}

	runes := []rune(text)
	segments := make([]string, 0, (len(runes)+maxLen-1)/maxLen)
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[start:end]))
	}
	return segments
}
