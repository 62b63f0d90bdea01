package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		wantSegs int
	}{
		{name: "empty input", text: "", maxLen: 10, wantSegs: 0},
		{name: "fits in one segment", text: "short answer", maxLen: 100, wantSegs: 1},
		{name: "exact boundary", text: "abcdef", maxLen: 3, wantSegs: 2},
		{name: "one over boundary", text: "abcdefg", maxLen: 3, wantSegs: 3},
		{name: "single rune segments", text: "abc", maxLen: 1, wantSegs: 3},
		{name: "multibyte runes", text: "ñandú citó el artículo 3º", maxLen: 4, wantSegs: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Split(tt.text, tt.maxLen)

			if len(segs) != tt.wantSegs {
				t.Fatalf("segment count = %d, want %d", len(segs), tt.wantSegs)
			}
			if got := strings.Join(segs, ""); got != tt.text {
				t.Errorf("round-trip = %q, want %q", got, tt.text)
			}
			for i, seg := range segs {
				if n := utf8.RuneCountInString(seg); n > tt.maxLen {
					t.Errorf("segment %d has %d runes, max %d", i, n, tt.maxLen)
				}
				if !utf8.ValidString(seg) {
					t.Errorf("segment %d is not valid UTF-8", i)
				}
			}
		})
	}
}

func TestSplitLongText(t *testing.T) {
	text := strings.Repeat("la ley dispone que ", 500)
	segs := Split(text, 4096)

	if got := strings.Join(segs, ""); got != text {
		t.Fatal("long text round-trip mismatch")
	}
	for i, seg := range segs {
		if utf8.RuneCountInString(seg) > 4096 {
			t.Errorf("segment %d exceeds transport limit", i)
		}
	}
}

func TestSplitDegenerateMaxLen(t *testing.T) {
	// maxLen below 1 is clamped rather than looping forever
	segs := Split("ab", 0)
	if strings.Join(segs, "") != "ab" {
		t.Errorf("round-trip with clamped maxLen = %q, want %q", strings.Join(segs, ""), "ab")
	}
}
