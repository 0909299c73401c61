package layout

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestWrap(t *testing.T) {
	blank := func(n int) []string { return make([]string, n) }

	for _, tc := range []struct {
		name      string
		text      string
		maxWidth  int
		maxHeight int
		want      []string
	}{
		{
			name:      "empty",
			text:      "",
			maxWidth:  32,
			maxHeight: 12,
			want:      nil,
		},
		{
			name:      "single word per line",
			text:      "a b c",
			maxWidth:  4,
			maxHeight: 12,
			want:      append(blank(4), " a", " b", " c"),
		},
		{
			name:      "centered",
			text:      "hello world",
			maxWidth:  32,
			maxHeight: 12,
			want:      append(blank(5), strings.Repeat(" ", 10)+"hello world"),
		},
		{
			name:      "packing",
			text:      "aa bb cc dd",
			maxWidth:  8,
			maxHeight: 2,
			want:      []string{" aa bb", " cc dd"},
		},
		{
			name:      "long word split",
			text:      "abcdefghij",
			maxWidth:  6,
			maxHeight: 12,
			want:      append(blank(4), " abcd", " efgh", "  ij"),
		},
		{
			name:      "blank input line kept",
			text:      "a\n\nb",
			maxWidth:  10,
			maxHeight: 3,
			want:      []string{"    a", "     ", "    b"},
		},
		{
			name:      "overflow dropped",
			text:      "a\nb\nc",
			maxWidth:  4,
			maxHeight: 2,
			want:      []string{" a", " b"},
		},
		{
			name:      "runes",
			text:      "héllo wörld",
			maxWidth:  12,
			maxHeight: 2,
			want:      []string{"   héllo", "   wörld"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := Wrap(tc.text, tc.maxWidth, tc.maxHeight)
			if diff := cmp.Diff(got, tc.want, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Wrap(%q) difference (-got +want):\n%s", tc.text, diff)
			}
		})
	}
}

func TestWrapLineLength(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. Pack my box with five dozen liquor jugs. " +
		"Sphinx of black quartz, judge my vow. Supercalifragilisticexpialidocious words must still fit."
	for _, width := range []int{4, 8, 16, 32} {
		for _, l := range Wrap(text, width, 100) {
			if n := utf8.RuneCountInString(strings.TrimSpace(l)); n > width-1 {
				t.Errorf("width %d: line %q has %d characters, want at most %d", width, l, n, width-1)
			}
		}
	}
}

func TestWrapMaxHeight(t *testing.T) {
	words := make([]string, 20)
	for i := range words {
		words[i] = "word"
	}
	got := Wrap(strings.Join(words, " "), 32, 3)
	if len(got) > 3 {
		t.Errorf("Wrap() returned %d lines, want at most 3: %q", len(got), got)
	}
}

func TestWrapVerticalPadding(t *testing.T) {
	for n := 1; n <= 12; n++ {
		text := strings.TrimSuffix(strings.Repeat("x\n", n), "\n")
		got := Wrap(text, 32, 12)
		top := (12 - n - 1) / 2
		if top < 0 {
			top = 0
		}
		if len(got) != n+top {
			t.Errorf("%d lines: got %d lines, want %d", n, len(got), n+top)
		}
		for i := 0; i < top; i++ {
			if got[i] != "" {
				t.Errorf("%d lines: line %d = %q, want blank", n, i, got[i])
			}
		}
	}
}
