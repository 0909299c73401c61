// Package layout wraps text into a fixed character grid for the panel.
package layout

import (
	"strings"
	"unicode/utf8"
)

// Grid defaults for the 2.13" panel with an 8 px wide font.
const (
	DefaultMaxWidth  = 32
	DefaultMaxHeight = 12
)

// Wrap greedily packs the words of text into lines shorter than maxWidth-1
// characters, keeps at most maxHeight lines, centers every line horizontally
// and prepends blank lines to center the block vertically.
//
// Input newlines start new lines; a blank input line yields a blank output
// line. Words that cannot fit on a line of their own are split. Lines beyond
// maxHeight are dropped. Lengths count runes.
func Wrap(text string, maxWidth, maxHeight int) []string {
	if text == "" || maxWidth <= 0 || maxHeight <= 0 {
		return nil
	}

	var lines []string
	record := func(l string) {
		if len(lines) < maxHeight {
			lines = append(lines, l)
		}
	}

	for _, in := range splitLines(text) {
		var cur strings.Builder
		curLen := 0
		for _, word := range splitLong(strings.Fields(in), maxWidth-2) {
			n := utf8.RuneCountInString(word)
			sep := 0
			if curLen > 0 {
				sep = 1
			}
			if curLen > 0 && curLen+sep+n >= maxWidth-1 {
				record(cur.String())
				cur.Reset()
				curLen, sep = 0, 0
			}
			if sep > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(word)
			curLen += sep + n
		}
		record(cur.String())
	}

	for i, l := range lines {
		if pad := (maxWidth - utf8.RuneCountInString(l)) / 2; pad > 0 {
			lines[i] = strings.Repeat(" ", pad) + l
		}
	}

	if top := (maxHeight - len(lines) - 1) / 2; top > 0 {
		lines = append(make([]string, top), lines...)
	}
	return lines
}

// splitLines splits on newlines, ignoring a single trailing one.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// splitLong cuts words longer than size runes into size-rune chunks.
func splitLong(words []string, size int) []string {
	if size < 1 {
		size = 1
	}
	out := words[:0:0]
	for _, w := range words {
		r := []rune(w)
		for len(r) > size {
			out = append(out, string(r[:size]))
			r = r[size:]
		}
		out = append(out, string(r))
	}
	return out
}
