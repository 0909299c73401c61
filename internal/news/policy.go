package news

import (
	"strings"
	"unicode/utf8"

	"epdnews/internal/model"
)

// Display budget for a document.
const (
	// MaxEntries is the number of most recent entries kept.
	MaxEntries = 10
	// MaxSummaryLen is the longest summary, in characters, shown on a page.
	MaxSummaryLen = 240
)

// NormalizeSummary collapses double spaces, spaces before newlines and runs
// of three newlines, then trims surrounding whitespace.
func NormalizeSummary(s string) string {
	s = strings.ReplaceAll(s, "  ", " ")
	s = strings.ReplaceAll(s, " \n", "\n")
	s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	return strings.TrimSpace(s)
}

// TrimSummary drops whole trailing sentences (separated by ". ") until s is
// at most max characters. A single sentence that is still too long is
// returned as is.
func TrimSummary(s string, max int) string {
	for {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) <= max {
			return s
		}
		sentences := strings.Split(s, ". ")
		sentences = sentences[:len(sentences)-1]
		if len(sentences) == 0 {
			return s
		}
		s = strings.Join(sentences, ". ") + "."
	}
}

// Apply enforces MaxEntries and normalizes and trims every summary in place.
func Apply(doc *model.Document) *model.Document {
	if doc == nil {
		return nil
	}
	if len(doc.Entries) > MaxEntries {
		doc.Entries = doc.Entries[:MaxEntries]
	}
	for i := range doc.Entries {
		doc.Entries[i].Summary = TrimSummary(NormalizeSummary(doc.Entries[i].Summary), MaxSummaryLen)
	}
	return doc
}
