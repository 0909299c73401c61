package model

// Entry is one article of a news document.
type Entry struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Summary string `json:"summary"`
}

// Document is the news feed consumed by the display session: the feed title
// followed by the summarized entries, newest first.
type Document struct {
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

// Pages returns the text shown on the panel, one page per element: the
// document title first, then every entry summary in order.
func (d *Document) Pages() []string {
	if d == nil {
		return nil
	}
	pages := make([]string, 0, 1+len(d.Entries))
	pages = append(pages, d.Title)
	for _, e := range d.Entries {
		pages = append(pages, e.Summary)
	}
	return pages
}
