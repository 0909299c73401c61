package news

import (
	"fmt"
	"strings"

	"epdnews/internal/model"
)

// Markdown formats doc as a Markdown digest: the feed title as a heading,
// then every entry as a linked subheading followed by its summary.
func Markdown(doc *model.Document) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	for _, e := range doc.Entries {
		fmt.Fprintf(&b, "## [%s](%s)\n\n", e.Title, e.Link)
		fmt.Fprintf(&b, "%s\n\n", e.Summary)
	}
	return b.String()
}
