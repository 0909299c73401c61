// Package news fetches, validates and trims the summarized news document
// shown on the panel.
package news

import (
	"encoding/json"
	"errors"
	"fmt"

	"epdnews/internal/model"
)

// ErrMalformedDocument is returned when the payload is not a JSON news
// document or lacks a required field.
var ErrMalformedDocument = errors.New("news: malformed document")

// wire mirrors model.Document with pointers so missing fields can be told
// apart from empty ones.
type wireEntry struct {
	Title   *string `json:"title"`
	Link    *string `json:"link"`
	Summary *string `json:"summary"`
}

type wireDocument struct {
	Title   *string      `json:"title"`
	Entries *[]wireEntry `json:"entries"`
}

// Parse decodes a news document. The title and entries fields are required,
// as are title, link and summary on every entry. Nothing is returned for a
// partially valid document.
func Parse(body []byte) (*model.Document, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedDocument)
	}

	var w wireDocument
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if w.Title == nil {
		return nil, fmt.Errorf("%w: missing title", ErrMalformedDocument)
	}
	if w.Entries == nil {
		return nil, fmt.Errorf("%w: missing entries", ErrMalformedDocument)
	}

	doc := &model.Document{
		Title:   *w.Title,
		Entries: make([]model.Entry, 0, len(*w.Entries)),
	}
	for i, e := range *w.Entries {
		switch {
		case e.Title == nil:
			return nil, fmt.Errorf("%w: entry %d: missing title", ErrMalformedDocument, i)
		case e.Link == nil:
			return nil, fmt.Errorf("%w: entry %d: missing link", ErrMalformedDocument, i)
		case e.Summary == nil:
			return nil, fmt.Errorf("%w: entry %d: missing summary", ErrMalformedDocument, i)
		}
		doc.Entries = append(doc.Entries, model.Entry{
			Title:   *e.Title,
			Link:    *e.Link,
			Summary: *e.Summary,
		})
	}
	return doc, nil
}
