package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is a trip as stored: an arbitrary JSON object. Only the fields
// read by the summary (see tripShape) have a fixed meaning.
type Document = map[string]any

// Comment is an annotation left on a trip.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`

	// Dismissed comments are kept but no longer count as active.
	Dismissed bool `json:"dismissed,omitempty"`
}

// hasActive reports whether any comment is not dismissed.
func hasActive(comments []Comment) bool {
	for _, c := range comments {
		if !c.Dismissed {
			return true
		}
	}
	return false
}

// tripShape is the part of a trip document the summary is derived from.
// Everything else in the document is ignored.
type tripShape struct {
	Meta    tripMeta  `json:"meta"`
	Days    []tripDay `json:"days"`
	Lodging []lodging `json:"lodging"`
}

type tripMeta struct {
	Title       string `json:"title"`
	Destination string `json:"destination"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Travelers   int    `json:"travelers"`
}

type tripDay struct {
	Date  string     `json:"date"`
	Items []tripItem `json:"items"`
}

type tripItem struct {
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Cost     float64 `json:"cost"`
	Status   string  `json:"status"`
}

type lodging struct {
	Name     string  `json:"name"`
	CheckIn  string  `json:"checkIn"`
	CheckOut string  `json:"checkOut"`
	Cost     float64 `json:"cost"`
	Status   string  `json:"status"`
}

// decodeShape extracts the summary fields from a raw trip document.
func decodeShape(raw []byte) (tripShape, error) {
	var shape tripShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return tripShape{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return shape, nil
}

// decodeDocument parses a raw trip into a Document.
func decodeDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidDocument)
	}
	return doc, nil
}
