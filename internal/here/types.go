package here

import (
	"encoding/json"
	"strings"
)

// BrowseResponse is the envelope returned by the browse endpoint.
type BrowseResponse struct {
	Results SearchResults `json:"results"`
}

// SearchResults holds one page of items and a link to the next page.
type SearchResults struct {
	Items []json.RawMessage `json:"items"`
	Next  string            `json:"next,omitempty"`
}

// Place is a typed view of a browse item. The raw item is what gets stored;
// this view is used for exports and the browse API.
type Place struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Position      []float64 `json:"position"` // [lat, lng]
	Vicinity      string    `json:"vicinity,omitempty"`
	Distance      float64   `json:"distance,omitempty"`
	AverageRating float64   `json:"averageRating,omitempty"`
	Category      Category  `json:"category"`
	Href          string    `json:"href,omitempty"`
	Type          string    `json:"type,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	Tags          []Tag     `json:"tags,omitempty"`

	// Scraped is the request time in unix seconds, added on insert.
	Scraped *float64 `json:"scraped"`
}

// Category is the primary category of a place.
type Category struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Href   string `json:"href,omitempty"`
	Type   string `json:"type,omitempty"`
	System string `json:"system,omitempty"`
}

// Tag is a secondary classification attached to a place.
type Tag struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Group string `json:"group"`
}

// Lat returns the latitude, or 0 if the position is missing.
func (p Place) Lat() float64 {
	if len(p.Position) < 2 {
		return 0
	}
	return p.Position[0]
}

// Lng returns the longitude, or 0 if the position is missing.
func (p Place) Lng() float64 {
	if len(p.Position) < 2 {
		return 0
	}
	return p.Position[1]
}

// HasPosition reports whether the item carried coordinates.
func (p Place) HasPosition() bool {
	return len(p.Position) >= 2
}

// PlainVicinity replaces the HTML line breaks the API embeds in vicinity.
func (p Place) PlainVicinity() string {
	v := strings.ReplaceAll(p.Vicinity, "<br/>", ", ")
	return strings.ReplaceAll(v, "<br>", ", ")
}

// ItemID extracts the "id" field from a raw browse item.
func ItemID(item json.RawMessage) (string, error) {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(item, &head); err != nil {
		return "", err
	}
	return head.ID, nil
}
