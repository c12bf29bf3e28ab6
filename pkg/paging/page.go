package paging

import (
	json "github.com/goccy/go-json"
)

// Links holds the pagination links of a page.
type Links struct {
	Next string `json:"next,omitempty"`
}

// Page is one MDS Provider API response payload: a version string, an
// optional next link, and a per-resource array of item records.
type Page struct {
	Version string                     `json:"version"`
	Links   Links                      `json:"links"`
	Data    map[string]json.RawMessage `json:"data"`
}

// Items returns the page's item records for the given resource. A missing
// data section, a missing resource key, or a non-array value all yield nil.
func (p *Page) Items(resource string) []json.RawMessage {
	raw, ok := p.Data[resource]
	if !ok {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// HasData reports whether the page carries at least one item for the
// resource. Pages failing this test terminate a walk.
func (p *Page) HasData(resource string) bool {
	return len(p.Items(resource)) > 0
}

// NextURL returns the next-link URL, or "" when the page is the last one.
func (p *Page) NextURL() string {
	return p.Links.Next
}
