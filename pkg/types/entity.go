package types

import (
	"strconv"
	"time"
)

// Metadata is the key/value attribute set of a provider entity. A key can
// carry several values.
type Metadata map[string][]string

// FirstValue returns the first value stored under key.
func (m Metadata) FirstValue(key string) (string, bool) {
	vals := m[key]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Values returns every value stored under key.
func (m Metadata) Values(key string) []string {
	return m[key]
}

// FirstTime parses the first value under key as an RFC 3339 timestamp.
func (m Metadata) FirstTime(key string) (time.Time, bool) {
	v, ok := m.FirstValue(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FirstInt parses the first value under key as an integer.
func (m Metadata) FirstInt(key string) (int, bool) {
	v, ok := m.FirstValue(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Entity is a named provider object (series, release, region key, ...).
type Entity struct {
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	IsError      bool     `json:"is_error"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Metadata     Metadata `json:"metadata"`
}

// SearchResult is the outcome of a provider search.
type SearchResult struct {
	Entities  []Entity `json:"entities"`
	Truncated bool     `json:"truncated"`
}
