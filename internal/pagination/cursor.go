// Package pagination implements opaque cursors over id-ordered listings.
package pagination

import (
	"encoding/base64"
	"errors"
	"sort"
	"strings"
)

const cursorPrefix = "after|"

// Cursor represents a decoded pagination cursor
type Cursor struct {
	LastID string
}

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"hasMore"`
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

// EncodeCursor creates a base64-encoded cursor pointing after lastID
func EncodeCursor(lastID string) string {
	if lastID == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + lastID))
}

// DecodeCursor decodes a cursor. An empty cursor decodes to nil.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	raw := string(decoded)
	if !strings.HasPrefix(raw, cursorPrefix) || len(raw) == len(cursorPrefix) {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: strings.TrimPrefix(raw, cursorPrefix)}, nil
}

// Paginate returns the page of items after cursor. items must be sorted by
// getID ascending.
func Paginate[T any](items []T, cursor *Cursor, limit int, getID func(T) string) PageResult[T] {
	start := 0
	if cursor != nil {
		start = sort.Search(len(items), func(i int) bool {
			return getID(items[i]) > cursor.LastID
		})
	}

	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	page := PageResult[T]{Items: items[start:end]}
	if end < len(items) && end > start {
		page.HasMore = true
		page.Cursor = EncodeCursor(getID(items[end-1]))
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}
