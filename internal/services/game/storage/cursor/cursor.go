// Package cursor implements opaque page tokens for keyset pagination.
//
// A token encodes the boundary sequence, the paging direction, and hashes
// of the filter and order clauses that produced the page. Decoding
// validates the hashes so a token minted for one query cannot silently
// page through another.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// Direction indicates which way a page walks the sequence.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// Cursor is the decoded form of a page token.
type Cursor struct {
	Seq int64     `json:"seq"`
	Dir Direction `json:"dir"`
	// Reverse marks a previous-page cursor: rows are fetched in the
	// opposite order and flipped before returning.
	Reverse    bool   `json:"rev,omitempty"`
	FilterHash string `json:"fh,omitempty"`
	OrderHash  string `json:"oh,omitempty"`
}

// Encode serializes a cursor into an opaque page token.
func Encode(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Decode parses and validates a page token.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("page token is empty")
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal page token: %w", err)
	}
	if c.Dir != DirectionForward && c.Dir != DirectionBackward {
		return Cursor{}, fmt.Errorf("invalid cursor direction %q", c.Dir)
	}
	return c, nil
}

// HashFilter hashes a filter or order clause for token validation. Empty
// clauses hash to the empty string so unfiltered queries stay compact.
func HashFilter(clause string) string {
	if clause == "" {
		return ""
	}
	h := fnv.New64a()
	h.Write([]byte(clause))
	return fmt.Sprintf("%016x", h.Sum64())
}

// NewForwardCursor builds a first-page forward cursor for a query.
func NewForwardCursor(seq int64, filter, order string) Cursor {
	return Cursor{
		Seq:        seq,
		Dir:        DirectionForward,
		FilterHash: HashFilter(filter),
		OrderHash:  HashFilter(order),
	}
}

// NewNextPageCursor builds the token for the page after the given boundary.
func NewNextPageCursor(seq int64, descending bool, filter, order string) Cursor {
	dir := DirectionForward
	if descending {
		dir = DirectionBackward
	}
	return Cursor{
		Seq:        seq,
		Dir:        dir,
		FilterHash: HashFilter(filter),
		OrderHash:  HashFilter(order),
	}
}

// NewPrevPageCursor builds the token for the page before the given boundary.
func NewPrevPageCursor(seq int64, descending bool, filter, order string) Cursor {
	dir := DirectionBackward
	if descending {
		dir = DirectionForward
	}
	return Cursor{
		Seq:        seq,
		Dir:        dir,
		Reverse:    true,
		FilterHash: HashFilter(filter),
		OrderHash:  HashFilter(order),
	}
}

// ValidateFilterHash checks a decoded cursor against the query's filter.
func ValidateFilterHash(c Cursor, filter string) error {
	if c.FilterHash != HashFilter(filter) {
		return fmt.Errorf("page token does not match the request filter")
	}
	return nil
}

// ValidateOrderHash checks a decoded cursor against the query's ordering.
func ValidateOrderHash(c Cursor, order string) error {
	if c.OrderHash != HashFilter(order) {
		return fmt.Errorf("page token does not match the request ordering")
	}
	return nil
}
