package cursor

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := Cursor{
		Seq:        42,
		Dir:        DirectionForward,
		Reverse:    true,
		FilterHash: HashFilter("room-1"),
		OrderHash:  HashFilter("seq asc"),
	}

	token, err := Encode(original)
	if err != nil {
		t.Fatalf("encode cursor: %v", err)
	}

	decoded, err := Decode(token)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if decoded != original {
		t.Fatalf("cursor mismatch: %+v != %+v", decoded, original)
	}
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	for _, token := range []string{"", "not-base64@@"} {
		if _, err := Decode(token); err == nil {
			t.Fatalf("expected error for token %q", token)
		}
	}
}

func TestDecodeInvalidDirection(t *testing.T) {
	raw, err := json.Marshal(Cursor{Seq: 1, Dir: "sideways"})
	if err != nil {
		t.Fatalf("marshal cursor: %v", err)
	}
	token := base64.URLEncoding.EncodeToString(raw)

	if _, err := Decode(token); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestHashFilter(t *testing.T) {
	if HashFilter("") != "" {
		t.Fatal("expected empty hash for empty filter")
	}

	hash := HashFilter("room-1")
	if len(hash) != 16 {
		t.Fatalf("expected 16-char hash, got %d", len(hash))
	}
	if hash == HashFilter("room-2") {
		t.Fatal("expected different hashes for different filters")
	}
}

func TestValidateFilterHash(t *testing.T) {
	c := NewForwardCursor(10, "room-1", "seq asc")
	if err := ValidateFilterHash(c, "room-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateFilterHash(c, "room-2"); err == nil {
		t.Fatal("expected error for mismatched filter")
	}
}

func TestValidateOrderHash(t *testing.T) {
	c := NewForwardCursor(10, "room-1", "seq asc")
	if err := ValidateOrderHash(c, "seq asc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateOrderHash(c, "updated_at desc"); err == nil {
		t.Fatal("expected error for mismatched order")
	}
}

func TestPageCursorDirections(t *testing.T) {
	tests := []struct {
		name        string
		cursor      Cursor
		wantDir     Direction
		wantReverse bool
	}{
		{"next ascending", NewNextPageCursor(100, false, "", ""), DirectionForward, false},
		{"next descending", NewNextPageCursor(100, true, "", ""), DirectionBackward, false},
		{"prev ascending", NewPrevPageCursor(50, false, "", ""), DirectionBackward, true},
		{"prev descending", NewPrevPageCursor(50, true, "", ""), DirectionForward, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cursor.Dir != tt.wantDir {
				t.Fatalf("dir = %s, want %s", tt.cursor.Dir, tt.wantDir)
			}
			if tt.cursor.Reverse != tt.wantReverse {
				t.Fatalf("reverse = %v, want %v", tt.cursor.Reverse, tt.wantReverse)
			}
		})
	}
}

func TestFilterAndOrderHashesDiffer(t *testing.T) {
	c := NewForwardCursor(10, "room-1", "seq asc")
	if c.FilterHash == "" || c.OrderHash == "" {
		t.Fatal("expected non-empty hashes")
	}
	if c.FilterHash == c.OrderHash {
		t.Fatal("expected filter and order hashes to differ")
	}
}
