package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("expected default %d, got %d", DefaultLimit, got)
	}
	if got := NormalizeLimit(-5); got != DefaultLimit {
		t.Fatalf("expected default for negative, got %d", got)
	}
	if got := NormalizeLimit(500); got != MaxLimit {
		t.Fatalf("expected cap %d, got %d", MaxLimit, got)
	}
	if got := NormalizeLimit(7); got != 7 {
		t.Fatalf("expected passthrough 7, got %d", got)
	}
	if got := LimitWithBuffer(7); got != 8 {
		t.Fatalf("expected buffered 8, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC),
		ID:        uuid.New(),
	}

	parsed, err := ParseCursor(EncodeCursor(original))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed == nil {
		t.Fatalf("expected cursor, got nil")
	}
	if !parsed.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("timestamp mismatch: %s vs %s", parsed.CreatedAt, original.CreatedAt)
	}
	if parsed.ID != original.ID {
		t.Fatalf("id mismatch: %s vs %s", parsed.ID, original.ID)
	}
}

func TestParseCursorEmptyMeansFirstPage(t *testing.T) {
	parsed, err := ParseCursor("   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != nil {
		t.Fatalf("expected nil cursor for blank input")
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, value := range []string{"!!!", "bm8tcGlwZQ", "MjAyNnxub3QtYS11dWlk"} {
		if _, err := ParseCursor(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}
}
