package pagination

import (
	"errors"
	"testing"
)

func TestEncodeTokenRoundTrip(t *testing.T) {
	token, err := EncodeToken(Cursor{StartAfter: []any{"Ryzen 7 7800X3D", "prod-cpu7800"}})
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	cursor, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if len(cursor.StartAfter) != 2 {
		t.Fatalf("expected 2 cursor values got %d", len(cursor.StartAfter))
	}
	if got := cursor.StartAfter[0]; got != "Ryzen 7 7800X3D" {
		t.Fatalf("unexpected first cursor value %v", got)
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token got %q", token)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	if _, err := DecodeToken("%%not-base64%%"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken got %v", err)
	}

	cursor, err := DecodeToken("   ")
	if err != nil {
		t.Fatalf("DecodeToken blank: %v", err)
	}
	if len(cursor.StartAfter) != 0 || len(cursor.StartAt) != 0 {
		t.Fatal("expected empty cursor for blank token")
	}
}
