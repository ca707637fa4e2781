package domain

import (
	"errors"
	"testing"
	"time"
)

func TestStarItem_RoundTrip(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	item := StarItem{Login: "octocat", StarredAt: time.Date(2022, 1, 2, 3, 4, 5, 0, loc)}

	data, err := EncodeStarItem(item)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := `{"login":"octocat","starred_at":"2022-01-02T03:04:05+03:00"}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}

	decoded, err := DecodeStarItem(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Login != item.Login {
		t.Errorf("expected login %q, got %q", item.Login, decoded.Login)
	}
	if !decoded.StarredAt.Equal(item.StarredAt) {
		t.Errorf("expected %v, got %v", item.StarredAt, decoded.StarredAt)
	}
}

func TestEncodeStarItem_EmptyLogin(t *testing.T) {
	_, err := EncodeStarItem(StarItem{StarredAt: time.Now()})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDecodeStarItem_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `nope`},
		{"empty login", `{"login":"","starred_at":"2022-01-01T00:00:00Z"}`},
		{"bad timestamp", `{"login":"a","starred_at":"yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeStarItem([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeStarItems_PreservesOrder(t *testing.T) {
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []StarItem{
		{Login: "b", StarredAt: base},
		{Login: "a", StarredAt: base.Add(time.Hour)},
		{Login: "c", StarredAt: base.Add(2 * time.Hour)},
	}

	rows, err := EncodeStarItems(items)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeStarItems(rows)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded) != len(items) {
		t.Fatalf("expected %d items, got %d", len(items), len(decoded))
	}
	for i := range items {
		if decoded[i].Login != items[i].Login {
			t.Errorf("position %d: expected %q, got %q", i, items[i].Login, decoded[i].Login)
		}
	}
}
