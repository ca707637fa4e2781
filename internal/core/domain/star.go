package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// StarItem is one stargazer of a repository.
// Login is the diff identity; StarredAt orders the upstream list.
type StarItem struct {
	Login     string    `json:"login"`
	StarredAt time.Time `json:"starred_at"`
}

// starItemWire is the persisted form. The timestamp keeps its offset.
type starItemWire struct {
	Login     string `json:"login"`
	StarredAt string `json:"starred_at"`
}

// EncodeStarItem serializes an item for snapshot persistence.
func EncodeStarItem(item StarItem) ([]byte, error) {
	if item.Login == "" {
		return nil, fmt.Errorf("%w: empty login", ErrInvalidInput)
	}
	return json.Marshal(starItemWire{
		Login:     item.Login,
		StarredAt: item.StarredAt.Format(time.RFC3339Nano),
	})
}

// DecodeStarItem parses an item written by EncodeStarItem.
func DecodeStarItem(data []byte) (StarItem, error) {
	var w starItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return StarItem{}, fmt.Errorf("decode star item: %w", err)
	}
	if w.Login == "" {
		return StarItem{}, fmt.Errorf("%w: empty login", ErrInvalidInput)
	}
	starredAt, err := time.Parse(time.RFC3339Nano, w.StarredAt)
	if err != nil {
		return StarItem{}, fmt.Errorf("decode star item %s: %w", w.Login, err)
	}
	return StarItem{Login: w.Login, StarredAt: starredAt}, nil
}

// EncodeStarItems serializes a whole snapshot, preserving order.
func EncodeStarItems(items []StarItem) ([][]byte, error) {
	out := make([][]byte, 0, len(items))
	for _, item := range items {
		data, err := EncodeStarItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// DecodeStarItems parses a serialized snapshot, preserving order.
func DecodeStarItems(rows [][]byte) ([]StarItem, error) {
	items := make([]StarItem, 0, len(rows))
	for _, row := range rows {
		item, err := DecodeStarItem(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Logins returns the login set of the given items.
func Logins(items []StarItem) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item.Login] = struct{}{}
	}
	return set
}
