package domain

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"
)

func items(logins ...string) []StarItem {
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]StarItem, len(logins))
	for i, l := range logins {
		out[i] = StarItem{Login: l, StarredAt: base.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name        string
		old, new    []StarItem
		wantAdded   []string
		wantRemoved []string
	}{
		{"both empty", nil, nil, []string{}, []string{}},
		{"first stars", nil, items("a", "b"), []string{"a", "b"}, []string{}},
		{"all removed", items("a", "b"), nil, []string{}, []string{"a", "b"}},
		{"unchanged", items("a", "b"), items("a", "b"), []string{}, []string{}},
		{"mixed", items("a", "b", "c"), items("a", "c", "d"), []string{"d"}, []string{"b"}},
		{"sorted output", items("z"), items("y", "x"), []string{"x", "y"}, []string{"z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := ComputeDiff(tt.old, tt.new)
			if !reflect.DeepEqual(added, tt.wantAdded) {
				t.Errorf("added: expected %v, got %v", tt.wantAdded, added)
			}
			if !reflect.DeepEqual(removed, tt.wantRemoved) {
				t.Errorf("removed: expected %v, got %v", tt.wantRemoved, removed)
			}
		})
	}
}

// (Old - removed) ∪ added = New, for random login sets.
func TestComputeDiff_SymmetricDifferenceLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}

	pick := func() []StarItem {
		var logins []string
		for _, l := range pool {
			if rng.Intn(2) == 0 {
				logins = append(logins, l)
			}
		}
		return items(logins...)
	}

	for i := 0; i < 200; i++ {
		old, new := pick(), pick()
		added, removed := ComputeDiff(old, new)

		result := Logins(old)
		for _, l := range removed {
			delete(result, l)
		}
		for _, l := range added {
			result[l] = struct{}{}
		}

		if !reflect.DeepEqual(result, Logins(new)) {
			t.Fatalf("law violated: old=%v new=%v added=%v removed=%v", old, new, added, removed)
		}
	}
}

func TestDiffResult_NeedsNotification(t *testing.T) {
	tests := []struct {
		name string
		diff DiffResult
		want bool
	}{
		{"first sync with stars", DiffResult{IsFirstSync: true, Added: []string{"a"}}, false},
		{"no changes", DiffResult{}, false},
		{"added", DiffResult{Added: []string{"a"}}, true},
		{"removed", DiffResult{Removed: []string{"a"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.diff.NeedsNotification(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIsDue(t *testing.T) {
	now := time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-5 * time.Minute)
	old := now.Add(-10 * time.Minute)

	if !IsDue(nil, now, time.Hour) {
		t.Error("never reconciled repo should be due")
	}
	if IsDue(&recent, now, 10*time.Minute) {
		t.Error("repo reconciled 5m ago should not be due with 10m interval")
	}
	if !IsDue(&old, now, 10*time.Minute) {
		t.Error("repo reconciled exactly at the interval should be due")
	}
}

func TestPagesNeeded(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 100, 0},
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{3, 2, 2},
		{5, 0, 0},
	}

	for _, tt := range tests {
		if got := PagesNeeded(tt.total, tt.size); got != tt.want {
			t.Errorf("PagesNeeded(%d, %d): expected %d, got %d", tt.total, tt.size, tt.want, got)
		}
	}
}

func TestFormatNotification(t *testing.T) {
	msg := FormatNotification("https://github.com/o/r", []string{"b", "a"}, []string{"c"})

	want := "Repo: https://github.com/o/r\n\nNew subscribers: a,b\nRemoved subscribers: c"
	if msg != want {
		t.Errorf("expected %q, got %q", want, msg)
	}

	onlyRemoved := FormatNotification("https://github.com/o/r", nil, []string{"c"})
	if onlyRemoved != "Repo: https://github.com/o/r\n\nRemoved subscribers: c" {
		t.Errorf("unexpected message %q", onlyRemoved)
	}
}

func TestHandleScheme(t *testing.T) {
	scheme, addr := HandleScheme("tg:12345")
	if scheme != "tg" || addr != "12345" {
		t.Errorf("expected tg/12345, got %s/%s", scheme, addr)
	}

	scheme, addr = HandleScheme("plain")
	if scheme != "" || addr != "plain" {
		t.Errorf("expected empty scheme, got %s/%s", scheme, addr)
	}

	if ValidHandle("tg:") || ValidHandle("x") || !ValidHandle("email:a@b.c") {
		t.Error("ValidHandle mismatch")
	}
}

func TestLogins_Sorted(t *testing.T) {
	set := Logins(items("b", "a", "b"))
	var keys []string
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Errorf("unexpected logins %v", keys)
	}
}
