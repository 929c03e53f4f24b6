package session

import (
	"testing"
	"time"

	"github.com/halyard-dev/halyard/internal/backend"
)

func TestListingCacheSortsFoldersFirst(t *testing.T) {
	c := NewListingCache("remote")
	c.Set(&backend.Listing{Path: "/", Entries: []backend.Entry{
		{Name: "zeta.txt"},
		{Name: "Alpha", IsDir: true},
		{Name: "beta.txt"},
		{Name: "omega", IsDir: true},
	}})

	got := c.Get()
	want := []string{"Alpha", "omega", "beta.txt", "zeta.txt"}
	for i, name := range want {
		if got.Entries[i].Name != name {
			t.Errorf("entry %d = %q, want %q", i, got.Entries[i].Name, name)
		}
	}
}

func TestListingCacheSortBySizeDescending(t *testing.T) {
	c := NewListingCache("remote")
	c.Set(&backend.Listing{Path: "/", Entries: []backend.Entry{
		{Name: "small", Size: 1},
		{Name: "big", Size: 100},
		{Name: "mid", Size: 10},
	}})
	c.SetSort("size", false)

	got := c.Get()
	if got.Entries[0].Name != "big" || got.Entries[2].Name != "small" {
		t.Errorf("descending size order wrong: %v", got.Entries)
	}
}

func TestListingCacheSortByDate(t *testing.T) {
	base := time.Now()
	c := NewListingCache("local")
	c.Set(&backend.Listing{Path: "/", Entries: []backend.Entry{
		{Name: "new", ModTime: base.Add(time.Hour)},
		{Name: "old", ModTime: base},
	}})
	c.SetSort("date", true)

	if got := c.Get().Entries[0].Name; got != "old" {
		t.Errorf("oldest first, got %q", got)
	}
}

func TestListingCacheGetReturnsCopy(t *testing.T) {
	c := NewListingCache("remote")
	c.Set(&backend.Listing{Path: "/", Entries: []backend.Entry{{Name: "a"}}})

	snap := c.Get()
	snap.Entries[0].Name = "mutated"

	if got := c.Get().Entries[0].Name; got != "a" {
		t.Error("mutating a snapshot must not touch the cache")
	}
}

func TestListingCacheEmpty(t *testing.T) {
	c := NewListingCache("remote")
	if c.Get() != nil {
		t.Error("empty cache should return nil")
	}
	if c.Count() != 0 {
		t.Error("empty cache count should be 0")
	}
	if c.Path() != "" {
		t.Error("empty cache path should be empty")
	}
}
