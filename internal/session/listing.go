package session

import (
	"sort"
	"strings"
	"sync"

	"github.com/halyard-dev/halyard/internal/backend"
)

// ListingCache holds the last-known directory listing for one tree of a
// session. It exists so a session switch can render instantly from cache
// while the live connection is still being re-established. Thread-safe.
type ListingCache struct {
	// source identifies this tree ("local" or "remote")
	source string

	mu        sync.RWMutex
	listing   *backend.Listing
	sortBy    string // "name", "size", "date"
	ascending bool
}

// NewListingCache creates an empty cache for the given tree.
func NewListingCache(source string) *ListingCache {
	return &ListingCache{
		source:    source,
		sortBy:    "name",
		ascending: true,
	}
}

// Source returns which tree this cache belongs to.
func (c *ListingCache) Source() string { return c.source }

// Set replaces the cached listing and applies the current sort order.
func (c *ListingCache) Set(l *backend.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listing = cloneListing(l)
	c.sortLocked()
}

// Get returns a copy of the cached listing, or nil if nothing is cached.
// Callers get an independent snapshot; mutating it never touches the cache.
func (c *ListingCache) Get() *backend.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneListing(c.listing)
}

// Path returns the path of the cached listing, or "" when empty.
func (c *ListingCache) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listing == nil {
		return ""
	}
	return c.listing.Path
}

// Count returns the number of cached entries.
func (c *ListingCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listing == nil {
		return 0
	}
	return len(c.listing.Entries)
}

// Clear drops the cached listing.
func (c *ListingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listing = nil
}

// SetSort updates the sort order and re-sorts the cached listing.
func (c *ListingCache) SetSort(sortBy string, ascending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sortBy = sortBy
	c.ascending = ascending
	c.sortLocked()
}

// GetSort returns the current sort settings.
func (c *ListingCache) GetSort() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortBy, c.ascending
}

// sortLocked sorts the cached entries by the current settings (must hold lock).
func (c *ListingCache) sortLocked() {
	if c.listing == nil || len(c.listing.Entries) == 0 {
		return
	}

	entries := c.listing.Entries
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]

		// Folders always come first
		if a.IsDir != b.IsDir {
			return a.IsDir
		}

		var less bool
		switch c.sortBy {
		case "size":
			less = a.Size < b.Size
		case "date":
			less = a.ModTime.Before(b.ModTime)
		default: // "name"
			less = strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}

		if c.ascending {
			return less
		}
		return !less
	})
}

func cloneListing(l *backend.Listing) *backend.Listing {
	if l == nil {
		return nil
	}
	out := &backend.Listing{Path: l.Path}
	if l.Entries != nil {
		out.Entries = make([]backend.Entry, len(l.Entries))
		copy(out.Entries, l.Entries)
	}
	return out
}
