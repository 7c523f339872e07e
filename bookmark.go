package boltwire

import (
	lru "github.com/hashicorp/golang-lru"
)

// defaultBookmarkHistorySize bounds the diagnostic bookmark cache; a
// session only ever needs its single most recent bookmark to build the
// next BEGIN, but keeping a short history is cheap and useful for
// debugging bookmark-chasing issues across sessions sharing a pool.
const defaultBookmarkHistorySize = 16

// BookmarkHistory is a small bounded record of the most recent
// bookmark strings a session has observed in SUCCESS metadata. It
// exists purely for diagnostics, not correctness -- correctness only
// requires the single latest bookmark, tracked separately on Session.
type BookmarkHistory struct {
	cache *lru.Cache
}

// NewBookmarkHistory constructs a bounded bookmark history cache.
func NewBookmarkHistory() *BookmarkHistory {
	cache, err := lru.New(defaultBookmarkHistorySize)
	if err != nil {
		// lru.New only errors on a non-positive size, which
		// defaultBookmarkHistorySize never is.
		panic(err)
	}
	return &BookmarkHistory{cache: cache}
}

// Record adds a bookmark to the history, evicting the oldest entry if
// the history is already at capacity.
func (h *BookmarkHistory) Record(bookmark string) {
	if bookmark == "" {
		return
	}
	h.cache.Add(bookmark, struct{}{})
}

// Seen reports whether a bookmark has been observed recently.
func (h *BookmarkHistory) Seen(bookmark string) bool {
	return h.cache.Contains(bookmark)
}

// Recent returns up to the last N bookmarks recorded, most recent
// last. Intended for diagnostics/logging, not protocol logic.
func (h *BookmarkHistory) Recent() []string {
	keys := h.cache.Keys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if s, ok := k.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
