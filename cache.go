// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"encoding/json"
	"slices"

	"github.com/bassosimone/runtimex"
	lru "github.com/hashicorp/golang-lru/v2"
)

// suggestionCache stores fetched sequences keyed by query and params.
//
// It is owned by one [*Provider]; the lru cache is safe for concurrent
// use on its own.
type suggestionCache struct {
	entries *lru.Cache[string, []Suggestion]
}

func newSuggestionCache(size int) *suggestionCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for non-positive sizes
	entries := runtimex.PanicOnError1(lru.New[string, []Suggestion](size))
	return &suggestionCache{entries: entries}
}

// cacheKey fingerprints (query, params). encoding/json sorts map keys,
// so equal params always yield the same key.
func cacheKey(query string, params map[string]any) (string, bool) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", false
	}
	return query + "\x00" + string(data), true
}

func (c *suggestionCache) get(key string) ([]Suggestion, bool) {
	value, found := c.entries.Get(key)
	if !found {
		return nil, false
	}
	return slices.Clone(value), true
}

func (c *suggestionCache) put(key string, value []Suggestion) {
	c.entries.Add(key, slices.Clone(value))
}

func (c *suggestionCache) purge() {
	c.entries.Purge()
}

func (c *suggestionCache) len() int {
	return c.entries.Len()
}
