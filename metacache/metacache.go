// Package metacache memoizes collection listings and collection
// descriptions for the lifetime of a datasource.
//
// Entries never expire on their own; the server-side schema is not tracked.
// Callers needing fresh metadata call Reset or use a new cache.
package metacache

import (
	"github.com/jellydator/ttlcache/v3"

	"github.com/stevemurr/docsource/codec"
)

const (
	KindCollections = "collections"
	KindDescribe    = "describe"
)

// Cache is safe for concurrent use.
type Cache struct {
	items *ttlcache.Cache[string, codec.Value]
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		items: ttlcache.New[string, codec.Value](
			ttlcache.WithTTL[string, codec.Value](ttlcache.NoTTL),
			ttlcache.WithDisableTouchOnHit[string, codec.Value](),
		),
	}
}

func key(kind, name string) string {
	if name == "" {
		return kind
	}
	return kind + ":" + name
}

// Collections returns the cached collection listing.
func (c *Cache) Collections() ([]string, bool) {
	item := c.items.Get(key(KindCollections, ""))
	if item == nil {
		return nil, false
	}
	arr, ok := codec.AsArray(item.Value())
	if !ok {
		return nil, false
	}
	return arr.Strings()
}

// SetCollections stores the collection listing.
func (c *Cache) SetCollections(names []string) {
	arr := make(codec.Array, len(names))
	for i, n := range names {
		arr[i] = codec.String(n)
	}
	c.items.Set(key(KindCollections, ""), arr, ttlcache.NoTTL)
}

// Description returns a copy of the cached description of a collection,
// keyed by its fully qualified name.
func (c *Cache) Description(collection string) (codec.Object, bool) {
	item := c.items.Get(key(KindDescribe, collection))
	if item == nil {
		return nil, false
	}
	desc, ok := codec.AsObject(item.Value())
	if !ok {
		return nil, false
	}
	return desc.Clone(), true
}

// SetDescription stores a copy of the description of a collection.
func (c *Cache) SetDescription(collection string, desc codec.Object) {
	c.items.Set(key(KindDescribe, collection), desc.Clone(), ttlcache.NoTTL)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return c.items.Len()
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.items.DeleteAll()
}
