package identity

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemCache holds recently resolved identities. Entries expire quickly; a
// resolution is a local view, never a permanent fact.
type MemCache struct {
	resolutions *expirable.LRU[string, *Resolution]
}

func NewMemCache(size int) *MemCache {
	return &MemCache{
		resolutions: expirable.NewLRU[string, *Resolution](size, nil, 5*time.Minute),
	}
}

func (mc *MemCache) GetResolution(id string) (*Resolution, bool) {
	return mc.resolutions.Get(id)
}

func (mc *MemCache) PutResolution(id string, res *Resolution) {
	mc.resolutions.Add(id, res)
}

func (mc *MemCache) BustResolution(id string) {
	mc.resolutions.Remove(id)
}
