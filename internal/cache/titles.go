package cache

import (
	"fmt"
	"sync"

	"github.com/mapmarks/engine/internal/model"
)

// TitleCache caches reverse-geocoded display names by coordinate to avoid
// repeated lookups for the same location. Positions are bucketed to four
// decimal places (roughly 11 meters), close enough that two pins dropped on
// the same spot share a name.
type TitleCache struct {
	m     sync.Mutex
	names map[string]string
}

func NewTitleCache() *TitleCache {
	return &TitleCache{
		names: make(map[string]string),
	}
}

// Key returns the bucket key for a position.
func Key(pos model.Position) string {
	return fmt.Sprintf("%.4f,%.4f", pos.Lat, pos.Lon)
}

func (c *TitleCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.names = make(map[string]string)
}

func (c *TitleCache) Get(pos model.Position) (string, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if name, ok := c.names[Key(pos)]; ok {
		return name, true
	}
	return "", false
}

func (c *TitleCache) Add(pos model.Position, name string) {
	c.m.Lock()
	defer c.m.Unlock()
	c.names[Key(pos)] = name
}

func (c *TitleCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.names)
}
